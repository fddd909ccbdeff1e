package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/conquiz/conquiz-client/internal/auth"
	"github.com/conquiz/conquiz-client/internal/config"
	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/gameflow"
	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（留空使用默认值）")
	identifier := flag.String("login", "", "登录标识（邮箱或用户名），留空时尝试恢复本地会话")
	password := flag.String("password", "", "登录密码")
	findGame := flag.Bool("find", false, "登录后立即开始匹配")
	flag.Parse()

	// .env 仅用于本地开发，缺失不算错误
	_ = godotenv.Load()

	cfg := loadConfig(*configPath)

	if err := logger.Init(cfg.Log.Dir); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Shutdown()
	subscribeConsole(bus)

	rt := transport.NewClient(cfg, bus)
	store, err := auth.NewStore("")
	if err != nil {
		fatal("初始化会话存储失败: %v", err)
	}
	mgr := auth.NewManager(rt, store, cfg.Auth, bus)

	session := establishSession(ctx, mgr, *identifier, *password)
	fmt.Printf("已登录: %s (%s)\n", session.Username, session.UserID)

	if err := rt.ConnectStream(ctx, mgr.AccessToken()); err != nil {
		fatal("建立流式通道失败: %v", err)
	}
	defer rt.Disconnect()

	machine := gameflow.NewMachine(mgr, rt, cfg.Game, bus)
	machine.Start(session.UserID)
	defer machine.Stop()

	if *findGame {
		gameID, err := machine.FindGame(ctx)
		if err != nil {
			fatal("匹配失败: %v", err)
		}
		fmt.Printf("已进入对局: %s\n", gameID)
	}

	waitForInterrupt()
	fmt.Println("正在退出…")
	mgr.Logout(context.Background())
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal("加载配置失败: %v", err)
	}
	return cfg
}

// establishSession 恢复本地会话，或在提供凭据时重新登录
func establishSession(ctx context.Context, mgr *auth.Manager, identifier, password string) *auth.Session {
	if identifier != "" {
		sess, err := mgr.Login(ctx, identifier, password)
		if err != nil {
			fatal("登录失败: %v", err)
		}
		return sess
	}

	if err := mgr.ValidateAndRestore(ctx); err != nil {
		fatal("恢复会话失败: %v", err)
	}
	sess := mgr.Session()
	if sess == nil {
		fatal("没有可用会话，请使用 -login/-password 登录")
	}
	return sess
}

// subscribeConsole 把关键事件打到终端，便于观察对局进展
func subscribeConsole(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TopicGameFound, func(data any) {
		ev := data.(eventbus.GameFoundEvent)
		fmt.Printf("匹配成功: %s\n", ev.GameID)
	})
	bus.Subscribe(eventbus.TopicPhaseChanged, func(data any) {
		ev := data.(eventbus.PhaseChangedEvent)
		fmt.Printf("阶段切换: %d → %d\n", ev.Old, ev.New)
	})
	bus.Subscribe(eventbus.TopicReconnecting, func(data any) {
		ev := data.(eventbus.ReconnectingEvent)
		fmt.Printf("重连中 (%d/%d)…\n", ev.Attempt, ev.Max)
	})
	bus.Subscribe(eventbus.TopicConnectionError, func(data any) {
		ev := data.(eventbus.ConnectionErrorEvent)
		fmt.Printf("连接错误 [%d]: %s\n", ev.Code, ev.Message)
	})
	bus.Subscribe(eventbus.TopicGameEnded, func(data any) {
		ev := data.(eventbus.GameEndedEvent)
		fmt.Println("对局结束:")
		for _, r := range ev.Results {
			fmt.Printf("  #%d %s (%d 分)\n", r.Rank, r.PlayerID, r.Score)
		}
	})
}

func waitForInterrupt() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func fatal(format string, args ...any) {
	logger.LogError(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
