package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bluele/gcache"
	"github.com/joho/godotenv"

	"github.com/bililive-go/livesched/src/channel"
	"github.com/bililive-go/livesched/src/cmd/livesched/internal/flag"
	"github.com/bililive-go/livesched/src/configs"
	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/instance"
	"github.com/bililive-go/livesched/src/log"
	"github.com/bililive-go/livesched/src/metrics"
	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/pkg/events"
	bilisentryPkg "github.com/bililive-go/livesched/src/pkg/sentry"
	"github.com/bililive-go/livesched/src/servers"
	"github.com/bililive-go/livesched/src/session"
)

// SentryDSN 编译时注入，优先于配置和环境变量
var SentryDSN = ""

func getConfig(f *flag.Flags) (*configs.Config, error) {
	var config *configs.Config
	if f.Conf != "" {
		c, err := configs.NewConfigWithFile(f.Conf)
		if err != nil {
			return nil, err
		}
		config = c
		f.Override(config)
	} else if c, err := getConfigBesidesExecutable(); err == nil {
		config = c
		f.Override(config)
	} else {
		config = f.GenConfigFromFlags()
	}
	config.ApplyEnv()
	return config, config.Verify()
}

func getConfigBesidesExecutable() (*configs.Config, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return configs.NewConfigWithFile(filepath.Join(filepath.Dir(exePath), "config.yml"))
}

func main() {
	defer bilisentryPkg.Flush(2 * time.Second)
	defer bilisentryPkg.Recover()

	f, err := flag.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	// .env 不存在不算错误；显式指定的文件必须存在
	_ = godotenv.Load()
	if len(f.EnvFiles) > 0 {
		if err := godotenv.Load(f.EnvFiles...); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	config, err := getConfig(f)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(1)
	}
	configs.SetCurrentConfig(config)

	sentryDSN := SentryDSN
	if sentryDSN == "" {
		sentryDSN = config.Sentry.DSN
	}
	if config.Sentry.Enable && sentryDSN != "" {
		environment := config.Sentry.Environment
		if config.Debug {
			environment = "development"
		}
		if err := bilisentryPkg.Init(sentryDSN, environment, consts.AppVersion); err != nil {
			fmt.Fprintf(os.Stderr, "警告: Sentry 初始化失败: %v\n", err)
		}
	}

	inst := new(instance.Instance)
	inst.Cache = gcache.New(4096).LRU().Build()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	ctx := context.WithValue(rootCtx, instance.Key, inst)

	logger, err := log.New(ctx, config)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(1)
	}
	logger.Infof("%s Version: %s Link Start", consts.AppName, consts.AppVersion)
	if config.File != "" {
		logger.Debugf("config path: %s.", config.File)
	}
	logger.Debugf("%+v", consts.GetAppInfo())

	ed := events.NewDispatcher(ctx)
	center := notify.NewCenter(ed, 0)
	messages, err := notify.NewRenderer(config.Messages)
	if err != nil {
		logger.Fatalf("invalid messages: %s", err)
	}

	var collector *metrics.Collector
	if config.Metrics.Enable {
		collector = metrics.NewCollector(nil)
	}

	ws := channel.NewWSClient(ctx, channel.Options{
		URL:               config.Server.URL,
		ReconnectInterval: config.Server.ReconnectInterval,
		HandshakeTimeout:  config.Server.HandshakeTimeout,
		WriteTimeout:      config.Server.WriteTimeout,
		PongWait:          config.Server.PongWait,
	}, ed)

	opts, err := session.OptionsFromConfig(config)
	if err != nil {
		logger.Fatalf("invalid session options: %s", err)
	}
	sess := session.New(ctx, session.Deps{
		Channel:    ws,
		Dispatcher: ed,
		Notifier:   center,
		Messages:   messages,
		Metrics:    collector,
		Cache:      inst.Cache,
	}, opts)
	// 监听器要在连接建立前注册，否则会错过第一次广播
	if err = sess.Start(ctx); err != nil {
		logger.Fatalf("failed to start session, error: %s", err)
	}

	if config.RPC.Enable {
		server := servers.NewServer(ctx, servers.Deps{
			Bind:          config.RPC.Bind,
			Session:       sess,
			Notifications: center,
			Dispatcher:    ed,
			Metrics:       collector,
		})
		if err = server.Start(ctx); err != nil {
			logger.WithError(err).Fatalf("failed to init server")
		}
	}

	inst.WaitGroup.Add(1)
	if err = ws.Start(ctx); err != nil {
		logger.Fatalf("failed to start channel, error: %s", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	bilisentryPkg.Go(func() {
		defer inst.WaitGroup.Done()
		<-c
		logger.Info("Received shutdown signal, closing...")
		closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if inst.Server != nil {
			inst.Server.Close(closeCtx)
		}
		ws.Close(closeCtx)
		sess.Close(closeCtx)
		ed.Close(closeCtx)
		rootCancel()
		logger.Info("Shutdown complete")
	})

	inst.WaitGroup.Wait()
}
