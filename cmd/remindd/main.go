package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remindd/internal/app"
	logx "remindd/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (json or yaml)")
	flag.Parse()

	// Used until the configured logger exists, and after it is closed.
	boot := logx.NewConsole("info")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		boot.Error("startup failed", logx.String("config", cfgPath), logx.Err(err))
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		boot.Error("start failed", logx.Err(err))
		os.Exit(1)
	}

	reason := "signal"
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = "fatal error"
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil {
		boot.Error("stopped on fatal error", logx.Err(err))
		os.Exit(1)
	}
}
