// Package main starts the profile service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	profilecmd "github.com/louisbranch/messenger/internal/cmd/profile"
)

func main() {
	cfg, err := profilecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[PROFILE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Check {
		if err := profilecmd.Check(ctx, cfg); err != nil {
			log.Fatalf("health check: %v", err)
		}
		return
	}
	if err := profilecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
