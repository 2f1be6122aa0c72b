package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docubot-be/internal/config"
	"docubot-be/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := server.Serve(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}
