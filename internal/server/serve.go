package server

import (
	"context"
	"log"
	"time"

	"docubot-be/internal/bootstrap"
	"docubot-be/internal/config"
	"docubot-be/internal/tracer"
)

const shutdownTimeout = 10 * time.Second

// Serve builds the container, runs the HTTP server until ctx is cancelled and
// then shuts everything down.
func Serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}

	shutdownTracer := tracer.InitTracer(ctx, container.Logger)

	if err := container.Start(ctx); err != nil {
		return err
	}

	srv := New(cfg, container)
	runErr := make(chan error, 1)
	go func() {
		runErr <- srv.Run()
		stop()
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Warn("Server", "HTTP shutdown", map[string]interface{}{"error": err.Error()})
	}
	if err := container.Close(shutdownCtx); err != nil {
		container.Logger.Warn("Server", "Container shutdown", map[string]interface{}{"error": err.Error()})
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("Tracer shutdown: %v", err)
	}

	select {
	case err := <-runErr:
		return err
	default:
		return nil
	}
}
