package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"decor-ai-be/internal/bootstrap"
	"decor-ai-be/internal/config"
	"decor-ai-be/internal/server"
	"decor-ai-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(ctx, cfg)
	defer container.Close()
	log := container.Logger

	// 3. Initialize Tracer
	shutdownTracer := tracer.InitTracer(log)
	defer shutdownTracer(context.Background())

	// 4. Start Background Services
	go container.WebSocketHub.Run(ctx)

	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Error("Main", "Failed to start consumer service", map[string]interface{}{"error": err.Error()})
		return
	}

	if container.DesignEventService != nil {
		if err := container.DesignEventService.Start(ctx); err != nil {
			log.Warn("Main", "Design event audit disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	// 6. Wait for a signal or a listener failure
	select {
	case <-ctx.Done():
		log.Info("Main", "Shutting down", nil)
	case err := <-errCh:
		log.Error("Main", "Server stopped", map[string]interface{}{"error": err.Error()})
		stop()
	}

	if err := srv.Shutdown(10 * time.Second); err != nil {
		log.Warn("Main", "Server shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	// ctx is done, so running generations abort and record their failure.
	container.WorkflowService.Wait()
}
