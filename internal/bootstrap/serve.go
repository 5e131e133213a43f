package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP server, and the background worker when enabled, until
// ctx is cancelled.
func Serve(ctx context.Context, a *App) error {
	if a.Config.Worker.Enabled {
		if err := a.Worker.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}

	server := NewHTTPServer(a)
	errCh := make(chan error, 1)
	go func() {
		a.Logger.WithField("port", a.Config.HTTP.Port).Info("http server listening")
		if err := server.Start(":" + a.Config.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
