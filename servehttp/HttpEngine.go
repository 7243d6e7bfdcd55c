package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"steward/misc"

	"github.com/gin-gonic/gin"
)

// StartHTTPServer serves the gin engine until SIGINT/SIGTERM, then shuts
// down gracefully with a 3 second drain window.
func StartHTTPServer(engine *gin.Engine) {
	addr := ":80"
	if port := os.Getenv("SERVICE_PORT"); port != "" {
		addr = ":" + port
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			misc.Log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	// kill (no param) sends syscall.SIGTERM, kill -2 sends syscall.SIGINT,
	// kill -9 sends syscall.SIGKILL which can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	misc.Log.Info("shutdown signal received, the service will exit in 3 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		misc.Log.Fatalf("http server shutdown failed: %v", err)
	}
	misc.Log.Info("http server is shutdown gracefully, new requests will be rejected")

	<-ctx.Done()
	misc.Log.Info("service exiting")
}
