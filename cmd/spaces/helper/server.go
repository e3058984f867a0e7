package helper

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/otalab/spaces/internal"
	"github.com/otalab/spaces/internal/handler"
	"github.com/otalab/spaces/pkg/config"
)

type ServerRunner struct {
	backendConfig *config.Config
}

func NewServerRunner(backendConfig *config.Config) *ServerRunner {
	return &ServerRunner{
		backendConfig: backendConfig,
	}
}

var (
	readHeaderTimeout = 10 * time.Second
	cancelTimeout     = 10 * time.Second
)

// StartServer runs the gin server until SIGINT or SIGTERM, then drains it.
func (sr *ServerRunner) StartServer(registerConfig *handler.RegisterConfig) {
	klog.Info("starting server")
	backend := internal.Register(registerConfig)

	// reference: https://gin-gonic.com/en/docs/examples/graceful-restart-or-stop
	srv := &http.Server{
		Addr:              sr.backendConfig.ServerAddr,
		Handler:           backend.R,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	klog.Info("Shutdown Gin Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		klog.Info("Gin Server Shutdown:", err)
	}
	klog.Info("Gin Server exiting")
}
