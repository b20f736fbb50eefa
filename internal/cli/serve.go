package cli

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/handlers"
)

const shutdownTimeout = 5 * time.Second

type serveCmd struct {
	app  *App
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API" }
func (*serveCmd) Usage() string {
	return `serve [-addr :8080]

  Serves the wallet API under /api/v1 until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address, defaults to HTTP_PORT")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	addr := c.addr
	if addr == "" {
		addr = c.app.cfg.HTTPPort
	}
	if c.app.logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handlers.NewHandler(c.app.auth, c.app.engine, c.app.reporter, c.app.rates, c.app.currencies, c.app.logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(h, c.app.cfg.CORSOrigins, c.app.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.app.logger.WithError(err).Error("failed to shut down server")
		}
	}()

	c.app.logger.WithField("addr", addr).Info("starting HTTP server")
	c.app.printf("Serving on %s\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return c.app.fail(errors.Wrap(err, "run server"))
	}
	// ListenAndServe returns as soon as Shutdown starts; wait for the drain.
	<-stopped
	c.app.logger.Info("server stopped")
	return subcommands.ExitSuccess
}
