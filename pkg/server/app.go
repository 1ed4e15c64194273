package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinAlert/internal/domain/models"
	"FinAlert/internal/handler/ws"
	"FinAlert/internal/usecase"
	"FinAlert/pkg/config"
	xhttp "FinAlert/pkg/http"
	pkgkafka "FinAlert/pkg/kafka"
	applogger "FinAlert/pkg/logger"
)

// Components are the long-lived parts the App starts and stops. Optional
// parts are nil when the configuration does not use them.
type Components struct {
	Config      *config.Config
	Logger      *applogger.Logger
	Client      *usecase.AlertStreamClient
	Gateway     *ws.AlertGateway
	HTTP        *xhttp.Server
	Archiver    *usecase.AlertArchiver
	HistorySync *usecase.HistorySync
	Consumer    *pkgkafka.Consumer
	Handler     *usecase.KafkaAlertsHandler
	Closers     []io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	Components

	log    *applogger.Logger
	ctx    context.Context
	cancel context.CancelFunc
	unsub  []func()
}

// New creates a new App instance with all dependencies.
func New(c Components) *App {
	if c.Logger == nil {
		c.Logger = applogger.NewNop()
	}
	return &App{Components: c, log: c.Logger.Named("app")}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start wires listeners, starts background workers and the HTTP server and,
// when configured, enables the feed.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if a.HistorySync != nil {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.HistorySync.Restore(rctx); err != nil {
			a.log.Warn("history restore failed", applogger.Error(err))
		}
		cancel()
	}

	a.unsub = append(a.unsub, a.Client.OnStatusChange(func(s models.ConnectionStatus) {
		a.log.Info("feed status", applogger.String("status", s.String()))
	}))
	if a.Gateway != nil {
		a.unsub = append(a.unsub,
			a.Client.OnStatusChange(a.Gateway.BroadcastStatus),
			a.Client.OnAlerts(a.Gateway.BroadcastAlerts),
		)
	}
	if a.Archiver != nil {
		a.Archiver.Start(a.ctx)
		a.unsub = append(a.unsub, a.Client.OnAlerts(a.Archiver.Listener()))
		a.log.Info("archiver started", applogger.String("backend", a.Archiver.Backend()))
	}
	if a.HistorySync != nil {
		a.HistorySync.Start(a.ctx)
		a.unsub = append(a.unsub, a.Client.OnAlerts(a.HistorySync.Listener()))
	}

	if a.Consumer != nil && a.Handler != nil {
		a.Consumer.RegisterHandler(a.Handler)
		if err := a.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.Handler.Topic()))
		}
	}

	if a.HTTP != nil {
		if err := a.HTTP.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	if a.Config.Feed.AutoEnable {
		if err := a.Client.Enable(); err != nil {
			a.log.Error("feed enable failed", applogger.String("url", a.Client.URL()), applogger.Error(err))
		}
	}
	return nil
}

// Shutdown gracefully stops all services. The client goes first so no
// emissions reach sinks that are being closed.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down")

	if err := a.Client.Close(); err != nil {
		a.log.Warn("client close error", applogger.Error(err))
	}
	for _, u := range a.unsub {
		u()
	}
	a.unsub = nil

	if a.Gateway != nil {
		a.Gateway.Close()
	}
	if a.HTTP != nil {
		if err := a.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.Archiver != nil {
		a.Archiver.Stop()
	}
	if a.HistorySync != nil {
		a.HistorySync.Stop()
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}

	// flush collected logs before the producer goes away
	a.Logger.RemoveCollector()
	for _, c := range a.Closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
