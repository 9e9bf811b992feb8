package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/00vDragos/RealTime-Chat/internal/api"
	"github.com/00vDragos/RealTime-Chat/internal/api/validator"
	"github.com/00vDragos/RealTime-Chat/internal/chat"
	"github.com/00vDragos/RealTime-Chat/internal/directory"
	"github.com/00vDragos/RealTime-Chat/internal/dispatch"
	"github.com/00vDragos/RealTime-Chat/internal/metrics"
	"github.com/00vDragos/RealTime-Chat/internal/presence"
	"github.com/00vDragos/RealTime-Chat/internal/router"
	"github.com/00vDragos/RealTime-Chat/internal/server/middleware"
	"github.com/00vDragos/RealTime-Chat/internal/throttle"
	"github.com/00vDragos/RealTime-Chat/pkg/config"
	"github.com/00vDragos/RealTime-Chat/pkg/state"
	"github.com/00vDragos/RealTime-Chat/pkg/state/registry"
	"github.com/00vDragos/RealTime-Chat/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	errShutdown = errors.New("graceful shutdown")
	errCycled   = errors.New("connection cycled by new connection")
)

// Deps are the pluggable backends the app runs on.
type Deps struct {
	Store    chat.Store
	Limiter  throttle.Limiter
	Registry *prometheus.Registry // nil disables /metrics
}

type App struct {
	logger     *slog.Logger
	registry   state.Registry
	dispatcher *dispatch.Dispatcher
	notifier   *presence.Notifier
	router     *router.EventRouter
	wg         sync.WaitGroup
	http       *http.Server
	config     *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, deps Deps) *App {
	var m *metrics.Metrics
	if deps.Registry != nil {
		m = metrics.New(deps.Registry)
	}

	reg := registry.NewSharded(logger, cfg.Registry.Shards, m)
	dir := directory.New(deps.Store, logger)
	dispatcher := dispatch.New(reg, deps.Store, dispatch.Config{DeliveredTimeout: cfg.Dispatch.DeliveredTimeout}, m, logger)
	notifier := presence.NewNotifier(reg, dir, deps.Store, dispatcher, cfg.Dispatch.PresenceTimeout, logger)
	service := chat.NewService(deps.Store, dir, dispatcher, logger)
	eventRouter := router.NewEventRouter(logger, service, deps.Limiter, m)

	app := &App{
		logger:     logger,
		registry:   reg,
		dispatcher: dispatcher,
		notifier:   notifier,
		router:     eventRouter,
		config:     cfg,
		ctx:        rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	connCounter := middleware.UserConnectionCounter(reg.ConnectionCount)
	connCycler := func(userID string) {
		oldest, found := reg.OldestConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", "userID", userID, "connID", oldest.ID)
			oldest.Transport.Close(errCycled)
		}
	}

	mux.Handle("GET /ws/{"+middleware.UserIDPathValue+"}",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, cfg.Server.Auth.JWTSecret, cfg.Server.Auth.CookieName),
			middleware.NewConnectionLimiter(
				logger,
				connCounter,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)
	if deps.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", &api.API{
		Logger:   logger,
		Chat:     service,
		Presence: reg,
		Val:      validator.New(),
	})

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

// Handler returns the root handler, for serving the app without Run.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok || reqMeta.UserID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		connLogger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		connLogger,
	)
	stateConn := state.NewConnection(reqMeta.UserID, reqMeta.IP, conn)

	conn.SetOnMessageHandler(func(ctx context.Context, _ uuid.UUID, msg []byte) {
		a.router.HandleMessage(ctx, stateConn, msg)
	})
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()), slog.Any("reason", err))
		a.notifier.Disconnect(context.Background(), reqMeta.UserID, stateConn)
	})

	// the limiter middleware rejects early; this is the authoritative check
	limit := 0
	if a.config.Server.ConnectionLimit.Mode != "cycle" {
		limit = a.config.Server.ConnectionLimit.MaxPerUser
	}
	if !a.notifier.TryConnect(r.Context(), reqMeta.UserID, stateConn, limit) {
		connLogger.Warn("User connection limit reached after upgrade", slog.Int("limit", limit))
		conn.Close(transport.ErrOverCapacity)
		return
	}
	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.Connections() {
		conn.Transport.Close(errShutdown)
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.dispatcher.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
