package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AhmedEhabH/Come2Chat/internal/hub"
	"github.com/AhmedEhabH/Come2Chat/internal/server/middleware"
	"github.com/AhmedEhabH/Come2Chat/pkg/config"
	"github.com/AhmedEhabH/Come2Chat/pkg/state/statemanager"
	"github.com/AhmedEhabH/Come2Chat/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

type App struct {
	logger  *slog.Logger
	chatHub *hub.Hub
	wg      sync.WaitGroup
	http    *http.Server
	config  *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) *App {
	registry := statemanager.NewConnectionRegistry(logger)
	sessions := statemanager.NewPrivateSessionTable(logger)
	chatHub := hub.New(logger, registry, sessions)

	app := &App{
		logger:  logger,
		chatHub: chatHub,
		config:  cfg,
		ctx:     rootCtx,
	}

	// Cycling closes the oldest connection from the IP; the hub's disconnect
	// cleanup then frees the slot before the new upgrade registers.
	connCycler := func(ipAddr string) {
		chatHub.CycleOldestForIP(ipAddr, errors.New("connection cycled by new connection"))
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(
				logger,
				chatHub.ConnectionCountForIP,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)
	mux.Handle("/api/chat/register-user",
		middleware.Chain(http.HandlerFunc(app.registerUserHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
		),
	)

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
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
	if !ok {
		a.logger.Error("Upgrade handler could not find request metadata in context. Check middleware order.")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			ReadTimeout: a.config.Transport.ReadTimeout,
			SendBuffer:  a.config.Transport.SendBuffer,
		},
		a.chatHub.HandleMessage,
		func(id uuid.UUID, err error) {
			a.chatHub.OnDisconnect(id)
		},
		connLogger,
	)

	a.chatHub.OnConnect(conn, reqMeta.IP)
	connLogger.Info("Connection joined the chat group", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("Closing all active connections...")
	a.chatHub.CloseAll(errors.New("graceful shutdown"))

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
