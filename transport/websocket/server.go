package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/rocketscienceinc/gridarbiter/internal/entity"
	"github.com/rocketscienceinc/gridarbiter/internal/usecase"
)

type registry interface {
	JoinSession(ctx context.Context, conn usecase.Conn) (*usecase.Session, entity.Team, error)
	Dispatch(ctx context.Context, conn usecase.Conn, action entity.Action) error
	Reject(conn usecase.Conn)
	Leave(ctx context.Context, conn usecase.Conn)
}

type Server struct {
	logger   *slog.Logger
	registry registry
	validate *validator.Validate
	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, client *Client, payload []byte) error
}

func New(logger *slog.Logger, registry registry, allowedOrigins []string) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		registry: registry,
		validate: validator.New(),

		handlers: make(map[string]func(context.Context, *Client, []byte) error),
	}

	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			origin := req.Header.Get("Origin")

			return origin == "" || lo.Contains(allowedOrigins, "*") || lo.Contains(allowedOrigins, origin)
		},
	}

	server.handlers[messageTypeMove] = server.handleMove
	server.handlers[messageTypePlace] = server.handlePlace

	return server
}

// Handler - serves the game socket on /ws and on / for clients that connect to the bare host.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection, seats it in a session and serves it until it closes.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := newClient(conn, that.logger)
	go client.writeMessages(ctx)

	defer func() {
		client.Close()
		that.registry.Leave(context.WithoutCancel(ctx), client)
		log.Info("WebSocket connection closed", "conn", client.ID())
	}()

	session, team, err := that.registry.JoinSession(ctx, client)
	if err != nil {
		log.Error("failed to join session", "conn", client.ID(), "error", err)
		return
	}

	log.Info("WebSocket connection established", "conn", client.ID(), "session", session.ID, "team", team)

	if err = client.readMessages(func(payload []byte) {
		that.handleMessage(ctx, client, payload)
	}); err != nil {
		log.Warn("connection closed unexpectedly", "conn", client.ID(), "error", err)
	}
}

// handleMessage - routes one frame by its type. Anything that cannot be routed is answered with invalid.
func (that *Server) handleMessage(ctx context.Context, client *Client, payload []byte) {
	log := that.logger.With("method", "handleMessage", "conn", client.ID())

	message, err := that.decodeMessage(payload)
	if err != nil {
		log.Debug("failed to decode message", "error", err)
		that.registry.Reject(client)

		return
	}

	handler, ok := that.handlers[message.Type]
	if !ok {
		log.Debug("unknown message type", "type", message.Type)
		that.registry.Reject(client)

		return
	}

	if err = handler(ctx, client, payload); err != nil {
		log.Debug("message rejected", "type", message.Type, "error", err)
	}
}
