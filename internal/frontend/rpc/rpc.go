// Package rpc implements the WebSocket RPC front-end: one connection per
// client, bearer-token authenticated, exchanging newline-delimited JSON
// frames that carry user turns in and Wire events out.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/auth"
	"github.com/soulwire/soulwire/internal/wire"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 45 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// frameType discriminates the frames exchanged over the socket.
type frameType string

const (
	// frameTurn and frameApprovalResolve are client-to-server; frameEvent
	// and frameError are server-to-client. A pending ApprovalRequest and
	// its eventual ApprovalRequestResolved both arrive as ordinary
	// frameEvent frames (their Kind distinguishes them) since they flow
	// through the same Wire the rest of the turn's output does.
	frameTurn            frameType = "turn"
	frameEvent           frameType = "event"
	frameApprovalResolve frameType = "approval_resolve"
	frameError           frameType = "error"
)

// frame is the wire format for one RPC message in either direction.
type frame struct {
	Type      frameType       `json:"type"`
	Input     string          `json:"input,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Response  wire.Response   `json:"response,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Config bundles what the RPC front-end needs.
type Config struct {
	Agent    *agent.Agent
	Wire     *wire.Wire
	Approval *approval.Broker

	// JWT validates the bearer token in a connection's Authorization
	// header (or ?token= query param for browser clients). Nil disables
	// auth entirely, for a loopback-only deployment.
	JWT *auth.JWTService

	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Server upgrades HTTP connections to the RPC WebSocket protocol.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// New constructs an RPC Server.
func New(cfg Config) *Server {
	return &Server{
		cfg: cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates and upgrades the connection, then drives it to
// completion: one connection serves exactly one Wire-backed conversation.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.JWT != nil {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := s.cfg.JWT.Validate(token); err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Error("rpc: upgrade", "error", err)
		return
	}
	defer conn.Close()

	c := &connection{cfg: s.cfg, conn: conn}
	c.run(r.Context())
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	return r.URL.Query().Get("token")
}

// connection drives one authenticated WebSocket's lifetime.
type connection struct {
	cfg  Config
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ui := c.cfg.Wire.UISide(true)
	defer ui.Close()

	go c.pingLoop(ctx)
	go c.renderLoop(ctx, ui)
	if c.cfg.Approval != nil {
		go c.approvalLoop(ctx)
	}

	for {
		var in frame
		if err := c.conn.ReadJSON(&in); err != nil {
			cancel()
			return
		}
		switch in.Type {
		case frameTurn:
			if err := c.cfg.Agent.RunTurn(ctx, in.Input); err != nil && !errors.Is(err, context.Canceled) {
				c.send(frame{Type: frameError, Message: err.Error()})
			}
		case frameApprovalResolve:
			if c.cfg.Approval != nil {
				if err := c.cfg.Approval.Resolve(in.RequestID, in.Response); err != nil {
					c.send(frame{Type: frameError, Message: err.Error()})
				}
			}
		}
	}
}

func (c *connection) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *connection) renderLoop(ctx context.Context, ui *wire.UISide) {
	for {
		msg, ok := ui.Receive(ctx)
		if !ok {
			return
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		c.send(frame{Type: frameEvent, Kind: wire.Kind(msg), Event: payload})
	}
}

// approvalLoop forwards pending approval requests to the client and blocks
// on each one's resolution, which arrives via an approval_resolve frame
// handled in run's read loop.
func (c *connection) approvalLoop(ctx context.Context) {
	soul := c.cfg.Wire.SoulSide()
	for {
		req := c.cfg.Approval.FetchRequest()
		if req == nil {
			return
		}
		soul.Send(req)
		resp := req.Wait()
		soul.Send(wire.ApprovalRequestResolved{RequestID: req.ID, Response: resp})
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *connection) send(f frame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(f)
}
