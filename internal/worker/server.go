// Package worker exposes the engine over a WebSocket so a run can be handed
// off to a separate process. Each message carries a whole input payload and
// is answered with a whole output payload.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"helixpi/internal/model"
)

const (
	TypeRun    = "run"
	TypeResult = "result"
	TypeError  = "error"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20
	sendBuffer     = 16
)

// RunFunc is the engine entry point as seen by the worker.
type RunFunc func(ctx context.Context, input model.Input, seed int64) (model.Output, error)

type Request struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	Seed  int64       `json:"seed"`
	Input model.Input `json:"input"`
}

type Response struct {
	Type   string        `json:"type"`
	ID     string        `json:"id"`
	Output *model.Output `json:"output,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type Server struct {
	run      RunFunc
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(run RunFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		run:    run,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler routes /ws to the WebSocket endpoint and /healthz to a liveness
// probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{
		server: s,
		conn:   conn,
		send:   make(chan Response, sendBuffer),
	}
	go c.writePump()
	c.readPump(r.Context())
}

type client struct {
	server *Server
	conn   *websocket.Conn
	send   chan Response
}

// readPump handles requests until the peer disconnects. Runs execute
// concurrently and are cancelled when the connection goes away.
func (c *client) readPump(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	var runs conc.WaitGroup
	defer func() {
		cancel()
		runs.Wait()
		close(c.send)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket closed unexpectedly", "err", err)
			}
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.send <- Response{Type: TypeError, Error: fmt.Sprintf("decode request: %v", err)}
			continue
		}
		if req.ID == "" {
			req.ID = ulid.Make().String()
		}
		if req.Type != TypeRun {
			c.send <- Response{Type: TypeError, ID: req.ID, Error: fmt.Sprintf("unknown message type %q", req.Type)}
			continue
		}
		runs.Go(func() {
			c.send <- c.server.handle(ctx, req)
		})
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	var (
		output model.Output
		err    error
	)
	started := time.Now()
	if recovered := panics.Try(func() {
		output, err = s.run(ctx, req.Input, req.Seed)
	}); recovered != nil {
		err = recovered.AsError()
	}
	if err != nil {
		s.logger.Error("run failed", "id", req.ID, "err", err)
		return Response{Type: TypeError, ID: req.ID, Error: err.Error()}
	}
	s.logger.Info("run finished", "id", req.ID, "seed", req.Seed, "elapsed", time.Since(started))
	return Response{Type: TypeResult, ID: req.ID, Output: &output}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case resp, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(resp); err != nil {
				c.server.logger.Warn("write response failed", "id", resp.ID, "err", err)
				c.drain()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain()
				return
			}
		}
	}
}

// drain discards responses after a write failure so running requests never
// block on a dead connection.
func (c *client) drain() {
	_ = c.conn.Close()
	go func() {
		for range c.send {
		}
	}()
}
