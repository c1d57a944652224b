package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/domain/messages"
	"github.com/bryanwahyu/caniclickit/internal/middleware"
)

const (
	portWriteWait  = 10 * time.Second
	portPongWait   = 60 * time.Second
	portPingPeriod = portPongWait * 9 / 10
)

// PortRequest is one frame sent by a content script. ID correlates the
// reply; messages of unknown kind get none.
type PortRequest struct {
	ID      int64           `json:"id"`
	Message json.RawMessage `json:"message"`
}

type PortReply struct {
	ID       int64              `json:"id"`
	Response messages.Response `json:"response,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// GET /v1/port?tab=<id>
// A long-lived message port. Requests are dispatched concurrently and
// replies may arrive out of order.
func (r *Router) handlePort(w http.ResponseWriter, req *http.Request) {
	tab, err := middleware.ParseTabID(req.URL.Query().Get("tab"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(hr *http.Request) bool {
			return originAllowed(r.d.AllowedOrigins, hr.Header.Get("Origin"))
		},
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("port upgrade failed", zap.Error(err))
		return
	}
	if r.d.Metrics != nil {
		r.d.Metrics.PortSessions.Inc()
		defer r.d.Metrics.PortSessions.Dec()
	}

	p := &port{conn: conn, done: make(chan struct{})}
	defer p.close()
	go p.keepalive()

	ctx := req.Context()
	sender := messages.Sender{Tab: tab}
	_ = conn.SetReadDeadline(time.Now().Add(portPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(portPongWait))
	})

	for {
		var in PortRequest
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Debug("port closed", zap.Int("tab", int(tab)), zap.Error(err))
			}
			return
		}
		msg, err := readMessage(bytes.NewReader(in.Message))
		if err != nil {
			p.send(PortReply{ID: in.ID, Error: err.Error()})
			continue
		}
		id := in.ID
		r.d.Messages.Dispatch(ctx, sender, msg, func(resp messages.Response) {
			p.send(PortReply{ID: id, Response: resp})
		})
	}
}

type port struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	closed bool
}

// send serializes writes; gorilla connections allow one writer.
func (p *port) send(v PortReply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(portWriteWait))
	_ = p.conn.WriteJSON(v)
}

func (p *port) keepalive() {
	t := time.NewTicker(portPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			p.mu.Lock()
			err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(portWriteWait))
			p.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (p *port) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	_ = p.conn.Close()
}

// originAllowed matches an Origin against patterns with at most one '*'.
// Requests without an Origin come from local tools and are allowed.
func originAllowed(patterns []string, origin string) bool {
	if origin == "" {
		return true
	}
	origin = strings.ToLower(origin)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if p == "*" || p == origin {
			return true
		}
		if prefix, suffix, ok := strings.Cut(p, "*"); ok &&
			len(origin) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
