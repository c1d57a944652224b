// Package httpserver exposes the coordinator's message router and tab
// feed over HTTP for content scripts, the popup and local tools.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/domain/messages"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/middleware"
)

const (
	HeaderTabID  = "X-Tab-ID"
	maxBodyBytes = 64 << 10
)

// Dispatcher is the message router.
type Dispatcher interface {
	Dispatch(ctx context.Context, sender messages.Sender, msg messages.Message, reply func(messages.Response)) bool
	Call(ctx context.Context, sender messages.Sender, msg messages.Message) (messages.Response, bool)
}

// TabFeed records tab state reported by the browser bridge.
type TabFeed interface {
	Update(tab platform.Tab)
	Remove(id platform.TabID)
}

// TabLifecycle reacts to a tab update (badge reset, page trust).
type TabLifecycle interface {
	OnTabUpdated(ctx context.Context, tab platform.Tab)
}

type BadgeReader interface {
	Get(tab platform.TabID) (platform.BadgeState, bool)
}

type Deps struct {
	Messages  Dispatcher
	Tabs      TabFeed
	Lifecycle TabLifecycle
	Badges    BadgeReader
	Logger    *zap.Logger
	Metrics   *middleware.Metrics
	// Checkers back /health; Ready backs /ready.
	Checkers map[string]middleware.HealthChecker
	Ready    middleware.HealthChecker

	AuthToken      string
	JWTSecret      []byte
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
}

type Router struct {
	d      Deps
	logger *zap.Logger
}

var errBadRequest = errors.New("bad request")

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := &Router{d: d, logger: d.Logger}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.Logging(d.Logger))
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderTabID, middleware.HeaderRequestID},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	if d.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.Auth(d.AuthToken, d.JWTSecret))
		if d.RateLimiter != nil {
			rt.Use(middleware.RateLimit(d.RateLimiter))
		}

		rt.Get("/v1/port", r.handlePort)

		rt.Group(func(gz chi.Router) {
			gz.Use(func(h http.Handler) http.Handler { return gzhttp.GzipHandler(h) })
			gz.Post("/v1/messages", r.wrap(r.handleMessage))
			gz.Post("/v1/tabs/{tab}/events", r.wrap(r.handleTabEvent))
			gz.Get("/v1/tabs/{tab}/badge", r.wrap(r.handleBadge))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, errBadRequest) {
				writeJSON(w, http.StatusBadRequest, messages.ErrorReply{Error: err.Error()})
				return
			}
			r.logger.Error("handler failed", zap.String("path", req.URL.Path), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, messages.ErrorReply{Error: "internal error"})
		}
	}
}

// POST /v1/messages
// Body: {"type": "...", "payload": ...}; sender tab in X-Tab-ID.
func (r *Router) handleMessage(w http.ResponseWriter, req *http.Request) error {
	tab, err := middleware.ParseTabID(req.Header.Get(HeaderTabID))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	msg, err := readMessage(req.Body)
	if err != nil {
		return err
	}
	if bf, ok := msg.(messages.BadgeFallback); ok {
		r.logger.Debug("badge fallback relayed",
			zap.Int("tab", int(tab)),
			zap.String("verdict", string(bf.Verdict)),
			zap.String("summary", middleware.SanitizeText(bf.Summary)),
		)
	}

	resp, ok := r.d.Messages.Call(req.Context(), messages.Sender{Tab: tab}, msg)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func readMessage(body io.Reader) (messages.Message, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body too large", errBadRequest)
	}
	msg, err := messages.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if scan, ok := msg.(messages.ScanURL); ok {
		if err := middleware.ValidateURL(scan.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	return msg, nil
}

type tabEvent struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// TabStatusRemoved closes a tab in the feed.
const TabStatusRemoved = "removed"

// POST /v1/tabs/{tab}/events
func (r *Router) handleTabEvent(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseTabID(chi.URLParam(req, "tab"))
	if err != nil || id == 0 {
		return fmt.Errorf("%w: invalid tab", errBadRequest)
	}
	var body tabEvent
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if body.URL != "" {
		if err := middleware.ValidateURL(body.URL); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}

	if strings.EqualFold(body.Status, TabStatusRemoved) {
		r.d.Tabs.Remove(id)
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	tab := platform.Tab{ID: id, URL: body.URL, Status: body.Status, Active: body.Active}
	r.d.Tabs.Update(tab)
	if r.d.Lifecycle != nil {
		// page trust may take the full scan timeout; answer the bridge now
		go r.d.Lifecycle.OnTabUpdated(context.WithoutCancel(req.Context()), tab)
	}
	w.WriteHeader(http.StatusAccepted)
	return nil
}

// GET /v1/tabs/{tab}/badge
func (r *Router) handleBadge(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseTabID(chi.URLParam(req, "tab"))
	if err != nil || id == 0 {
		return fmt.Errorf("%w: invalid tab", errBadRequest)
	}
	st, ok := r.d.Badges.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, messages.ErrorReply{Error: "no badge"})
		return nil
	}
	writeJSON(w, http.StatusOK, st)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
