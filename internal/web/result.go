package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/docview/pkg/resultview"
)

//go:embed templates/*
var templatesFS embed.FS

// SessionCookie is the cookie that ties a browser to its result view.
const SessionCookie = "docview_session"

const (
	defaultRefreshInterval = time.Second
	defaultSessionTTL      = 30 * time.Minute
	defaultLoadWait        = 500 * time.Millisecond
	defaultMaxSessions     = 1000
)

// Options configures a ResultHandler.
type Options struct {
	// Lookup fetches documents for the views.
	Lookup resultview.Lookup

	// Logger defaults to a null logger.
	Logger hclog.Logger

	// Context bounds every lookup. Defaults to context.Background().
	Context context.Context

	// DiscardStale is passed to every view.
	DiscardStale bool

	// RefreshInterval is how often a loading page re-renders.
	RefreshInterval time.Duration

	// SessionTTL is how long an idle session keeps its view.
	SessionTTL time.Duration

	// LoadWait is how long a request for a document that is still loading
	// waits for the record before the loading page is sent. Clients that
	// drop the session cookie get a fresh view on every request and rely
	// on this wait to ever see a record. Negative disables the wait.
	LoadWait time.Duration

	// MaxSessions caps the number of live sessions. The least recently seen
	// session is evicted to make room.
	MaxSessions int
}

type session struct {
	view     *resultview.View
	lastSeen time.Time
}

// ResultHandler serves the document result page. Each browser session owns
// one view, so moving between documents in a session re-runs the view's
// identifier-keyed effect.
type ResultHandler struct {
	opts Options
	tmpl *template.Template
	log  hclog.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewResultHandler creates a result page handler.
func NewResultHandler(opts Options) (*ResultHandler, error) {
	if opts.Lookup == nil {
		return nil, fmt.Errorf("lookup is required")
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.LoadWait == 0 {
		opts.LoadWait = defaultLoadWait
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/result.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("error parsing result template: %w", err)
	}

	return &ResultHandler{
		opts:     opts,
		tmpl:     tmpl,
		log:      opts.Logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}, nil
}

// Register adds the result routes to mux.
func (h *ResultHandler) Register(mux *http.ServeMux) {
	mux.Handle("GET /result", h)
	mux.Handle("GET /result/{doc_id}", h)
}

// ServeHTTP renders the result page for the doc_id path value.
func (h *ResultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	view := h.viewFor(w, r)

	params := resultview.Params{}
	id := r.PathValue(resultview.ParamDocID)
	if id != "" {
		params[resultview.ParamDocID] = id
	}
	page := view.Render(params)

	if page.Loading && id != "" && h.opts.LoadWait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), h.opts.LoadWait)
		// On timeout WaitLoaded returns the loading page.
		page, _ = view.WaitLoaded(ctx)
		cancel()
	}

	w.Header().Set("Cache-Control", "no-store")

	if wantsText(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := page.WriteText(w); err != nil {
			h.log.Error("error writing result page", "error", err)
		}
		return
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, pageData{
		Page:           page,
		LoadingText:    resultview.LoadingText,
		RefreshSeconds: refreshSeconds(h.opts.RefreshInterval),
	}); err != nil {
		h.log.Error("error executing result template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Debug("error writing response", "error", err)
	}
}

// Sessions returns the number of live sessions.
func (h *ResultHandler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// viewFor returns the session's view, creating the session when the
// request carries no known session cookie.
func (h *ResultHandler) viewFor(w http.ResponseWriter, r *http.Request) *resultview.View {
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.evictLocked(now)

	if c, err := r.Cookie(SessionCookie); err == nil {
		if s, ok := h.sessions[c.Value]; ok {
			s.lastSeen = now
			return s.view
		}
	}

	if len(h.sessions) >= h.opts.MaxSessions {
		h.evictOldestLocked()
	}

	id := uuid.NewString()
	s := &session{
		view: resultview.New(h.opts.Lookup,
			resultview.WithLogger(h.log.Named("view").With("session", id)),
			resultview.WithContext(h.opts.Context),
			resultview.WithDiscardStale(h.opts.DiscardStale),
		),
		lastSeen: now,
	}
	h.sessions[id] = s

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.Debug("created result view session", "session", id)

	return s.view
}

func (h *ResultHandler) evictLocked(now time.Time) {
	for id, s := range h.sessions {
		if now.Sub(s.lastSeen) > h.opts.SessionTTL {
			delete(h.sessions, id)
			h.log.Debug("evicted idle result view session", "session", id)
		}
	}
}

func (h *ResultHandler) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, s := range h.sessions {
		if oldestID == "" || s.lastSeen.Before(oldest) {
			oldestID, oldest = id, s.lastSeen
		}
	}
	if oldestID != "" {
		delete(h.sessions, oldestID)
		h.log.Debug("evicted result view session at capacity", "session", oldestID)
	}
}

type pageData struct {
	resultview.Page
	LoadingText    string
	RefreshSeconds int
}

func refreshSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func wantsText(r *http.Request) bool {
	if r.URL.Query().Get("format") == "text" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.HasPrefix(accept, "text/plain")
}
