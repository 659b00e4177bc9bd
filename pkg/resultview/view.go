package resultview

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/docview/pkg/docclient"
)

// ParamDocID is the path parameter that carries the document identifier.
const ParamDocID = "doc_id"

// Lookup fetches a document record by identifier.
type Lookup interface {
	GetDocument(ctx context.Context, id string) (docclient.Record, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, id string) (docclient.Record, error)

// GetDocument calls f(ctx, id).
func (f LookupFunc) GetDocument(ctx context.Context, id string) (docclient.Record, error) {
	return f(ctx, id)
}

// Params are the path parameters of the current navigation.
type Params map[string]string

// DocID returns the document identifier. An empty identifier counts as
// absent.
func (p Params) DocID() (string, bool) {
	id, ok := p[ParamDocID]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// State is a snapshot of the view's state slot.
type State struct {
	Record docclient.Record
	Loaded bool
}

// Option configures a View.
type Option func(*View)

// WithLogger sets the logger used for lookup failures.
func WithLogger(logger hclog.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithContext sets the context lookups run under. Lookups outlive the
// render that issued them, so this is usually the lifetime of the host.
func WithContext(ctx context.Context) Option {
	return func(v *View) {
		if ctx != nil {
			v.ctx = ctx
		}
	}
}

// WithDiscardStale drops responses for identifiers that are no longer
// current.
func WithDiscardStale(discard bool) Option {
	return func(v *View) {
		v.discardStale = discard
	}
}

// View is the document result view. It is safe for concurrent use.
type View struct {
	lookup       Lookup
	logger       hclog.Logger
	ctx          context.Context
	discardStale bool

	mu       sync.Mutex
	rendered bool
	key      string
	state    State
	changed  chan struct{}
}

// New creates a view that fetches documents from lookup.
func New(lookup Lookup, opts ...Option) *View {
	v := &View{
		lookup:  lookup,
		logger:  hclog.NewNullLogger(),
		ctx:     context.Background(),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Render runs the identifier-keyed effect for params and returns the page
// for the current state. The returned page reflects the state before any
// lookup issued by this call has resolved.
func (v *View) Render(params Params) Page {
	id, ok := params.DocID()

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.rendered || id != v.key {
		v.rendered = true
		v.key = id
		if ok {
			go v.fetch(id)
		}
	}

	return v.pageLocked()
}

// State returns a snapshot of the state slot.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Page returns the page for the current state without running the effect.
func (v *View) Page() Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pageLocked()
}

// Changed returns a channel that is closed on the next write to the state
// slot.
func (v *View) Changed() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.changed
}

// WaitLoaded blocks until the view holds a record or ctx is done. The view
// sets no deadline of its own.
func (v *View) WaitLoaded(ctx context.Context) (Page, error) {
	for {
		v.mu.Lock()
		if v.state.Loaded {
			page := v.pageLocked()
			v.mu.Unlock()
			return page, nil
		}
		ch := v.changed
		v.mu.Unlock()

		select {
		case <-ctx.Done():
			return LoadingPage(), ctx.Err()
		case <-ch:
		}
	}
}

func (v *View) fetch(id string) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("document lookup panicked", "doc_id", id, "panic", fmt.Sprint(r))
		}
	}()

	record, err := v.lookup.GetDocument(v.ctx, id)
	if err != nil {
		v.logger.Error("document lookup failed", "doc_id", id, "error", err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.discardStale && v.key != id {
		v.logger.Debug("discarding stale document response",
			"doc_id", id,
			"current_doc_id", v.key,
		)
		return
	}

	v.state = State{Record: record, Loaded: true}
	close(v.changed)
	v.changed = make(chan struct{})
}

func (v *View) pageLocked() Page {
	if !v.state.Loaded {
		return LoadingPage()
	}

	content, err := Format(v.state.Record)
	if err != nil {
		v.logger.Warn("error formatting document record", "error", err)
		content = v.state.Record.String()
	}
	return Page{
		Heading: Heading,
		Content: content,
		Record:  v.state.Record,
	}
}
