package client

import (
	"strings"
	"sync"
)

// Router is the app's navigation surface.
type Router interface {
	Location() string
	Replace(path string)
	Subscribe(fn func(location string)) (unsubscribe func())
}

// GateConfig names the routes the Gate redirects between.
type GateConfig struct {
	AuthGroup  string
	LoginRoute string
	MainRoute  string
}

// DefaultGateConfig matches the app's route layout.
func DefaultGateConfig() GateConfig {
	return GateConfig{AuthGroup: "/auth", LoginRoute: "/auth/login", MainRoute: "/home"}
}

func (g GateConfig) inAuthGroup(loc string) bool {
	return loc == g.AuthGroup || strings.HasPrefix(loc, strings.TrimRight(g.AuthGroup, "/")+"/")
}

// Decide returns where the app must be sent for the given state and
// location, or ok=false to stay put.
func Decide(cfg GateConfig, st State, location string) (target string, ok bool) {
	switch st.Status {
	case Authenticated:
		if cfg.inAuthGroup(location) {
			return cfg.MainRoute, true
		}
	case Unauthenticated:
		if !cfg.inAuthGroup(location) {
			return cfg.LoginRoute, true
		}
	}
	return "", false
}

// Gate keeps the router consistent with the session state. It does nothing
// while the session is still bootstrapping.
type Gate struct {
	cfg    GateConfig
	state  *StateStore
	router Router

	mu     sync.Mutex
	last   State
	unsubs []func()
}

// NewGate subscribes to state and router changes and applies the redirect
// rules once immediately.
func NewGate(cfg GateConfig, state *StateStore, router Router) *Gate {
	return &Gate{cfg: cfg, state: state, router: router}
}

// Start subscribes to both sources and applies the current state once.
func (g *Gate) Start() {
	g.mu.Lock()
	g.unsubs = append(g.unsubs,
		g.state.Subscribe(g.onState),
		g.router.Subscribe(func(string) { g.evaluate() }),
	)
	g.last = g.state.Get()
	g.mu.Unlock()
	g.evaluate()
}

// Stop detaches the gate. It is safe to call more than once.
func (g *Gate) Stop() {
	g.mu.Lock()
	unsubs := g.unsubs
	g.unsubs = nil
	g.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (g *Gate) onState(st State) {
	g.mu.Lock()
	g.last = st
	g.mu.Unlock()
	g.evaluate()
}

func (g *Gate) evaluate() {
	g.mu.Lock()
	st := g.last
	g.mu.Unlock()
	if target, ok := Decide(g.cfg, st, g.router.Location()); ok {
		g.router.Replace(target)
	}
}

// MemoryRouter is an in-process Router that records every replacement.
type MemoryRouter struct {
	mu        sync.Mutex
	location  string
	history   []string
	nextID    int
	listeners map[int]func(string)
}

// NewMemoryRouter starts at the given location.
func NewMemoryRouter(start string) *MemoryRouter {
	return &MemoryRouter{location: start, listeners: make(map[int]func(string))}
}

// Location returns the current path.
func (r *MemoryRouter) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Navigate is a user-initiated move; it notifies listeners like Replace.
func (r *MemoryRouter) Navigate(path string) { r.Replace(path) }

// Replace navigates without history and notifies subscribers.
func (r *MemoryRouter) Replace(path string) {
	r.mu.Lock()
	if r.location == path {
		r.mu.Unlock()
		return
	}
	r.location = path
	r.history = append(r.history, path)
	fns := make([]func(string), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(path)
	}
}

// History lists every location set since creation, oldest first.
func (r *MemoryRouter) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Subscribe registers fn for location changes.
func (r *MemoryRouter) Subscribe(fn func(string)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}
