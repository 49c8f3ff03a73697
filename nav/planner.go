package nav

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown planner session ids.
var ErrSessionNotFound = errors.New("nav: session not found")

// State is a snapshot of a planner session. Snapshots are never modified
// after they are handed out.
type State struct {
	ID        string       `json:"id"`
	Locations []Location   `json:"locations"`
	Mode      RouteMode    `json:"mode"`
	Units     DistanceUnit `json:"units"`
	Busy      bool         `json:"busy"`
	Seq       uint64       `json:"seq"`
	Plan      *RoutePlan   `json:"plan,omitempty"`
	Layers    []RouteLayer `json:"layers"`
	Viewport  Viewport     `json:"viewport"`
	Notice    string       `json:"notice,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Planner holds the selected locations and route of one map session and
// refetches the route whenever the selection or mode changes. Only the most
// recently started fetch may update the state.
type Planner struct {
	id     string
	svc    *Service
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	cancelFetch context.CancelFunc
	wg          sync.WaitGroup
}

// NewPlanner creates an idle planner. Fetches run on contexts derived from
// ctx; cancelling it or calling Close stops them.
func NewPlanner(ctx context.Context, svc *Service) *Planner {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	p := &Planner{
		id:     id,
		svc:    svc,
		log:    svc.log.With(zap.String("session", id)),
		ctx:    ctx,
		cancel: cancel,
		state: State{
			ID:       id,
			Mode:     DefaultMode,
			Units:    DefaultUnit,
			Layers:   EmptyLayers(DefaultMode),
			Viewport: DefaultViewport,
		},
	}
	return p
}

// ID returns the session id.
func (p *Planner) ID() string {
	return p.id
}

// State returns the current snapshot.
func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetLocations replaces the selected locations.
func (p *Planner) SetLocations(locs []Location) error {
	coords := make([]Location, len(locs))
	pts := make([]orb.Point, len(locs))
	for i, l := range locs {
		coords[i] = l
		pts[i] = l.Point()
	}
	if err := ValidateCoords(pts); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.state
	next.Locations = coords
	p.triggerLocked(next)
	return nil
}

// SetMode switches between standard and optimized routing.
func (p *Planner) SetMode(mode RouteMode, units DistanceUnit) error {
	if !mode.IsValid() {
		return ErrInvalidMode
	}
	if units == "" {
		units = DefaultUnit
	} else if !units.IsValid() {
		return ErrInvalidUnits
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.state
	next.Mode = mode
	next.Units = units
	p.triggerLocked(next)
	return nil
}

// Retry refetches the route for the current selection, typically after a
// failed fetch.
func (p *Planner) Retry() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triggerLocked(p.state)
}

// Wait blocks until no fetch is running.
func (p *Planner) Wait() {
	p.wg.Wait()
}

// Close cancels any running fetch.
func (p *Planner) Close() {
	p.cancel()
}

// triggerLocked installs next as the new state and starts a fetch when at
// least MinLocations are selected; otherwise the route is cleared.
// Must hold p.mu.
func (p *Planner) triggerLocked(next State) {
	if p.cancelFetch != nil {
		p.cancelFetch()
		p.cancelFetch = nil
	}
	next.Seq++
	next.Error = ""

	if len(next.Locations) < MinLocations {
		next.Busy = false
		next.Plan = nil
		next.Notice = ""
		next.Layers = EmptyLayers(next.Mode)
		p.state = next
		return
	}

	next.Busy = true
	p.state = next

	ctx, cancel := context.WithCancel(p.ctx)
	p.cancelFetch = cancel
	p.wg.Add(1)
	go p.fetch(ctx, cancel, next)
}

func (p *Planner) fetch(ctx context.Context, cancel context.CancelFunc, req State) {
	defer p.wg.Done()
	defer cancel()

	plan, err := p.svc.PlanRoute(ctx, req.Locations, req.Mode, req.Units)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Seq != req.Seq {
		p.log.Debug("discarding stale route", zap.Uint64("seq", req.Seq), zap.Uint64("current", p.state.Seq))
		return
	}

	next := p.state
	next.Busy = false
	p.cancelFetch = nil
	if err != nil {
		p.log.Warn("route fetch failed", zap.Uint64("seq", req.Seq), zap.Error(err))
		next.Error = err.Error()
		p.state = next
		return
	}

	next.Plan = plan
	next.Layers = plan.Layers
	next.Viewport = plan.Viewport
	next.Notice = plan.Notice
	p.state = next
}

// Sessions is an in-memory registry of planners.
type Sessions struct {
	svc *Service
	ctx context.Context

	mu       sync.RWMutex
	planners map[string]*Planner
}

// NewSessions creates an empty registry whose planners live as long as ctx.
func NewSessions(ctx context.Context, svc *Service) *Sessions {
	return &Sessions{svc: svc, ctx: ctx, planners: make(map[string]*Planner)}
}

// Create starts a new planner session.
func (s *Sessions) Create() *Planner {
	p := NewPlanner(s.ctx, s.svc)
	s.mu.Lock()
	s.planners[p.ID()] = p
	s.mu.Unlock()
	return p
}

// Get returns the planner for id.
func (s *Sessions) Get(id string) (*Planner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.planners[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return p, nil
}

// Delete closes and forgets the planner for id.
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	p, ok := s.planners[id]
	delete(s.planners, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	p.Close()
	return nil
}
