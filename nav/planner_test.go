package nav

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

// gatedDirections holds every Fetch until the test releases it, regardless
// of context cancellation, so completion order can be controlled.
type gatedDirections struct {
	mu      sync.Mutex
	gates   []chan struct{}
	started chan int
}

func newGatedDirections() *gatedDirections {
	return &gatedDirections{started: make(chan int, 16)}
}

func (g *gatedDirections) Fetch(_ context.Context, mode RouteMode, coords []orb.Point) (*DirectionsResult, error) {
	gate := make(chan struct{})
	g.mu.Lock()
	g.gates = append(g.gates, gate)
	n := len(g.gates) - 1
	g.mu.Unlock()

	g.started <- n
	<-gate

	wps := make([]Waypoint, len(coords))
	for i, c := range coords {
		wps[i] = Waypoint{Location: c, WaypointIndex: i}
	}
	line := append(orb.LineString{}, coords...)
	return &DirectionsResult{
		Mode:      mode,
		Waypoints: wps,
		Trips:     []Trip{{Geometry: line, Distance: 1000, Duration: 60}},
		Distance:  1000,
		Duration:  60,
	}, nil
}

func (g *gatedDirections) release(i int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gates[i])
}

func waitStarted(t *testing.T, g *gatedDirections) int {
	t.Helper()
	select {
	case n := <-g.started:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch to start")
		return -1
	}
}

func TestPlannerFetchesOnSelection(t *testing.T) {
	gated := newGatedDirections()
	p := NewPlanner(context.Background(), NewService(NavConfig{}, gated, nil, nil))
	defer p.Close()

	if err := p.SetLocations(locationsOf(ptA, ptB)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitStarted(t, gated)
	if st := p.State(); !st.Busy {
		t.Error("planner should be busy while fetching")
	}

	gated.release(0)
	p.Wait()

	st := p.State()
	if st.Busy {
		t.Error("planner still busy after fetch")
	}
	if st.Plan == nil || len(st.Plan.Waypoints) != 2 {
		t.Fatalf("plan = %+v", st.Plan)
	}
	if len(st.Layers) != 1 || len(st.Layers[0].Data.Features) != 1 {
		t.Errorf("layers = %+v", st.Layers)
	}
}

func TestPlannerDiscardsStaleResponse(t *testing.T) {
	gated := newGatedDirections()
	p := NewPlanner(context.Background(), NewService(NavConfig{}, gated, nil, nil))
	defer p.Close()

	if err := p.SetLocations(locationsOf(ptA, ptB)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := waitStarted(t, gated)
	if err := p.SetLocations(locationsOf(ptA, ptB, ptD)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := waitStarted(t, gated)

	// Newer request finishes first, then the older one arrives late.
	gated.release(second)
	gated.release(first)
	p.Wait()

	st := p.State()
	if st.Plan == nil {
		t.Fatal("no plan applied")
	}
	if got := len(st.Plan.Waypoints); got != 3 {
		t.Errorf("plan has %d waypoints, want 3 (stale response applied)", got)
	}
	if st.Busy {
		t.Error("planner still busy")
	}
}

func TestPlannerResetsBelowTwoLocations(t *testing.T) {
	stub := &stubDirections{res: roundTrip(orb.LineString{ptA, ptB, ptA}, ptA, ptB)}
	p := NewPlanner(context.Background(), NewService(NavConfig{}, stub, nil, nil))
	defer p.Close()

	if err := p.SetMode(ModeOptimize, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.SetLocations(locationsOf(ptA, ptB)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Wait()
	if p.State().Plan == nil {
		t.Fatal("expected a plan")
	}

	if err := p.SetLocations(locationsOf(ptA)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Wait()

	st := p.State()
	if st.Plan != nil {
		t.Error("plan not cleared")
	}
	if len(st.Layers) != 2 {
		t.Fatalf("got %d layers, want 2 empty optimize layers", len(st.Layers))
	}
	for _, l := range st.Layers {
		if len(l.Data.Features) != 0 {
			t.Errorf("layer %s not empty", l.SourceID)
		}
	}
	if stub.callCount() != 1 {
		t.Errorf("directions called %d times, want 1", stub.callCount())
	}
}

func TestPlannerErrorAndRetry(t *testing.T) {
	stub := &stubDirections{err: errors.New("connection refused")}
	p := NewPlanner(context.Background(), NewService(NavConfig{}, stub, nil, nil))
	defer p.Close()

	if err := p.SetLocations(locationsOf(ptA, ptD)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Wait()

	st := p.State()
	if st.Error == "" || st.Busy {
		t.Fatalf("state after failure = %+v", st)
	}

	stub.mu.Lock()
	stub.err = nil
	stub.res = &DirectionsResult{
		Waypoints: []Waypoint{{Location: ptA}, {Location: ptD}},
		Trips:     []Trip{{Geometry: orb.LineString{ptA, ptD}}},
	}
	stub.mu.Unlock()

	p.Retry()
	p.Wait()

	st = p.State()
	if st.Error != "" {
		t.Errorf("error not cleared: %q", st.Error)
	}
	if st.Plan == nil {
		t.Error("retry did not produce a plan")
	}
}

func TestPlannerRejectsInvalidInput(t *testing.T) {
	p := NewPlanner(context.Background(), NewService(NavConfig{}, &stubDirections{}, nil, nil))
	defer p.Close()

	if err := p.SetLocations([]Location{{Lon: 0, Lat: 95}}); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("err = %v, want ErrInvalidCoordinate", err)
	}
	if err := p.SetMode("scenic", ""); err == nil {
		t.Error("expected error for invalid mode")
	}
	if st := p.State(); st.Seq != 0 {
		t.Errorf("rejected input changed state: seq=%d", st.Seq)
	}
}

func TestSessions(t *testing.T) {
	sessions := NewSessions(context.Background(), NewService(NavConfig{}, &stubDirections{}, nil, nil))

	p := sessions.Create()
	got, err := sessions.Get(p.ID())
	if err != nil || got != p {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := sessions.Delete(p.ID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sessions.Get(p.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if err := sessions.Delete(p.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}
