package nav

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
)

const directionsBody = `{
  "code": "Ok",
  "waypoints": [
    {"name": "Colfax Ave", "location": [-104.9903, 39.7392]},
    {"name": "Broadway", "location": [-104.96, 39.745]}
  ],
  "routes": [{
    "geometry": {"type": "LineString", "coordinates": [[-104.9903, 39.7392], [-104.98, 39.75], [-104.96, 39.745]]},
    "distance": 2400.5,
    "duration": 310.2,
    "legs": [{
      "distance": 2400.5,
      "duration": 310.2,
      "steps": [
        {"distance": 1200, "duration": 150, "name": "Colfax Ave", "mode": "driving",
         "maneuver": {"type": "depart", "instruction": "Head east on East Colfax Avenue."}},
        {"distance": 1200.5, "duration": 160.2, "name": "Broadway", "mode": "driving",
         "maneuver": {"type": "turn", "modifier": "right", "instruction": "Turn right onto Broadway Street."}},
        {"distance": 0, "duration": 0, "name": "Broadway", "mode": "driving",
         "maneuver": {"type": "arrive", "instruction": "You have arrived at your destination."}}
      ]
    }]
  }]
}`

const optimizedBody = `{
  "code": "Ok",
  "waypoints": [
    {"name": "A", "location": [-104.9903, 39.7392], "waypoint_index": 0, "trips_index": 0},
    {"name": "D", "location": [-104.96, 39.745], "waypoint_index": 2, "trips_index": 0},
    {"name": "B", "location": [-104.98, 39.75], "waypoint_index": 1, "trips_index": 0}
  ],
  "trips": [{
    "geometry": {"type": "LineString", "coordinates": [[-104.9903, 39.7392], [-104.98, 39.75], [-104.97, 39.76], [-104.96, 39.745], [-104.9903, 39.7392]]},
    "distance": 5230.4,
    "duration": 812.7,
    "legs": []
  }]
}`

func newFakeMapbox(t *testing.T, handler http.HandlerFunc) (*httptest.Server, NavConfig) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NavConfig{BaseURL: srv.URL, AccessToken: "pk.test"}
}

func TestAssembleQueryURL(t *testing.T) {
	cfg := NavConfig{BaseURL: "https://api.mapbox.com", AccessToken: "pk.abc"}
	coords := []orb.Point{{-104.9903, 39.7392}, {-104.96, 39.745}}

	cases := []struct {
		name string
		mode RouteMode
		want string
	}{
		{
			name: "standard",
			mode: ModeStandard,
			want: "https://api.mapbox.com/directions/v5/mapbox/driving/-104.9903,39.7392;-104.96,39.745" +
				"?overview=full&steps=true&geometries=geojson&access_token=pk.abc",
		},
		{
			name: "optimize",
			mode: ModeOptimize,
			want: "https://api.mapbox.com/optimized-trips/v1/mapbox/driving/-104.9903,39.7392;-104.96,39.745" +
				"?roundtrip=true&overview=full&steps=true&geometries=geojson&source=first&access_token=pk.abc",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AssembleQueryURL(cfg, tc.mode, coords); got != tc.want {
				t.Errorf("got  %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestAssembleQueryURLProfile(t *testing.T) {
	cfg := NavConfig{BaseURL: "http://example.test/", AccessToken: "t", Profile: "cycling"}
	got := AssembleQueryURL(cfg, ModeStandard, []orb.Point{{1, 2}, {3, 4}})
	if !strings.HasPrefix(got, "http://example.test/directions/v5/mapbox/cycling/1,2;3,4?") {
		t.Errorf("unexpected url %s", got)
	}
}

func TestValidateCoords(t *testing.T) {
	cases := []struct {
		name    string
		coords  []orb.Point
		wantErr bool
	}{
		{name: "valid", coords: []orb.Point{{-104.99, 39.73}, {180, -90}}},
		{name: "nan", coords: []orb.Point{{math.NaN(), 1}}, wantErr: true},
		{name: "inf", coords: []orb.Point{{1, math.Inf(1)}}, wantErr: true},
		{name: "lat out of range", coords: []orb.Point{{1, 91}}, wantErr: true},
		{name: "lon out of range", coords: []orb.Point{{-181, 1}}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCoords(tc.coords)
			if tc.wantErr && !errors.Is(err, ErrInvalidCoordinate) {
				t.Fatalf("err = %v, want ErrInvalidCoordinate", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestClientFetchStandard(t *testing.T) {
	var gotPath, gotToken string
	_, cfg := newFakeMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		w.Write([]byte(directionsBody))
	})

	c := NewClient(cfg, nil)
	res, err := c.Fetch(context.Background(), ModeStandard, []orb.Point{{-104.9903, 39.7392}, {-104.96, 39.745}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/directions/v5/mapbox/driving/-104.9903,39.7392;-104.96,39.745" {
		t.Errorf("path = %s", gotPath)
	}
	if gotToken != "pk.test" {
		t.Errorf("token = %q", gotToken)
	}
	if res.Distance != 2400.5 || res.Duration != 310.2 {
		t.Errorf("totals = %v/%v", res.Distance, res.Duration)
	}
	if len(res.Trips) != 1 || len(res.Trips[0].Geometry) != 3 {
		t.Fatalf("trips = %+v", res.Trips)
	}
	if len(res.Waypoints) != 2 || res.Waypoints[1].WaypointIndex != 1 {
		t.Errorf("waypoints = %+v", res.Waypoints)
	}
	if res.Notice != "" {
		t.Errorf("unexpected notice %q", res.Notice)
	}

	wantSteps := []RouteStep{
		{Number: 1, Description: "Head east on E Colfax Ave", Distance: 1200, Icon: "Drive"},
		{Number: 2, Description: "Turn right on Broadway St", Distance: 1200.5, Icon: "Right"},
		{Number: 3, Description: "Arrive at destination", Distance: 0, Icon: "building"},
	}
	if len(res.Steps) != len(wantSteps) {
		t.Fatalf("got %d steps, want %d", len(res.Steps), len(wantSteps))
	}
	for i, want := range wantSteps {
		if res.Steps[i] != want {
			t.Errorf("step %d = %+v, want %+v", i, res.Steps[i], want)
		}
	}
}

func TestClientFetchOptimize(t *testing.T) {
	var gotQuery string
	_, cfg := newFakeMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/optimized-trips/v1/mapbox/driving/") {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(optimizedBody))
	})

	c := NewClient(cfg, nil)
	res, err := c.Fetch(context.Background(), ModeOptimize, []orb.Point{ptA, ptB, ptD})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range []string{"roundtrip=true", "source=first", "geometries=geojson"} {
		if !strings.Contains(gotQuery, p) {
			t.Errorf("query %q missing %s", gotQuery, p)
		}
	}
	if len(res.Trips[0].Geometry) != 5 {
		t.Errorf("geometry has %d points", len(res.Trips[0].Geometry))
	}
	if res.Waypoints[1].WaypointIndex != 2 {
		t.Errorf("waypoint_index not decoded: %+v", res.Waypoints[1])
	}
}

func TestClientFetchTruncatesOverLimit(t *testing.T) {
	var sent int
	_, cfg := newFakeMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		sent = len(strings.Split(parts[len(parts)-1], ";"))
		w.Write([]byte(directionsBody))
	})

	coords := make([]orb.Point, 15)
	for i := range coords {
		coords[i] = orb.Point{-104.9 + float64(i)*0.01, 39.7}
	}

	res, err := NewClient(cfg, nil).Fetch(context.Background(), ModeStandard, coords)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != MaxWaypoints {
		t.Errorf("sent %d coordinates, want %d", sent, MaxWaypoints)
	}
	if res.Notice != MaxPointsNotice {
		t.Errorf("notice = %q", res.Notice)
	}
}

func TestClientFetchErrors(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{name: "no route", status: http.StatusOK, body: `{"code":"NoRoute","message":"No route found"}`, wantCode: "NoRoute"},
		{name: "too many coordinates", status: http.StatusUnprocessableEntity, body: `{"code":"InvalidInput","message":"Too many coordinates"}`, wantCode: "InvalidInput"},
		{name: "unauthorized plain body", status: http.StatusUnauthorized, body: `Not Authorized`, wantCode: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, cfg := newFakeMapbox(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			_, err := NewClient(cfg, nil).Fetch(context.Background(), ModeStandard, []orb.Point{ptA, ptB})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Status != tc.status || apiErr.Code != tc.wantCode {
				t.Errorf("got %+v", apiErr)
			}
		})
	}
}

func TestClientFetchRejectsBeforeCalling(t *testing.T) {
	var calls int32
	_, cfg := newFakeMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	c := NewClient(cfg, nil)

	if _, err := c.Fetch(context.Background(), ModeStandard, []orb.Point{ptA}); !errors.Is(err, ErrTooFewLocations) {
		t.Errorf("err = %v, want ErrTooFewLocations", err)
	}
	if _, err := c.Fetch(context.Background(), ModeStandard, []orb.Point{ptA, {0, 100}}); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("err = %v, want ErrInvalidCoordinate", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("upstream called %d times", n)
	}
}

func TestClientFetchNetworkError(t *testing.T) {
	srv, cfg := newFakeMapbox(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := NewClient(cfg, nil).Fetch(context.Background(), ModeStandard, []orb.Point{ptA, ptB})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("network failure reported as API error: %v", err)
	}
}

func TestRedactToken(t *testing.T) {
	got := redactToken("https://x/y?overview=full&access_token=secret")
	if strings.Contains(got, "secret") {
		t.Errorf("token leaked: %s", got)
	}
}

func TestGetStepIcon(t *testing.T) {
	cases := []struct {
		typ, modifier, mode string
		want                string
	}{
		{"turn", "left", "driving", "Left"},
		{"turn", "sharp right", "driving", "Right"},
		{"fork", "slight left", "driving", "left"},
		{"continue", "straight", "driving", "Straight"},
		{"merge", "slight right", "driving", "Merge"},
		{"off ramp", "right", "driving", "Exit"},
		{"notification", "", "ferry", "Ferry"},
		{"arrive", "", "driving", "building"},
		{"new name", "", "driving", ""},
	}
	for _, tc := range cases {
		if got := getStepIcon(tc.typ, tc.modifier, tc.mode); got != tc.want {
			t.Errorf("getStepIcon(%q, %q, %q) = %q, want %q", tc.typ, tc.modifier, tc.mode, got, tc.want)
		}
	}
}
