package nav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a full set of locations is well under it.
const maxBodyBytes = 64 << 10

// Handler serves the /nav HTTP API
type Handler struct {
	svc      *Service
	sessions *Sessions
	log      *zap.Logger
}

// NewHandler creates a Handler. A nil logger disables logging.
func NewHandler(svc *Service, sessions *Sessions, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, sessions: sessions, log: log}
}

// Routes returns the router for everything under /nav.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/geocode", h.HandleGeocode)
	r.Post("/geocode", h.HandleGeocode)
	r.Get("/route", h.HandleRoute)
	r.Post("/route", h.HandleRoute)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Put("/locations", h.setSessionLocations)
			r.Put("/mode", h.setSessionMode)
			r.Post("/retry", h.retrySession)
		})
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("request_id", uuid.NewString()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Helper functions for formatting
func formatDuration(seconds float64) string {
	hours := int(seconds / 3600)
	minutes := int((seconds - float64(hours*3600)) / 60)

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dhr %dmin", hours, minutes)
		}
		return fmt.Sprintf("%dhr", hours)
	}
	return fmt.Sprintf("%dmin", minutes)
}

func formatDistance(distance float64, units DistanceUnit) string {
	if units == UnitMiles {
		if distance < 0.1 {
			feet := distance * 5280
			return fmt.Sprintf("%.0fft", feet)
		}
		return fmt.Sprintf("%.1fmi", distance)
	}
	// For kilometers
	if distance < 1.0 {
		return fmt.Sprintf("%.0fm", distance*1000)
	}
	return fmt.Sprintf("%.1fkm", distance)
}

func writePlainTextRoute(w http.ResponseWriter, plan *RoutePlan) {
	w.Header().Set("Content-Type", "text/plain")

	// Write duration and distance
	fmt.Fprintf(w, "%s\n", formatDuration(plan.Duration))
	fmt.Fprintf(w, "%s\n", formatDistance(plan.Distance, plan.Units))
	fmt.Fprintf(w, "%d\n", len(plan.Steps))

	for i, step := range plan.Steps {
		fmt.Fprintf(w, "%s\n", step.Icon)

		// The arrival step has no distance of its own
		if i < len(plan.Steps)-1 {
			fmt.Fprintf(w, "%s (%s)\n", step.Description, formatDistance(step.Distance, plan.Units))
		} else {
			fmt.Fprintf(w, "%s\n", step.Description)
		}
	}
}

func writePlainTextError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "\n\n0\n%s\n", message)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps an error to the HTTP status reported to clients.
func statusFor(err error) int {
	var noResults *ErrNoResults
	switch {
	case errors.Is(err, ErrTooFewLocations),
		errors.Is(err, ErrInvalidCoordinate),
		errors.Is(err, ErrInvalidMode),
		errors.Is(err, ErrInvalidUnits):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound), errors.As(err, &noResults):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// parseLonLat parses a "lon,lat" pair.
func parseLonLat(s string) (Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("%w: %q is not lon,lat", ErrInvalidCoordinate, s)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: longitude: %v", ErrInvalidCoordinate, err)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: latitude: %v", ErrInvalidCoordinate, err)
	}

	return Location{Lon: lon, Lat: lat}, nil
}

// parseLocations parses "lon,lat;lon,lat;...".
func parseLocations(s string) ([]Location, error) {
	var locs []Location
	for _, pair := range strings.Split(s, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		loc, err := parseLonLat(pair)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// HandleGeocode handles the /nav/geocode endpoint
func (h *Handler) HandleGeocode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
			return
		}

		results, err := h.svc.Geocode(r.Context(), query)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, results)

	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		query := strings.TrimSpace(string(body))
		if query == "" {
			writeError(w, http.StatusBadRequest, "request body cannot be empty")
			return
		}

		results, err := h.svc.Geocode(r.Context(), query)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		// Return plain text format for POST requests
		w.Header().Set("Content-Type", "text/plain")
		// First line is the number of results
		fmt.Fprintf(w, "%d\n", len(results))
		// Output each result as 4 consecutive lines
		for _, result := range results {
			fmt.Fprintf(w, "%.4f,%.4f\n%s\n%s\n%s\n", result.Lat, result.Lng, result.Name, result.Address, result.Country)
		}

	default:
		writeError(w, http.StatusMethodNotAllowed, "only GET and POST methods are allowed")
	}
}

// HandleRoute handles the /nav/route endpoint
func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		locs, err := parseLocations(q.Get("locations"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		mode := RouteMode(strings.ToLower(q.Get("mode")))
		units := DistanceUnit(strings.ToLower(q.Get("units")))

		plan, err := h.svc.PlanRoute(r.Context(), locs, mode, units)
		if err != nil {
			h.log.Warn("route failed", zap.Error(err))
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, plan)

	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writePlainTextError(w, "failed to read request body")
			return
		}
		defer r.Body.Close()

		// Line 1 mode, line 2 units, then one lon,lat per line
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		if len(lines) < 4 {
			writePlainTextError(w, "request must contain at least 4 lines")
			return
		}

		mode := RouteMode(strings.ToLower(strings.TrimSpace(lines[0])))
		if !mode.IsValid() {
			mode = DefaultMode
		}
		units := DistanceUnit(strings.ToLower(strings.TrimSpace(lines[1])))
		if !units.IsValid() {
			units = DefaultUnit
		}

		var locs []Location
		for _, line := range lines[2:] {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			loc, err := parseLonLat(line)
			if err != nil {
				writePlainTextError(w, "invalid coordinates")
				return
			}
			locs = append(locs, loc)
		}

		plan, err := h.svc.PlanRoute(r.Context(), locs, mode, units)
		if err != nil {
			writePlainTextError(w, err.Error())
			return
		}
		writePlainTextRoute(w, plan)

	default:
		writeError(w, http.StatusMethodNotAllowed, "only GET and POST methods are allowed")
	}
}

type modeRequest struct {
	Mode  RouteMode    `json:"mode"`
	Units DistanceUnit `json:"units"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Planner, bool) {
	p, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}
	return p, true
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	p := h.sessions.Create()
	writeJSON(w, http.StatusCreated, p.State())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, p.State())
	}
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setSessionLocations(w http.ResponseWriter, r *http.Request) {
	p, ok := h.session(w, r)
	if !ok {
		return
	}
	var locs []Location
	if err := decodeBody(r, &locs); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of {lon, lat}")
		return
	}
	if err := p.SetLocations(locs); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, p.State())
}

func (h *Handler) setSessionMode(w http.ResponseWriter, r *http.Request) {
	p, ok := h.session(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"mode\": ..., \"units\": ...}")
		return
	}
	if err := p.SetMode(RouteMode(strings.ToLower(string(req.Mode))), DistanceUnit(strings.ToLower(string(req.Units)))); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, p.State())
}

func (h *Handler) retrySession(w http.ResponseWriter, r *http.Request) {
	p, ok := h.session(w, r)
	if !ok {
		return
	}
	p.Retry()
	writeJSON(w, http.StatusAccepted, p.State())
}
