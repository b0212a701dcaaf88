// Package server implements the geotrie HTTP API
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nainya/geotrie/internal/logger"
	"github.com/nainya/geotrie/internal/metrics"
	"github.com/nainya/geotrie/pkg/covering"
	"github.com/nainya/geotrie/pkg/dataset"
	"github.com/nainya/geotrie/pkg/grid"
	"github.com/nainya/geotrie/pkg/query"
	"github.com/nainya/geotrie/pkg/trie"
)

// Server exposes a point index over HTTP
type Server struct {
	engine *query.Engine[dataset.Point]
	log    *logger.Logger
	m      *metrics.Metrics

	// mu guards the engine: queries take the read lock, inserts the
	// write lock.
	mu sync.RWMutex

	defaultParams grid.CoveringParams

	opMu     sync.Mutex
	opCounts map[string]int64

	startTime time.Time
	httpSrv   *http.Server
}

// NewServer creates an HTTP server around a query engine. The http
// handle is built here, not in Start, so Shutdown can be called from
// another goroutine without racing the startup path.
func NewServer(addr string, engine *query.Engine[dataset.Point], log *logger.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		engine:        engine,
		log:           log,
		m:             m,
		defaultParams: grid.DefaultCoveringParams(engine.System()),
		opCounts:      make(map[string]int64),
		startTime:     time.Now(),
	}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// SetCoveringDefaults overrides the covering params used when a query
// does not spell its own out. Call before Start.
func (s *Server) SetCoveringDefaults(p grid.CoveringParams) {
	s.defaultParams = p
}

// Router builds the HTTP route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(HTTPMetricsMiddleware(s.m, s.log))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/near", s.handleNear).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{token}", s.handleToken).Methods(http.MethodGet)
	api.HandleFunc("/points", s.handleAddPoint).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	return r
}

// Start begins serving and blocks until shutdown
func (s *Server) Start() error {
	s.log.LogServerReady(s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.LogServerShutdown()
	return s.httpSrv.Shutdown(ctx)
}

// ========== Handlers ==========

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "geotrie",
		"grid_system":    s.engine.System().Name(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// nearResponse is the payload for GET /v1/near
type nearResponse struct {
	Results []dataset.Point `json:"results"`
	Stats   nearStats       `json:"stats"`
}

type nearStats struct {
	CoveringCells int     `json:"covering_cells"`
	Prefixes      int     `json:"prefixes"`
	Matches       int     `json:"matches"`
	Unique        int     `json:"unique"`
	ElapsedMs     float64 `json:"elapsed_ms"`
}

func (s *Server) handleNear(w http.ResponseWriter, r *http.Request) {
	s.countOp("Near")

	lat, err := queryFloat(r, "lat")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius, err := queryFloat(r, "radius_m")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := s.defaultParams
	if v := r.URL.Query().Get("max_cells"); v != "" {
		if params.MaxCells, err = strconv.Atoi(v); err != nil {
			respondError(w, http.StatusBadRequest, "max_cells must be an integer")
			return
		}
	}
	if v := r.URL.Query().Get("min_level"); v != "" {
		if params.MinLevel, err = strconv.Atoi(v); err != nil {
			respondError(w, http.StatusBadRequest, "min_level must be an integer")
			return
		}
	}
	if v := r.URL.Query().Get("max_level"); v != "" {
		if params.MaxLevel, err = strconv.Atoi(v); err != nil {
			respondError(w, http.StatusBadRequest, "max_level must be an integer")
			return
		}
	}

	region := grid.Circle{Lat: lat, Lng: lng, RadiusMeters: radius}

	s.mu.RLock()
	result, err := s.engine.QueryNear(region, params)
	s.mu.RUnlock()

	if err != nil {
		s.m.RecordQuery("error", 0, 0, 0, 0)
		s.log.LogQuery(0, 0, 0, 0, 0, err)
		respondError(w, statusForError(err), err.Error())
		return
	}

	st := result.Stats
	s.m.RecordQuery("ok", st.Elapsed, st.CoveringCells, st.Prefixes, st.Matches)
	s.log.LogQuery(st.CoveringCells, st.Prefixes, st.Matches, st.Unique, st.Elapsed, nil)

	// Optional radius post-filter: cell coverings overshoot the circle.
	results := result.Records
	if r.URL.Query().Get("exact") == "true" {
		results = dataset.WithinRadius(results, lat, lng, radius)
	}
	if results == nil {
		// Zero matches marshal as [], matching the search endpoint.
		results = []dataset.Point{}
	}

	respondJSON(w, http.StatusOK, nearResponse{
		Results: results,
		Stats: nearStats{
			CoveringCells: st.CoveringCells,
			Prefixes:      st.Prefixes,
			Matches:       st.Matches,
			Unique:        st.Unique,
			ElapsedMs:     float64(st.Elapsed.Microseconds()) / 1000,
		},
	})
}

// searchEntry pairs a full token with its record
type searchEntry struct {
	Token string        `json:"token"`
	Point dataset.Point `json:"point"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.countOp("Search")
	s.m.PrefixSearchesTotal.Inc()

	prefix := r.URL.Query().Get("prefix")

	s.mu.RLock()
	entries := s.engine.SearchPrefix(prefix)
	s.mu.RUnlock()

	out := make([]searchEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, searchEntry{Token: e.Token, Point: e.Value})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"prefix":  prefix,
		"entries": out,
		"count":   len(out),
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.countOp("Token")

	token := mux.Vars(r)["token"]

	s.mu.RLock()
	records := s.engine.Get(token)
	s.mu.RUnlock()

	if records == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no records at token %q", token))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleAddPoint(w http.ResponseWriter, r *http.Request) {
	s.countOp("AddPoint")

	var p dataset.Point
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid point payload: %v", err))
		return
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	token, err := s.engine.System().TokenAt(p.Lat, p.Lng, s.engine.IndexLevel())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.Index(token, p)
	st := s.engine.Stats()
	s.mu.Unlock()

	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	s.m.IndexInsertsTotal.Inc()
	s.m.UpdateIndexStats(st.Records, st.Tokens, st.Nodes)

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    p.ID,
		"token": token,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.countOp("Stats")

	s.mu.RLock()
	st := s.engine.Stats()
	s.mu.RUnlock()

	s.opMu.Lock()
	counts := make(map[string]int64, len(s.opCounts))
	for k, v := range s.opCounts {
		counts[k] = v
	}
	s.opMu.Unlock()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"grid_system":    s.engine.System().Name(),
		"index_level":    s.engine.IndexLevel(),
		"records":        st.Records,
		"tokens":         st.Tokens,
		"trie_nodes":     st.Nodes,
		"max_depth":      st.MaxDepth,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"op_counts":      counts,
	})
}

// ========== Helpers ==========

func (s *Server) countOp(name string) {
	s.opMu.Lock()
	s.opCounts[name]++
	s.opMu.Unlock()
}

// queryFloat parses a required float query parameter
func queryFloat(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return f, nil
}

// statusForError maps engine errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, grid.ErrBadCoordinate),
		errors.Is(err, grid.ErrBadRegion),
		errors.Is(err, grid.ErrBadParams),
		errors.Is(err, grid.ErrLevelOutOfRange),
		errors.Is(err, trie.ErrInvalidToken),
		errors.Is(err, trie.ErrTokenTooLong):
		return http.StatusBadRequest
	case errors.Is(err, covering.ErrLeafCell):
		// Translation contract violation: a covering cell with no
		// children means the params let the coverer reach max depth.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
