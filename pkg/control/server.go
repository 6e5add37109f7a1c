// Package control serves the runtime HTTP API for adjusting running tuners,
// along with Prometheus metrics and WebSocket audio streams.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/norasector/fmstream/pkg/dsp/filters/post"
	"github.com/norasector/fmstream/pkg/streamer"
	"github.com/norasector/fmstream/pkg/streamer/config"
	"github.com/norasector/fmstream/pkg/util"
)

// Tuner is the part of a running pipeline the API can change.
type Tuner interface {
	Name() string
	Status() streamer.Status
	SetFrequency(hz int) error
	SetSquelch(level int) error
	SetVolume(gain float64) error
	SetDeemphasis(tau float64) error
	ReplaceSchedule(freqs []int) error
	AppendSchedule(freqs []int) error
	Hop()
}

type Server struct {
	mu      sync.RWMutex
	tuners  map[string]Tuner
	streams map[string]http.Handler

	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	srv      *http.Server
}

func NewServer(addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	return &Server{
		tuners:   make(map[string]Tuner),
		streams:  make(map[string]http.Handler),
		gatherer: gatherer,
		logger:   logger,
		srv:      &http.Server{Addr: addr, ReadHeaderTimeout: 10 * time.Second},
	}
}

func (s *Server) Register(t Tuner) {
	s.mu.Lock()
	s.tuners[t.Name()] = t
	s.mu.Unlock()
}

// RegisterStream serves h at /stream/<name>.
func (s *Server) RegisterStream(name string, h http.Handler) {
	s.mu.Lock()
	s.streams[name] = h
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.GET("/api/tuners", s.listTuners)
	router.GET("/api/tuners/:name/status", s.withTuner(s.status))
	router.POST("/api/tuners/:name/frequency", s.withTuner(s.setFrequency))
	router.POST("/api/tuners/:name/squelch", s.withTuner(s.setSquelch))
	router.POST("/api/tuners/:name/volume", s.withTuner(s.setVolume))
	router.POST("/api/tuners/:name/deemphasis", s.withTuner(s.setDeemphasis))
	router.PUT("/api/tuners/:name/schedule", s.withTuner(s.replaceSchedule))
	router.POST("/api/tuners/:name/schedule", s.withTuner(s.appendSchedule))
	router.POST("/api/tuners/:name/hop", s.withTuner(s.hop))

	if s.gatherer != nil {
		router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	router.GET("/stream/:name", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		s.mu.RLock()
		h, ok := s.streams[params.ByName("name")]
		s.mu.RUnlock()
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no stream %q", params.ByName("name")))
			return
		}
		h.ServeHTTP(w, r)
	})

	return router
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.srv.Handler = s.Handler()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("control server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type tunerHandler func(w http.ResponseWriter, r *http.Request, t Tuner)

func (s *Server) withTuner(h tunerHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		name := params.ByName("name")
		s.mu.RLock()
		t, ok := s.tuners[name]
		s.mu.RUnlock()
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no tuner %q", name))
			return
		}
		h(w, r, t)
	}
}

func (s *Server) listTuners(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.RLock()
	statuses := make([]streamer.Status, 0, len(s.tuners))
	for _, t := range s.tuners {
		statuses = append(statuses, t.Status())
	}
	s.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, t Tuner) {
	writeJSON(w, http.StatusOK, t.Status())
}

type frequencyRequest struct {
	Frequency string `json:"frequency"`
}

func (s *Server) setFrequency(w http.ResponseWriter, r *http.Request, t Tuner) {
	var req frequencyRequest
	if !decode(w, r, &req) {
		return
	}
	hz, err := util.ParseFrequency(req.Frequency)
	if err != nil {
		writeError(w, http.StatusBadRequest, config.Invalid("frequency", "%v", err))
		return
	}
	s.apply(w, t, "frequency", t.SetFrequency(hz))
}

type squelchRequest struct {
	Level *int `json:"level"`
}

func (s *Server) setSquelch(w http.ResponseWriter, r *http.Request, t Tuner) {
	var req squelchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Level == nil {
		writeError(w, http.StatusBadRequest, config.Invalid("level", "missing"))
		return
	}
	s.apply(w, t, "squelch", t.SetSquelch(*req.Level))
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (s *Server) setVolume(w http.ResponseWriter, r *http.Request, t Tuner) {
	var req volumeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Volume == nil {
		writeError(w, http.StatusBadRequest, config.Invalid("volume", "missing"))
		return
	}
	s.apply(w, t, "volume", t.SetVolume(*req.Volume))
}

// deemphasisRequest takes a time constant such as "75us", "50us" or "0".
type deemphasisRequest struct {
	Deemphasis string `json:"deemphasis"`
}

func (s *Server) setDeemphasis(w http.ResponseWriter, r *http.Request, t Tuner) {
	var req deemphasisRequest
	if !decode(w, r, &req) {
		return
	}
	tau, err := post.ParseDeemphasis(req.Deemphasis)
	if err != nil {
		writeError(w, http.StatusBadRequest, config.Invalid("deemphasis", "%v", err))
		return
	}
	s.apply(w, t, "deemphasis", t.SetDeemphasis(tau))
}

type scheduleRequest struct {
	Frequencies []string `json:"frequencies"`
}

func (s *Server) replaceSchedule(w http.ResponseWriter, r *http.Request, t Tuner) {
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}
	freqs, err := streamer.ParseFrequencies(req.Frequencies)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apply(w, t, "schedule", t.ReplaceSchedule(freqs))
}

func (s *Server) appendSchedule(w http.ResponseWriter, r *http.Request, t Tuner) {
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}
	freqs, err := streamer.ParseFrequencies(req.Frequencies)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apply(w, t, "schedule", t.AppendSchedule(freqs))
}

func (s *Server) hop(w http.ResponseWriter, r *http.Request, t Tuner) {
	t.Hop()
	writeJSON(w, http.StatusAccepted, t.Status())
}

// apply answers a setter call: the new status on success, 400 for a rejected
// value and 500 for anything else.
func (s *Server) apply(w http.ResponseWriter, t Tuner, what string, err error) {
	switch {
	case err == nil:
		s.logger.Info().Str("tuner", t.Name()).Str("setting", what).Msg("updated")
		writeJSON(w, http.StatusOK, t.Status())
	case errors.Is(err, config.ErrInvalid):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Warn().Err(err).Str("tuner", t.Name()).Str("setting", what).Msg("update failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
