package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/polzat/internal/config"
	"github.com/JakeFAU/polzat/internal/crawler"
	"github.com/JakeFAU/polzat/internal/metrics"
)

const (
	maxRequestBytes = 1 << 20
	requestTimeout  = 30 * time.Second
)

// TaskQueue is the frontier as seen by the gateway.
type TaskQueue interface {
	crawler.Pusher
	Len() int
}

// LoadReporter exposes the number of tasks currently executing.
type LoadReporter interface {
	InFlight() int64
}

// RobotsCache exposes the number of domains with a cached robots matcher.
type RobotsCache interface {
	CacheSize() int
}

// Server wires HTTP handlers to the frontier and stats sources.
type Server struct {
	router chi.Router
	queue  TaskQueue
	load   LoadReporter
	robots RobotsCache
	idGen  crawler.IDGenerator
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	queue TaskQueue,
	load LoadReporter,
	robots RobotsCache,
	idGen crawler.IDGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		queue:  queue,
		load:   load,
		robots: robots,
		idGen:  idGen,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/tasks", s.scheduleTask)
		r.Get("/stats", s.stats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "frontier not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scheduleTaskRequest struct {
	ExecutionID string `json:"execution_id"`
	Priority    *int   `json:"priority"`
	URL         string `json:"url"`
	URLType     string `json:"url_type"`
	Operation   string `json:"operation"`
}

type scheduleTaskResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

func (s *Server) scheduleTask(w http.ResponseWriter, r *http.Request) {
	var req scheduleTaskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	task, err := s.toTask(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.queue.Push(task); err != nil {
		metrics.ObserveRejected("api")
		s.logger.Warn("schedule rejected",
			zap.String("execution_id", task.ExecutionID),
			zap.String("url", task.URL),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("could not schedule task: %v", err))
		return
	}
	metrics.ObserveScheduled(string(task.Operation), "api")
	metrics.SetFrontierPending(s.queue.Len())
	s.logger.Debug("task scheduled",
		zap.String("execution_id", task.ExecutionID),
		zap.String("url", task.URL),
		zap.String("operation", string(task.Operation)),
		zap.Uint8("priority", task.Priority),
	)
	writeJSON(w, http.StatusAccepted, scheduleTaskResponse{ExecutionID: task.ExecutionID, Status: "accepted"})
}

func (s *Server) toTask(req scheduleTaskRequest) (crawler.Task, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return crawler.Task{}, errors.New("url required")
	}
	priority := 0
	if req.Priority != nil {
		priority = *req.Priority
	}
	if priority < 0 || priority > 255 {
		return crawler.Task{}, errors.New("priority must be between 0 and 255")
	}
	urlType, err := crawler.ParseURLType(req.URLType)
	if err != nil {
		return crawler.Task{}, err
	}
	op, err := crawler.ParseOperation(req.Operation)
	if err != nil {
		return crawler.Task{}, err
	}
	execID := strings.TrimSpace(req.ExecutionID)
	if execID == "" {
		if s.idGen == nil {
			return crawler.Task{}, errors.New("execution_id required")
		}
		execID, err = s.idGen.NewID()
		if err != nil {
			return crawler.Task{}, fmt.Errorf("generate execution id: %w", err)
		}
	}
	return crawler.NewTask(execID, uint8(priority), rawURL, urlType, op), nil
}

type statsResponse struct {
	PendingCount        int   `json:"pending_count"`
	InFlight            int64 `json:"in_flight"`
	RobotsCachedDomains int   `json:"robots_cached_domains"`
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	var resp statsResponse
	if s.queue != nil {
		resp.PendingCount = s.queue.Len()
	}
	if s.load != nil {
		resp.InFlight = s.load.InFlight()
	}
	if s.robots != nil {
		resp.RobotsCachedDomains = s.robots.CacheSize()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
