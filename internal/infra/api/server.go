package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reel-compare/internal/config"
	"reel-compare/internal/domain"
	"reel-compare/internal/domain/model"
	"reel-compare/internal/domain/ports/repository"
	"reel-compare/internal/infra/logging"
	"reel-compare/internal/pipeline"
)

// Server exposes the comparison API: job submission and polling, the
// synchronous direct endpoint, health and metrics.
type Server struct {
	router   chi.Router
	repo     repository.JobRepository
	orch     *pipeline.Orchestrator
	cfg      *config.Config
	log      *zerolog.Logger
	validate *validator.Validate
}

func NewServer(repo repository.JobRepository, orch *pipeline.Orchestrator, cfg *config.Config, log *zerolog.Logger) *Server {
	s := &Server{
		repo:     repo,
		orch:     orch,
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.traceContext)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/compare", func(r chi.Router) {
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/retry", s.handleRetryJob)
		r.Post("/direct", s.handleDirect)
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is canceled, then drains in-flight requests.
// Launched jobs keep running; only the HTTP surface shuts down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.Server.Port).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// traceContext assigns every request a trace id and a request-scoped
// logger; callers may supply their own via X-Trace-Id.
func (s *Server) traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sourcePayload struct {
	Kind    string `json:"kind" validate:"required,oneof=url upload"`
	Address string `json:"address" validate:"required_if=Kind url,omitempty,max=2048"`
	FileKey string `json:"fileKey" validate:"required_if=Kind upload,omitempty,max=512"`
	Notes   string `json:"notes" validate:"max=1500"`
}

type compareRequest struct {
	CollectionID string        `json:"collectionId" validate:"max=128"`
	FABVersionID string        `json:"fabVersionId" validate:"max=128"`
	A            sourcePayload `json:"a" validate:"required"`
	B            sourcePayload `json:"b" validate:"required"`
}

func (p sourcePayload) toSource() model.Source {
	return model.Source{
		Kind:    model.SourceKind(p.Kind),
		Address: p.Address,
		FileKey: p.FileKey,
		Notes:   p.Notes,
	}
}

// decodeCompareRequest rejects malformed and disallowed sources up
// front, so clients never poll a job doomed by its own request body.
func (s *Server) decodeCompareRequest(r *http.Request) (*compareRequest, error) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("malformed body: %w", domain.ErrInvalidRequest)
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidRequest)
	}
	if err := pipeline.ValidateSource(req.A.toSource(), s.cfg.Media.AllowedHosts); err != nil {
		return nil, fmt.Errorf("source a: %w", err)
	}
	if err := pipeline.ValidateSource(req.B.toSource(), s.cfg.Media.AllowedHosts); err != nil {
		return nil, fmt.Errorf("source b: %w", err)
	}
	return &req, nil
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeCompareRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job := model.NewCompareJob(
		logging.TraceID(r.Context()),
		req.CollectionID, req.FABVersionID,
		req.A.toSource(), req.B.toSource(),
		s.cfg.AI.Model,
	)
	if err := s.repo.Create(r.Context(), job); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.orch.Launch(job.ID)

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":   job.ID,
		"traceId": job.TraceID,
		"status":  job.Status,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.repo.ResetForRetry(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.orch.Launch(id)
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":  id,
		"status": model.JobStatusQueued,
	})
}

func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeCompareRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.DirectTimeout)
	defer cancel()

	res, err := s.orch.DirectCompare(ctx, req.A.toSource(), req.B.toSource(), req.CollectionID, req.FABVersionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  res,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeFor(err)
	status := statusForCode(code)
	log := logging.With(r.Context(), s.log)
	if status >= 500 {
		log.Error().Err(err).Str("code", code).Msg("request failed")
	} else {
		log.Warn().Err(err).Str("code", code).Msg("request rejected")
	}
	s.writeJSON(w, status, map[string]any{
		"success":   false,
		"errorCode": code,
	})
}

func statusForCode(code string) int {
	switch code {
	case domain.CodeInvalidRequest, domain.CodeInvalidURL, domain.CodeUnsupportedHost:
		return http.StatusBadRequest
	case domain.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeAlreadyRunning:
		return http.StatusConflict
	case domain.CodeTimeout, domain.CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeUpstreamBlocked, domain.CodeDownloadFailed, domain.CodeUploadFailed,
		domain.CodeNonJSON, domain.CodeSchema:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
