package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appai "github.com/aurahealth/screening-core/internal/application/ai"
	appanalysis "github.com/aurahealth/screening-core/internal/application/analysis"
	appbatch "github.com/aurahealth/screening-core/internal/application/batch"
	domai "github.com/aurahealth/screening-core/internal/domain/ai"
	domain "github.com/aurahealth/screening-core/internal/domain/analysis"
	dombatch "github.com/aurahealth/screening-core/internal/domain/batch"
	domcredits "github.com/aurahealth/screening-core/internal/domain/credits"
	"github.com/aurahealth/screening-core/internal/domain/inference"
	"github.com/aurahealth/screening-core/internal/middleware"
)

type Router struct {
	analysisSvc *appanalysis.Service
	coordinator *appbatch.Coordinator
	aiSvc       *appai.Service
	ledger      domcredits.Ledger
}

// Options carry the ambient pieces main wires around the handlers.
type Options struct {
	APIKeys        map[string]string
	RatePerMinute  int
	HealthCheckers map[string]middleware.HealthChecker
}

func NewRouter(analysisSvc *appanalysis.Service, coordinator *appbatch.Coordinator, aiSvc *appai.Service, ledger domcredits.Ledger, opts Options) http.Handler {
	r := &Router{
		analysisSvc: analysisSvc,
		coordinator: coordinator,
		aiSvc:       aiSvc,
		ledger:      ledger,
	}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	}
	if opts.RatePerMinute > 0 {
		// refill is per second; capacity allows a one-minute burst
		mux.Use(middleware.RateLimitMiddleware(opts.RatePerMinute, opts.RatePerMinute/60+1))
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{clinic}", func(rt chi.Router) {
		rt.Post("/jobs", r.wrap(r.handleCreateJob))
		rt.Get("/jobs", r.wrap(r.handleListJobs))
		rt.Get("/jobs/{id}", r.wrap(r.handleGetJob))
		rt.Get("/jobs/{id}/errors", r.wrap(r.handleJobErrors))
		rt.Post("/analyses", r.wrap(r.handleCreateAnalysis))
		rt.Get("/analyses", r.wrap(r.handleListAnalyses))
		rt.Get("/analyses/{id}", r.wrap(r.handleGetAnalysis))
		rt.Post("/analyses/{id}/summary", r.wrap(r.handleSummarize))
		rt.Get("/summaries", r.wrap(r.handleListSummaries))
		rt.Get("/credits", r.wrap(r.handleCredits))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// statusError lets handlers pick their own HTTP status for request-shape
// problems without widening the error mapping table below.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &statusError{code: http.StatusBadRequest, err: err}
}

func forbidden(msg string) error {
	return &statusError{code: http.StatusForbidden, err: errors.New(msg)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var se *statusError
			if errors.As(err, &se) {
				http.Error(w, se.Error(), se.code)
				return
			}
			switch {
			case errors.Is(err, domain.ErrNotFound) || errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domcredits.ErrInsufficientCredits):
				http.Error(w, "insufficient credits", http.StatusPaymentRequired)
			case errors.Is(err, dombatch.ErrEmptyBatch):
				http.Error(w, "image_ids is required", http.StatusBadRequest)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case inference.IsTransport(err):
				http.Error(w, "analysis backend unavailable", http.StatusBadGateway)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func clinicParam(req *http.Request) (string, error) {
	clinic := chi.URLParam(req, "clinic")
	if err := middleware.ValidateClinicID(clinic); err != nil {
		return "", badRequest(err)
	}
	if !middleware.ClinicAllowed(req.Context(), clinic) {
		return "", forbidden("clinic mismatch")
	}
	return clinic, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/{clinic}/jobs
// Body: {"image_ids": ["img-1", "img-2"]}
func (r *Router) handleCreateJob(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	var body struct {
		ImageIDs []string `json:"image_ids"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}
	for _, id := range body.ImageIDs {
		if err := middleware.ValidateImageID(id); err != nil {
			return badRequest(fmt.Errorf("%s: %w", id, err))
		}
	}

	jobID, err := r.coordinator.QueueBatch(req.Context(), clinic, body.ImageIDs)
	if err != nil {
		return err
	}
	middleware.IncrementJobs()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": dombatch.StatusQueued,
	})
}

// GET /v1/{clinic}/jobs?limit=20
func (r *Router) handleListJobs(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.coordinator.ListJobs(req.Context(), clinic, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{clinic}/jobs/{id}
func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	id := chi.URLParam(req, "id")

	job, err := r.coordinator.GetStatus(req.Context(), dombatch.JobID(id))
	if err != nil {
		return err
	}
	if job.ClinicID != clinic {
		return domain.ErrNotFound
	}
	return writeJSON(w, http.StatusOK, job)
}

// GET /v1/{clinic}/jobs/{id}/errors?limit=50
func (r *Router) handleJobErrors(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	id := chi.URLParam(req, "id")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.coordinator.JobErrors(req.Context(), clinic, dombatch.JobID(id), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/{clinic}/analyses
// Body: {"image_id": "img-1"}
func (r *Router) handleCreateAnalysis(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	var body struct {
		ImageID string `json:"image_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateImageID(body.ImageID); err != nil {
		return badRequest(err)
	}

	middleware.IncrementAnalyses()
	rec, err := r.analysisSvc.StartAnalysis(req.Context(), clinic, body.ImageID)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

// GET /v1/{clinic}/analyses?limit=20
func (r *Router) handleListAnalyses(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysisSvc.Latest(req.Context(), clinic, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{clinic}/analyses/{id}
func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	id := chi.URLParam(req, "id")

	rec, err := r.analysisSvc.Get(req.Context(), clinic, domain.AnalysisID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

// POST /v1/{clinic}/analyses/{id}/summary
func (r *Router) handleSummarize(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	if r.aiSvc == nil {
		return &statusError{code: http.StatusNotImplemented, err: errors.New("ai summaries not configured")}
	}
	id := chi.URLParam(req, "id")

	rec, err := r.analysisSvc.Get(req.Context(), clinic, domain.AnalysisID(id))
	if err != nil {
		return err
	}
	summary, err := r.aiSvc.SummarizeAndStore(req.Context(), rec)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}

// GET /v1/{clinic}/summaries?page=&page_size=
func (r *Router) handleListSummaries(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	if r.aiSvc == nil {
		return &statusError{code: http.StatusNotImplemented, err: errors.New("ai summaries not configured")}
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.aiSvc.ListSummaries(req.Context(), clinic, page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{clinic}/credits
func (r *Router) handleCredits(w http.ResponseWriter, req *http.Request) error {
	clinic, err := clinicParam(req)
	if err != nil {
		return err
	}
	balance, err := r.ledger.Balance(req.Context(), clinic)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"clinic_id":         clinic,
		"remaining_credits": balance,
	})
}
