package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/config"
	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
	"github.com/kirillkom/tutorial-pipeline/internal/observability/metrics"
)

const (
	serviceName = "api"
	maxJSONBody = 64 << 10
	xlsxMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errMissingID = errors.New("submission id is required")

// Services are the inbound ports the API exposes.
type Services struct {
	Ingestor ports.SubmissionIngestor
	Reader   ports.SubmissionReader
	Advancer ports.SubmissionAdvancer
	Retrier  ports.SubmissionRetrier
	Reporter ports.SubmissionReporter
}

type Router struct {
	svc Services

	adminAPIKey     string
	twilioAuthToken string
	publicBaseURL   string

	rateLimitRPS      float64
	rateLimitBurst    int
	maxInFlight       int
	inFlightWait      time.Duration
	validationEnabled bool
	validator         *requestValidator
	metrics           *metrics.HTTPServerMetrics
	media             http.FileSystem
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// WithMedia serves locally stored media under /media/.
func WithMedia(fs http.FileSystem) Option {
	return func(rt *Router) { rt.media = fs }
}

func NewRouter(cfg config.Config, svc Services, opts ...Option) *Router {
	rt := &Router{
		svc:               svc,
		adminAPIKey:       cfg.AdminAPIKey,
		twilioAuthToken:   cfg.TwilioAuthToken,
		publicBaseURL:     cfg.PublicBaseURL,
		rateLimitRPS:      cfg.APIRateLimitRPS,
		rateLimitBurst:    cfg.APIRateLimitBurst,
		maxInFlight:       cfg.APIBackpressureMaxInFlight,
		inFlightWait:      cfg.APIBackpressureWaitTimeout,
		validationEnabled: cfg.APIRequestValidationEnabled,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.validationEnabled {
		validator, err := newRequestValidator(context.Background())
		if err != nil {
			slog.Error("openapi_validator_init_failed", "error", err)
		} else {
			rt.validator = validator
		}
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/submissions", rt.createSubmission)
	mux.HandleFunc("POST /v1/webhooks/messages", rt.receiveMessage)
	mux.HandleFunc("GET /v1/submissions/{id}", rt.getSubmission)
	mux.HandleFunc("POST /v1/submissions/{id}/advance", adminAuth(rt.adminAPIKey, rt.advanceSubmission))
	mux.HandleFunc("POST /v1/submissions/{id}/retry", adminAuth(rt.adminAPIKey, rt.retrySubmission))
	mux.HandleFunc("POST /v1/admin/retry-all", adminAuth(rt.adminAPIKey, rt.retryAll))
	mux.HandleFunc("GET /v1/admin/reports/submissions.xlsx", adminAuth(rt.adminAPIKey, rt.exportSubmissions))
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	if rt.media != nil {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(rt.media)))
	}

	var handler http.Handler = mux
	if rt.validator != nil {
		handler = rt.validator.middleware(handler)
	}
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.inFlightWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitBody struct {
	URL     string `json:"url"`
	Channel string `json:"channel"`
	Sender  string `json:"sender"`
	HotNews bool   `json:"hot_news"`
}

func (rt *Router) createSubmission(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	channel := domain.Channel(body.Channel)
	if channel == "" {
		channel = domain.ChannelWeb
	}

	sub, err := rt.svc.Ingestor.Submit(r.Context(), ports.SubmitRequest{
		URL:     body.URL,
		Channel: channel,
		Sender:  body.Sender,
		HotNews: body.HotNews,
	})
	if !rt.acceptedDespiteQueue(w, r, sub, err) {
		return
	}
	rt.recordSubmission(sub)
	writeJSON(w, http.StatusAccepted, sub)
}

// acceptedDespiteQueue reports whether the handler should answer 202. A
// stored submission whose queue publish failed is still accepted; the
// redrive sweeper owns it from there.
func (rt *Router) acceptedDespiteQueue(w http.ResponseWriter, r *http.Request, sub *domain.Submission, err error) bool {
	if err == nil {
		return true
	}
	if sub != nil {
		slog.Warn("submission_queue_deferred",
			"request_id", requestIDFromContext(r.Context()),
			"submission_id", sub.ID,
			"error", err,
		)
		return true
	}
	writeError(w, r, err)
	return false
}

func (rt *Router) getSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := bindSubmissionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := rt.svc.Reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (rt *Router) advanceSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := bindSubmissionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	params, err := bindAdvanceParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.svc.Advancer.Advance(r.Context(), id, params.options())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAdvance(serviceName, string(result.Status))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) retrySubmission(w http.ResponseWriter, r *http.Request) {
	id, err := bindSubmissionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	params, err := bindRetryParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fromScratch := params.FromScratch != nil && *params.FromScratch

	sub, err := rt.svc.Retrier.Retry(r.Context(), id, fromScratch)
	if !rt.acceptedDespiteQueue(w, r, sub, err) {
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func (rt *Router) retryAll(w http.ResponseWriter, r *http.Request) {
	limit, err := bindLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	queued, err := rt.svc.Retrier.RedriveFailed(r.Context(), limit)
	if err != nil && queued == 0 {
		writeError(w, r, err)
		return
	}
	resp := map[string]any{"queued": queued}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) exportSubmissions(w http.ResponseWriter, r *http.Request) {
	params, err := bindReportParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if params.Limit != nil {
		limit = *params.Limit
	}

	data, err := rt.svc.Reporter.Export(r.Context(), params.statuses(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("submissions-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) recordSubmission(sub *domain.Submission) {
	if rt.metrics == nil || sub == nil {
		return
	}
	rt.metrics.RecordSubmission(serviceName, string(sub.Channel), string(sub.SourceType))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
