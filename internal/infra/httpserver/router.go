package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appauth "github.com/bryanwahyu/bloodreport-ai/internal/application/auth"
	appreports "github.com/bryanwahyu/bloodreport-ai/internal/application/reports"
	domai "github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/querylogs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
	"github.com/bryanwahyu/bloodreport-ai/internal/middleware"
)

// AuthService is what the router needs from the auth use-cases.
type AuthService interface {
	Register(ctx context.Context, in appauth.RegisterInput) (int64, error)
	Login(ctx context.Context, identifier, password string) (*appauth.Token, error)
	Authenticate(ctx context.Context, token string) (*users.User, error)
}

// ReportService is what the router needs from the report use-cases.
type ReportService interface {
	Upload(ctx context.Context, userID int64, filename string, data []byte) (*reports.Report, error)
	List(ctx context.Context, userID int64) ([]*reports.Report, error)
	Paginate(ctx context.Context, userID int64, page, pageSize int) (reports.PaginatedResult, error)
	Get(ctx context.Context, userID int64, id reports.ReportID) (*reports.Report, error)
	Download(ctx context.Context, userID int64, id reports.ReportID) (*reports.Report, []byte, error)
	Delete(ctx context.Context, userID int64, id reports.ReportID) error
	Queries(ctx context.Context, userID int64, id reports.ReportID, limit int) ([]*querylogs.QueryLog, error)
	Summary(ctx context.Context, userID int64) (reports.StatusCounts, error)
	Analyze(ctx context.Context, userID int64, id reports.ReportID, query string) (*appreports.AnalyzeAccepted, error)
	AnalyzeSync(ctx context.Context, user *users.User, id reports.ReportID, query string) (*appreports.SyncResult, error)
	TaskStatus(ctx context.Context, userID int64, taskID string) (*jobs.TaskStatus, error)
}

type Options struct {
	Auth    AuthService
	Reports ReportService
	Log     *zap.Logger

	HealthCheckers map[string]middleware.HealthChecker
	QueueDepth     middleware.QueueDepth
	Version        string

	AllowedOrigins    []string
	// TrustProxy takes the client IP from X-Real-IP / X-Forwarded-For. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxy        bool
	RateLimitCapacity int
	RateLimitRefill   float64
	MaxUploadBytes    int64
}

type Router struct {
	auth      AuthService
	reports   ReportService
	log       *zap.Logger
	maxUpload int64
}

func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RateLimitCapacity <= 0 {
		opts.RateLimitCapacity = 60
	}
	if opts.RateLimitRefill <= 0 {
		opts.RateLimitRefill = 1
	}
	r := &Router{auth: opts.Auth, reports: opts.Reports, log: log, maxUpload: opts.MaxUploadBytes}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	if opts.TrustProxy {
		mux.Use(chimw.RealIP)
	}
	mux.Use(middleware.RequestLogger(log))
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	mux.Use(chimw.Compress(5, "application/json"))

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers, opts.Version))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(opts.HealthCheckers))

	mux.Route("/api", func(api chi.Router) {
		api.Get("/performance", middleware.PerformanceHandler(opts.QueueDepth))

		api.Group(func(pub chi.Router) {
			// 5 attempts, then one every 12 seconds
			pub.Use(middleware.RateLimitMiddleware(5, 1.0/12))
			pub.Post("/register", r.wrap(r.handleRegister))
			pub.Post("/login", r.wrap(r.handleLogin))
		})

		api.Group(func(priv chi.Router) {
			priv.Use(middleware.BearerAuth(opts.Auth))
			priv.Use(middleware.RateLimitMiddleware(opts.RateLimitCapacity, opts.RateLimitRefill))

			priv.Get("/me", r.wrap(r.handleMe))
			priv.Post("/upload-report", r.wrap(r.handleUpload))
			priv.Post("/analyze-report", r.wrap(r.handleAnalyze))
			priv.Post("/analyze-report-sync", r.wrap(r.handleAnalyzeSync))
			priv.Get("/task-status/{task_id}", r.wrap(r.handleTaskStatus))
			priv.Get("/user-reports", r.wrap(r.handleUserReports))
			priv.Get("/report/{id}", r.wrap(r.handleGetReport))
			priv.Get("/report/{id}/download", r.wrap(r.handleDownload))
			priv.Get("/report/{id}/queries", r.wrap(r.handleQueries))
			priv.Delete("/report/{id}", r.wrap(r.handleDeleteReport))
			priv.Get("/dashboard/summary", r.wrap(r.handleSummary))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, detail := r.classify(err)
			if status >= http.StatusInternalServerError {
				r.log.Error("request failed",
					zap.String("path", req.URL.Path),
					zap.String("request_id", chimw.GetReqID(req.Context())),
					zap.Error(err))
			}
			if status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			middleware.WriteError(w, status, detail)
		}
	}
}

// classify maps an error to its HTTP status and client-facing detail
func (r *Router) classify(err error) (int, string) {
	var (
		verr   *middleware.ValidationError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &tooBig), errors.Is(err, reports.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %d MB)", r.maxUpload>>20)
	case errors.Is(err, users.ErrAlreadyExists):
		return http.StatusBadRequest, "Username, email, or mobile number already registered"
	case errors.Is(err, reports.ErrNotPDF):
		return http.StatusBadRequest, "Only PDF files are allowed"
	case errors.Is(err, reports.ErrInvalidPDF):
		return http.StatusBadRequest, "Invalid or corrupted PDF file"
	case errors.Is(err, appauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Incorrect credentials"
	case errors.Is(err, appauth.ErrInvalidToken):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, reports.ErrNotFound):
		return http.StatusNotFound, "Report not found"
	case errors.Is(err, jobs.ErrTaskNotFound):
		return http.StatusNotFound, "Task not found"
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "AI quota exceeded, please try again later"
	case errors.Is(err, domai.ErrNotConfigured):
		return http.StatusServiceUnavailable, "AI analysis is not configured"
	case errors.Is(err, jobs.ErrQueueDisabled):
		return http.StatusServiceUnavailable, "Task queue not available"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Analysis timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
