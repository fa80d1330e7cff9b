package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appauth "github.com/bryanwahyu/bloodreport-ai/internal/application/auth"
	appreports "github.com/bryanwahyu/bloodreport-ai/internal/application/reports"
	domai "github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/querylogs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
	"github.com/bryanwahyu/bloodreport-ai/internal/middleware"
)

const goodToken = "good-token"

var alice = &users.User{ID: 7, Username: "alice", Email: "alice@example.com", FullName: "Alice", IsActive: true}

type fakeAuth struct {
	registered  []appauth.RegisterInput
	registerErr error
}

func (f *fakeAuth) Register(_ context.Context, in appauth.RegisterInput) (int64, error) {
	if f.registerErr != nil {
		return 0, f.registerErr
	}
	f.registered = append(f.registered, in)
	return 42, nil
}

func (f *fakeAuth) Login(_ context.Context, identifier, password string) (*appauth.Token, error) {
	if identifier != "alice" || password != "secret1" {
		return nil, appauth.ErrInvalidCredentials
	}
	return &appauth.Token{AccessToken: goodToken, TokenType: "bearer", ExpiresIn: 1800, User: alice}, nil
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*users.User, error) {
	if token != goodToken {
		return nil, appauth.ErrInvalidToken
	}
	return alice, nil
}

type fakeReports struct {
	store      map[reports.ReportID]*reports.Report
	uploaded   []byte
	lastQuery  string
	analyzeErr error
	syncErr    error
	deleted    []reports.ReportID
	page       int
}

func newFakeReports() *fakeReports {
	return &fakeReports{store: map[reports.ReportID]*reports.Report{
		1: {ID: 1, UserID: alice.ID, Filename: "r.pdf", OriginalFilename: "lab.pdf", Status: reports.StatusUploaded},
	}}
}

func (f *fakeReports) Upload(_ context.Context, userID int64, filename string, data []byte) (*reports.Report, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, reports.ErrInvalidPDF
	}
	f.uploaded = data
	return &reports.Report{ID: 2, UserID: userID, Filename: "uuid_" + filename}, nil
}

func (f *fakeReports) List(_ context.Context, userID int64) ([]*reports.Report, error) {
	var out []*reports.Report
	for _, r := range f.store {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReports) Paginate(_ context.Context, _ int64, page, pageSize int) (reports.PaginatedResult, error) {
	f.page = page
	return reports.PaginatedResult{Data: []*reports.Report{}, Page: page, PageSize: pageSize}, nil
}

func (f *fakeReports) Get(_ context.Context, userID int64, id reports.ReportID) (*reports.Report, error) {
	r, ok := f.store[id]
	if !ok || r.UserID != userID {
		return nil, reports.ErrNotFound
	}
	return r, nil
}

func (f *fakeReports) Download(ctx context.Context, userID int64, id reports.ReportID) (*reports.Report, []byte, error) {
	r, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	return r, []byte("%PDF-1.4 body"), nil
}

func (f *fakeReports) Delete(ctx context.Context, userID int64, id reports.ReportID) error {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReports) Queries(ctx context.Context, userID int64, id reports.ReportID, _ int) ([]*querylogs.QueryLog, error) {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return []*querylogs.QueryLog{{ID: 1, ReportID: int64(id), QueryText: "q"}}, nil
}

func (f *fakeReports) Summary(context.Context, int64) (reports.StatusCounts, error) {
	return reports.StatusCounts{Uploaded: 1, Total: 1}, nil
}

func (f *fakeReports) Analyze(_ context.Context, _ int64, id reports.ReportID, query string) (*appreports.AnalyzeAccepted, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	f.lastQuery = query
	return &appreports.AnalyzeAccepted{TaskID: "t-1", Status: "processing", ReportID: int64(id)}, nil
}

func (f *fakeReports) AnalyzeSync(_ context.Context, _ *users.User, id reports.ReportID, query string) (*appreports.SyncResult, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	f.lastQuery = query
	return &appreports.SyncResult{Status: "processed", ReportID: int64(id), Result: "ok", ConfidenceScore: 0.95}, nil
}

func (f *fakeReports) TaskStatus(_ context.Context, _ int64, taskID string) (*jobs.TaskStatus, error) {
	if taskID == "6f1c1f7e-8a8b-4c51-9d6c-000000000000" {
		return nil, jobs.ErrTaskNotFound
	}
	return &jobs.TaskStatus{TaskID: taskID, Status: jobs.StatePending}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeAuth, *fakeReports) {
	t.Helper()
	a, r := &fakeAuth{}, newFakeReports()
	h := NewRouter(Options{
		Auth:              a,
		Reports:           r,
		RateLimitCapacity: 100,
		RateLimitRefill:   10,
		MaxUploadBytes:    1 << 20,
		Version:           "test",
	})
	return h, a, r
}

func do(h http.Handler, method, target string, body *strings.Reader, auth bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+goodToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func form(kv ...string) *strings.Reader {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return strings.NewReader(v.Encode())
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestRegister(t *testing.T) {
	h, a, _ := newTestRouter(t)

	rec := do(h, http.MethodPost, "/api/register", form(
		"username", "alice", "email", "alice@example.com", "password", "secret1", "full_name", "Alice A"), false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":42`)
	require.Len(t, a.registered, 1)
	assert.Equal(t, "Alice A", a.registered[0].FullName)

	rec = do(h, http.MethodPost, "/api/register", form(
		"username", "alice", "email", "not-an-email", "password", "secret1", "full_name", "Alice"), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid email address", detail(t, rec))

	a.registerErr = users.ErrAlreadyExists
	rec = do(h, http.MethodPost, "/api/register", form(
		"username", "alice", "email", "alice@example.com", "password", "secret1", "full_name", "Alice"), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username, email, or mobile number already registered", detail(t, rec))
}

func TestLogin(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(h, http.MethodPost, "/api/login", form("identifier", "alice", "password", "secret1"), false)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok appauth.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, goodToken, tok.AccessToken)

	// username field is accepted too
	rec = do(h, http.MethodPost, "/api/login", form("username", "alice", "password", "secret1"), false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodPost, "/api/login", form("identifier", "alice", "password", "wrong"), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect credentials", detail(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = do(h, http.MethodPost, "/api/login", form("password", "secret1"), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect credentials", detail(t, rec))
}

func TestLoginEmptyPassword(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rec := do(h, http.MethodPost, "/api/login", form("identifier", "alice", "password", ""), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect credentials", detail(t, rec))
}

func TestLoginIsRateLimited(t *testing.T) {
	h, _, _ := newTestRouter(t)
	var last int
	for i := 0; i < 6; i++ {
		last = do(h, http.MethodPost, "/api/login", form("identifier", "alice", "password", "wrong"), false).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLoginLimitIgnoresForwardedHeaders(t *testing.T) {
	h, _, _ := newTestRouter(t)
	limited := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/login", form("identifier", "alice", "password", "wrong"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 15, limited)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(h, http.MethodGet, "/api/me", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", detail(t, rec))

	rec = do(h, http.MethodGet, "/api/me", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.NotContains(t, rec.Body.String(), "hashed")
}

func multipartUpload(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-report", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+goodToken)
	return req
}

func TestUpload(t *testing.T) {
	h, _, r := newTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "lab.pdf", []byte("%PDF-1.4 data")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"report_id":2`)
	assert.Contains(t, rec.Body.String(), `"filename":"uuid_lab.pdf"`)
	assert.Equal(t, []byte("%PDF-1.4 data"), r.uploaded)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "lab.pdf", []byte("garbage")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "big.pdf", bytes.Repeat([]byte("a"), 3<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// no file part at all
	rec = do(h, http.MethodPost, "/api/upload-report", form("x", "y"), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpoints(t *testing.T) {
	h, _, r := newTestRouter(t)

	rec := do(h, http.MethodPost, "/api/analyze-report", form("report_id", "1"), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"task_id":"t-1"`)
	assert.Equal(t, middleware.DefaultQuery, r.lastQuery)

	rec = do(h, http.MethodPost, "/api/analyze-report-sync", form("report_id", "1", "query", " iron? "), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"confidence_score":0.95`)
	assert.Equal(t, "iron?", r.lastQuery)

	rec = do(h, http.MethodPost, "/api/analyze-report", form("report_id", "abc"), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/analyze-report", form("report_id", "1", "query", strings.Repeat("x", 1001)), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", reports.ErrNotFound, http.StatusNotFound},
		{"quota", domai.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"queue down", jobs.ErrQueueDisabled, http.StatusServiceUnavailable},
		{"ai not configured", domai.ErrNotConfigured, http.StatusServiceUnavailable},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, r := newTestRouter(t)
			r.analyzeErr = tt.err
			rec := do(h, http.MethodPost, "/api/analyze-report", form("report_id", "1"), true)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", detail(t, rec))
			}
		})
	}
}

func TestTaskStatus(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(h, http.MethodGet, "/api/task-status/6f1c1f7e-8a8b-4c51-9d6c-111111111111", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)
	assert.Contains(t, rec.Body.String(), `"result":null`)

	rec = do(h, http.MethodGet, "/api/task-status/6f1c1f7e-8a8b-4c51-9d6c-000000000000", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", detail(t, rec))

	rec = do(h, http.MethodGet, "/api/task-status/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportEndpoints(t *testing.T) {
	h, _, r := newTestRouter(t)

	rec := do(h, http.MethodGet, "/api/user-reports", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []reports.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(h, http.MethodGet, "/api/user-reports?page=2&page_size=5", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, r.page)
	assert.Contains(t, rec.Body.String(), `"pageSize":5`)

	rec = do(h, http.MethodGet, "/api/user-reports?page=0", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/report/1", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/report/99", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Report not found", detail(t, rec))

	rec = do(h, http.MethodGet, "/api/report/1/download", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="lab.pdf"`)
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())

	rec = do(h, http.MethodGet, "/api/report/1/queries", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"query_text":"q"`)

	rec = do(h, http.MethodGet, "/api/dashboard/summary", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(h, http.MethodDelete, "/api/report/1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Report deleted successfully")
	assert.Equal(t, []reports.ReportID{1}, r.deleted)
}

func TestHealthAndPerformance(t *testing.T) {
	h := NewRouter(Options{
		Auth:    &fakeAuth{},
		Reports: newFakeReports(),
		HealthCheckers: map[string]middleware.HealthChecker{
			"database": middleware.CheckFunc(func(context.Context) error { return nil }),
		},
		QueueDepth: func(context.Context) (int64, int64, error) { return 3, 1, nil },
		Version:    "1.2.3",
	})

	rec := do(h, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)

	rec = do(h, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/performance", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "queue")
}
