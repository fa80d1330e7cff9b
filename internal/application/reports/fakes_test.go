package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	appai "github.com/bryanwahyu/bloodreport-ai/internal/application/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/querylogs"
	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
)

var errMiss = errors.New("miss")

type memRepo struct {
	mu      sync.Mutex
	next    int64
	rows    map[domain.ReportID]*domain.Report
	saveErr error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[domain.ReportID]*domain.Report{}} }

func (m *memRepo) Save(_ context.Context, r *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.next++
	r.ID = domain.ReportID(m.next)
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, userID int64, id domain.ReportID) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID int64) ([]*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Report{}
	for _, r := range m.rows {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) Paginate(ctx context.Context, userID int64, page, pageSize int) (domain.PaginatedResult, error) {
	all, _ := m.ListByUser(ctx, userID)
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return domain.PaginatedResult{Data: all[start:end], Page: page, PageSize: pageSize, Total: int64(len(all))}, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id domain.ReportID, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	return nil
}

func (m *memRepo) UpdateResult(_ context.Context, id domain.ReportID, status domain.Status, result string, confidence *float64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	r.AnalysisResult = result
	r.ConfidenceScore = confidence
	if text != "" {
		r.ExtractedText = text
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, userID int64, id domain.ReportID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) Summary(ctx context.Context, userID int64) (domain.StatusCounts, error) {
	all, _ := m.ListByUser(ctx, userID)
	var c domain.StatusCounts
	for _, r := range all {
		c.Add(r.Status, 1)
	}
	return c, nil
}

func (m *memRepo) row(id int64) domain.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[domain.ReportID(id)]
}

type memFiles struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removeErr error
}

func newMemFiles() *memFiles { return &memFiles{objects: map[string][]byte{}} }

func (f *memFiles) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return key, nil
}

func (f *memFiles) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (f *memFiles) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, key)
	return nil
}

func (f *memFiles) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

type fakePDF struct {
	text string
}

func (p fakePDF) Inspect(data []byte) (domain.PDFInfo, error) {
	if !strings.HasPrefix(string(data), "%PDF-") {
		return domain.PDFInfo{}, domain.ErrInvalidPDF
	}
	return domain.PDFInfo{PageCount: 2}, nil
}

func (p fakePDF) ExtractText(context.Context, []byte) (string, error) { return p.text, nil }

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return errMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) DeletePattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type memLogs struct {
	mu   sync.Mutex
	next int64
	rows map[int64]*querylogs.QueryLog
}

func newMemLogs() *memLogs { return &memLogs{rows: map[int64]*querylogs.QueryLog{}} }

func (l *memLogs) Save(_ context.Context, q *querylogs.QueryLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	q.ID = l.next
	cp := *q
	l.rows[q.ID] = &cp
	return nil
}

func (l *memLogs) Complete(_ context.Context, id int64, status querylogs.Status, response string, pt float64, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.rows[id]
	q.Status, q.ResponseText, q.ProcessingTime, q.CompletedAt = status, response, pt, &at
	return nil
}

func (l *memLogs) ListByReport(_ context.Context, userID, reportID int64, _ int) ([]*querylogs.QueryLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []*querylogs.QueryLog{}
	for _, q := range l.rows {
		if q.UserID == userID && q.ReportID == reportID {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *memLogs) get(id int64) querylogs.QueryLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.rows[id]
}

type staticUsers struct{ byID map[int64]*users.User }

func (u staticUsers) Create(context.Context, *users.User) error { return nil }
func (u staticUsers) GetByID(_ context.Context, id int64) (*users.User, error) {
	if x, ok := u.byID[id]; ok {
		return x, nil
	}
	return nil, users.ErrNotFound
}
func (u staticUsers) GetByUsername(context.Context, string) (*users.User, error) {
	return nil, users.ErrNotFound
}
func (u staticUsers) FindByIdentifier(context.Context, string) (*users.User, error) {
	return nil, users.ErrNotFound
}
func (u staticUsers) Exists(context.Context, string, string, string) (bool, error) { return false, nil }

type stubAnalyzer struct {
	mu    sync.Mutex
	calls int
	last  ai.Request
	name  string
	res   appai.Result
	err   error
}

func (a *stubAnalyzer) AnalyzeReport(_ context.Context, req ai.Request, name string) (appai.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = req
	a.name = name
	return a.res, a.err
}
