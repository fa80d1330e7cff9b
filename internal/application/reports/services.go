package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/bloodreport-ai/internal/application"
	appai "github.com/bryanwahyu/bloodreport-ai/internal/application/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/querylogs"
	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
	"github.com/bryanwahyu/bloodreport-ai/internal/metrics"
)

// Analyzer is the slice of the AI service reports need.
type Analyzer interface {
	AnalyzeReport(ctx context.Context, req ai.Request, displayName string) (appai.Result, error)
}

// Service implements use-cases untuk blood report.
// Safe for concurrent use.
type Service struct {
	Repo  domain.Repository
	Files domain.FileStore
	PDF   domain.PDFReader
	Cache domain.Cache
	Logs  querylogs.Repository
	Users users.Repository
	Queue jobs.Queue // nil when no queue backend is running
	Tasks jobs.StatusStore
	AI    Analyzer
	Clock application.Clock
	Log   *zap.Logger

	MaxUploadBytes int64
	TaskTimeout    time.Duration
}

//
// ==== USE CASES ====
//

// AnalyzeAccepted is returned when a job is queued.
type AnalyzeAccepted struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	ReportID int64  `json:"report_id"`
	Message  string `json:"message"`
}

// SyncResult is the inline analysis payload.
type SyncResult struct {
	Status          string  `json:"status"`
	ReportID        int64   `json:"report_id"`
	Result          string  `json:"result"`
	Fallback        bool    `json:"fallback"`
	ConfidenceScore float64 `json:"confidence_score"`
	ProcessingTime  float64 `json:"processing_time"`
	Cached          bool    `json:"cached"`
}

// Upload validasi PDF → simpan ke storage → insert row
func (s *Service) Upload(ctx context.Context, userID int64, originalName string, data []byte) (*domain.Report, error) {
	if !strings.EqualFold(filepath.Ext(originalName), ".pdf") {
		return nil, domain.ErrNotPDF
	}
	if s.MaxUploadBytes > 0 && int64(len(data)) > s.MaxUploadBytes {
		return nil, domain.ErrTooLarge
	}
	if len(data) == 0 {
		return nil, domain.ErrInvalidPDF
	}

	info, err := s.PDF.Inspect(data)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("blood_test_report_%s.pdf", uuid.New().String())
	key := fmt.Sprintf("%d/%s", userID, filename)
	if _, err := s.Files.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	rep := &domain.Report{
		UserID:           userID,
		Filename:         filename,
		OriginalFilename: filepath.Base(originalName),
		FilePath:         key,
		FileSize:         int64(len(data)),
		PageCount:        info.PageCount,
		UploadDate:       s.Clock.Now().UTC(),
		Status:           domain.StatusUploaded,
	}
	if err := s.Repo.Save(ctx, rep); err != nil {
		if rmErr := s.Files.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			s.Log.Warn("orphaned report object", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, err
	}

	s.invalidate(ctx, userID, int64(rep.ID), false)
	s.Log.Info("report uploaded",
		zap.Int64("user_id", userID), zap.Int64("report_id", int64(rep.ID)),
		zap.Int64("size", rep.FileSize), zap.Int("pages", rep.PageCount))
	return rep, nil
}

// List returns the user's reports, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*domain.Report, error) {
	key := userReportsKey(userID)
	var cached []*domain.Report
	if err := s.Cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	list, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, key, list, listTTL); err != nil {
		s.Log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return list, nil
}

func (s *Service) Paginate(ctx context.Context, userID int64, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, userID, page, pageSize)
}

func (s *Service) Get(ctx context.Context, userID int64, id domain.ReportID) (*domain.Report, error) {
	key := reportDetailsKey(userID, int64(id))
	var cached domain.Report
	if err := s.Cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	rep, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, key, rep, detailTTL); err != nil {
		s.Log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return rep, nil
}

// Download returns the stored PDF of an owned report.
func (s *Service) Download(ctx context.Context, userID int64, id domain.ReportID) (*domain.Report, []byte, error) {
	rep, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.Files.Download(ctx, rep.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return rep, data, nil
}

// Delete hapus object di storage (best effort) lalu row di DB
func (s *Service) Delete(ctx context.Context, userID int64, id domain.ReportID) error {
	rep, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Files.Remove(ctx, rep.FilePath); err != nil {
		s.Log.Warn("failed to remove report object", zap.String("key", rep.FilePath), zap.Error(err))
	}
	if err := s.Repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(ctx, userID, int64(id), true)
	s.Log.Info("report deleted", zap.Int64("user_id", userID), zap.Int64("report_id", int64(id)))
	return nil
}

// Queries is the analysis history of an owned report.
func (s *Service) Queries(ctx context.Context, userID int64, id domain.ReportID, limit int) ([]*querylogs.QueryLog, error) {
	if _, err := s.Repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.Logs.ListByReport(ctx, userID, int64(id), limit)
}

func (s *Service) Summary(ctx context.Context, userID int64) (domain.StatusCounts, error) {
	return s.Repo.Summary(ctx, userID)
}

// Analyze queues an analysis and returns the task id to poll.
func (s *Service) Analyze(ctx context.Context, userID int64, id domain.ReportID, query string) (*AnalyzeAccepted, error) {
	if s.Queue == nil {
		return nil, jobs.ErrQueueDisabled
	}
	if _, err := s.Repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	query = normalizeQuery(query)
	taskID := uuid.New().String()

	qlog := &querylogs.QueryLog{
		UserID:    userID,
		ReportID:  int64(id),
		TaskID:    taskID,
		QueryText: query,
		Status:    querylogs.StatusPending,
		CreatedAt: s.Clock.Now().UTC(),
	}
	if err := s.Logs.Save(ctx, qlog); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateStatus(ctx, id, domain.StatusPending); err != nil {
		return nil, err
	}
	if err := s.setTask(ctx, &jobs.TaskStatus{TaskID: taskID, Status: jobs.StatePending, ReportID: int64(id), UserID: userID}); err != nil {
		return nil, err
	}

	job := &jobs.Job{
		TaskID:     taskID,
		ReportID:   int64(id),
		UserID:     userID,
		QueryLogID: qlog.ID,
		Query:      query,
		EnqueuedAt: s.Clock.Now().UTC(),
	}
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		s.fail(ctx, job, s.Clock.Now(), fmt.Errorf("enqueue: %w", err))
		return nil, err
	}
	s.invalidate(ctx, userID, int64(id), false)

	s.Log.Info("analysis queued", zap.String("task_id", taskID), zap.Int64("report_id", int64(id)), zap.Int64("user_id", userID))
	return &AnalyzeAccepted{
		TaskID:   taskID,
		Status:   "processing",
		ReportID: int64(id),
		Message:  "Analysis started",
	}, nil
}

// AnalyzeSync runs the analysis inline, answering repeated questions from cache.
func (s *Service) AnalyzeSync(ctx context.Context, user *users.User, id domain.ReportID, query string) (*SyncResult, error) {
	if _, err := s.Repo.Get(ctx, user.ID, id); err != nil {
		return nil, err
	}
	query = normalizeQuery(query)

	key := analysisKey(int64(id), query)
	var cached SyncResult
	if err := s.Cache.Get(ctx, key, &cached); err == nil {
		cached.Cached = true
		return &cached, nil
	}

	qlog := &querylogs.QueryLog{
		UserID:    user.ID,
		ReportID:  int64(id),
		TaskID:    uuid.New().String(),
		QueryText: query,
		Status:    querylogs.StatusProcessing,
		CreatedAt: s.Clock.Now().UTC(),
	}
	if err := s.Logs.Save(ctx, qlog); err != nil {
		return nil, err
	}
	job := &jobs.Job{TaskID: qlog.TaskID, ReportID: int64(id), UserID: user.ID, QueryLogID: qlog.ID, Query: query}

	if s.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.TaskTimeout)
		defer cancel()
	}
	res, err := s.execute(ctx, job, user)
	if err != nil {
		return nil, err
	}

	out := &SyncResult{
		Status:          "processed",
		ReportID:        int64(id),
		Result:          res.Result,
		Fallback:        res.Fallback,
		ConfidenceScore: res.ConfidenceScore,
		ProcessingTime:  res.ProcessingTime,
	}
	if err := s.Cache.Set(ctx, key, out, analysisTTL); err != nil {
		s.Log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// TaskStatus returns a task of this user; anyone else's task is reported as missing.
func (s *Service) TaskStatus(ctx context.Context, userID int64, taskID string) (*jobs.TaskStatus, error) {
	if s.Tasks == nil {
		return nil, jobs.ErrQueueDisabled
	}
	st, err := s.Tasks.GetStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, jobs.ErrTaskNotFound
	}
	if !st.Status.Ready() {
		st.Result = nil
	}
	return st, nil
}

// ProcessJob is the worker entry point for a queued analysis.
func (s *Service) ProcessJob(ctx context.Context, job *jobs.Job) error {
	user, err := s.Users.GetByID(ctx, job.UserID)
	if err != nil {
		// the analysis can still run, it only addresses the user by name
		s.Log.Warn("job owner lookup failed", zap.Int64("user_id", job.UserID), zap.Error(err))
		user = &users.User{ID: job.UserID}
	}
	_, err = s.execute(ctx, job, user)
	return err
}

// execute: download → extract → AI → simpan hasil
func (s *Service) execute(ctx context.Context, job *jobs.Job, user *users.User) (*jobs.TaskResult, error) {
	start := s.Clock.Now()
	metrics.AnalysisStarted()
	reportID := domain.ReportID(job.ReportID)
	log := s.Log.With(zap.String("task_id", job.TaskID), zap.Int64("report_id", job.ReportID))

	if err := s.setTask(ctx, &jobs.TaskStatus{TaskID: job.TaskID, Status: jobs.StateStarted, ReportID: job.ReportID, UserID: job.UserID}); err != nil {
		log.Warn("task status update failed", zap.Error(err))
	}
	if err := s.Repo.UpdateStatus(ctx, reportID, domain.StatusProcessing); err != nil {
		return nil, s.fail(ctx, job, start, err)
	}

	rep, err := s.Repo.Get(ctx, job.UserID, reportID)
	if err != nil {
		return nil, s.fail(ctx, job, start, err)
	}
	data, err := s.Files.Download(ctx, rep.FilePath)
	if err != nil {
		return nil, s.fail(ctx, job, start, fmt.Errorf("download report: %w", err))
	}

	text, err := s.PDF.ExtractText(ctx, data)
	if err != nil {
		// the model still gets the PDF itself
		log.Warn("text extraction failed", zap.Error(err))
		text = ""
	}

	res, err := s.AI.AnalyzeReport(ctx, ai.Request{Query: job.Query, ReportText: text, PDF: data}, user.DisplayName())
	if err != nil {
		return nil, s.fail(ctx, job, start, err)
	}

	confidence := res.Confidence
	if err := s.Repo.UpdateResult(ctx, reportID, domain.StatusCompleted, res.Text, &confidence, text); err != nil {
		return nil, s.fail(ctx, job, start, err)
	}

	now := s.Clock.Now()
	elapsed := now.Sub(start).Seconds()
	if job.QueryLogID != 0 {
		if err := s.Logs.Complete(ctx, job.QueryLogID, querylogs.StatusCompleted, res.Text, elapsed, now.UTC()); err != nil {
			log.Warn("query log update failed", zap.Error(err))
		}
	}

	result := &jobs.TaskResult{
		Status:          string(domain.StatusCompleted),
		Result:          res.Text,
		ProcessingTime:  elapsed,
		ReportID:        job.ReportID,
		Fallback:        res.Fallback,
		ConfidenceScore: confidence,
	}
	if err := s.setTask(ctx, &jobs.TaskStatus{TaskID: job.TaskID, Status: jobs.StateSuccess, ReportID: job.ReportID, UserID: job.UserID, Result: result}); err != nil {
		log.Warn("task status update failed", zap.Error(err))
	}
	s.invalidate(ctx, job.UserID, job.ReportID, true)
	metrics.AnalysisFinished(false, res.Fallback)

	log.Info("analysis completed",
		zap.Float64("processing_time", elapsed), zap.Bool("fallback", res.Fallback), zap.String("provider", res.Provider))
	return result, nil
}

// fail records the failure everywhere and returns cause. The writes run even
// when ctx already expired.
func (s *Service) fail(ctx context.Context, job *jobs.Job, start time.Time, cause error) error {
	ctx = context.WithoutCancel(ctx)
	metrics.AnalysisFinished(true, false)
	msg := cause.Error()
	log := s.Log.With(zap.String("task_id", job.TaskID), zap.Int64("report_id", job.ReportID))
	log.Error("analysis failed", zap.Error(cause))

	if err := s.Repo.UpdateStatus(ctx, domain.ReportID(job.ReportID), domain.StatusFailed); err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Warn("report status update failed", zap.Error(err))
	}
	if job.QueryLogID != 0 {
		now := s.Clock.Now()
		if err := s.Logs.Complete(ctx, job.QueryLogID, querylogs.StatusFailed, "Error: "+msg, now.Sub(start).Seconds(), now.UTC()); err != nil {
			log.Warn("query log update failed", zap.Error(err))
		}
	}
	if err := s.setTask(ctx, &jobs.TaskStatus{TaskID: job.TaskID, Status: jobs.StateFailure, ReportID: job.ReportID, UserID: job.UserID, Error: msg}); err != nil {
		log.Warn("task status update failed", zap.Error(err))
	}
	s.invalidate(ctx, job.UserID, job.ReportID, false)
	return cause
}

func (s *Service) setTask(ctx context.Context, st *jobs.TaskStatus) error {
	if s.Tasks == nil {
		return nil
	}
	return s.Tasks.SetStatus(ctx, st)
}

// invalidate drops the list and detail entries, and the analysis answers when withAnalysis.
func (s *Service) invalidate(ctx context.Context, userID, reportID int64, withAnalysis bool) {
	if err := s.Cache.Delete(ctx, userReportsKey(userID), reportDetailsKey(userID, reportID)); err != nil {
		s.Log.Warn("cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if withAnalysis {
		if err := s.Cache.DeletePattern(ctx, analysisPattern(reportID)); err != nil {
			s.Log.Warn("cache invalidation failed", zap.Int64("report_id", reportID), zap.Error(err))
		}
	}
}

func normalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return domain.DefaultQuery
	}
	return q
}
