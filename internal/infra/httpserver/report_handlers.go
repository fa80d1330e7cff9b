package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/middleware"
)

const defaultQueryLimit = 50

func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	if r.maxUpload > 0 {
		// room for the multipart envelope
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+1<<20)
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return &middleware.ValidationError{Field: "file", Message: "a PDF file is required"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	rep, err := r.reports.Upload(req.Context(), user.ID, filepath.Base(header.Filename), data)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Report uploaded successfully",
		"report_id": rep.ID,
		"filename":  rep.Filename,
	})
	return nil
}

// analysisForm reads report_id and query from the form body.
func analysisForm(req *http.Request) (reports.ReportID, string, error) {
	id, err := middleware.ParseReportID(req.FormValue("report_id"))
	if err != nil {
		return 0, "", err
	}
	q, err := middleware.NormalizeQuery(req.FormValue("query"))
	if err != nil {
		return 0, "", err
	}
	return reports.ReportID(id), q, nil
}

func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	id, q, err := analysisForm(req)
	if err != nil {
		return err
	}
	res, err := r.reports.Analyze(req.Context(), user.ID, id, q)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (r *Router) handleAnalyzeSync(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	id, q, err := analysisForm(req)
	if err != nil {
		return err
	}
	res, err := r.reports.AnalyzeSync(req.Context(), user, id, q)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (r *Router) handleTaskStatus(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	taskID := chi.URLParam(req, "task_id")
	if err := middleware.ValidateTaskID(taskID); err != nil {
		return err
	}
	st, err := r.reports.TaskStatus(req.Context(), user.ID, taskID)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (r *Router) handleUserReports(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	q := req.URL.Query()
	page, size, err := middleware.ValidatePagination(q.Get("page"), q.Get("page_size"))
	if err != nil {
		return err
	}

	if page > 0 {
		res, err := r.reports.Paginate(req.Context(), user.ID, page, size)
		if err != nil {
			return err
		}
		middleware.WriteJSON(w, http.StatusOK, res)
		return nil
	}

	list, err := r.reports.List(req.Context(), user.ID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*reports.Report{}
	}
	middleware.WriteJSON(w, http.StatusOK, list)
	return nil
}

func reportID(req *http.Request) (reports.ReportID, error) {
	id, err := middleware.ParseReportID(chi.URLParam(req, "id"))
	return reports.ReportID(id), err
}

func (r *Router) handleGetReport(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	id, err := reportID(req)
	if err != nil {
		return err
	}
	rep, err := r.reports.Get(req.Context(), user.ID, id)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, rep)
	return nil
}

func (r *Router) handleDownload(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	id, err := reportID(req)
	if err != nil {
		return err
	}
	rep, data, err := r.reports.Download(req.Context(), user.ID, id)
	if err != nil {
		return err
	}

	name := rep.OriginalFilename
	if name == "" {
		name = rep.Filename
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

func (r *Router) handleQueries(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	id, err := reportID(req)
	if err != nil {
		return err
	}
	limit := defaultQueryLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return &middleware.ValidationError{Field: "limit", Message: "limit must be an integer"}
		}
		limit = middleware.ValidateLimit(n)
	}

	logs, err := r.reports.Queries(req.Context(), user.ID, id, limit)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"report_id": id,
		"queries":   logs,
	})
	return nil
}

func (r *Router) handleDeleteReport(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	id, err := reportID(req)
	if err != nil {
		return err
	}
	if err := r.reports.Delete(req.Context(), user.ID, id); err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Report deleted successfully"})
	return nil
}

func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	counts, err := r.reports.Summary(req.Context(), user.ID)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, counts)
	return nil
}
