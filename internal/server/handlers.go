package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hyperjump/redline/internal/docx"
	"github.com/hyperjump/redline/internal/extract"
	"github.com/hyperjump/redline/internal/llm"
	"github.com/hyperjump/redline/internal/models"
	"github.com/hyperjump/redline/internal/report"
	"github.com/hyperjump/redline/internal/storage"
	"go.uber.org/zap"
)

const (
	// DownloadName is the file name offered to callers for revised documents.
	DownloadName = "revised_contract.docx"
	// ReportDownloadName is the file name offered to callers for outcome reports.
	ReportDownloadName = "revision_outcomes.xlsx"

	defaultListLimit = 20
	maxListLimit     = 100
	multipartMemory  = 8 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{}
	if s.storage != nil {
		n, err := s.storage.CountRevisions(r.Context())
		if err != nil {
			s.logger.Error("status: count revisions failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["revisions"] = n
	}

	diskBytes, err := storage.DiskUsageBytes(s.config.Storage.OutputDir, s.config.Storage.UploadDir)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"llm_provider":     s.config.LLM.Provider,
		"llm_model":        s.config.LLM.Model,
		"report_outcomes":  s.config.Revision.ReportOutcomes,
		"max_upload_bytes": s.config.Server.MaxUploadBytes,
		"output_dir":       s.config.Storage.OutputDir,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	path, err := s.receiveUpload(w, r)
	if err != nil {
		s.respondUploadError(w, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
		}
	}()

	text, err := s.pipeline.Preview(r.Context(), path)
	if err != nil {
		s.logger.Debug("preview failed", zap.Error(err))
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.PreviewResponse{ContractText: text})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessRequest
	if err := s.readBody(w, r, &req); err != nil {
		s.respondBodyError(w, err)
		return
	}
	if !isJSON(r) {
		req.ContractText = r.FormValue("contract_text")
		req.ChangeInstructions = r.FormValue("change_instructions")
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Debug("process request",
		zap.Int("contract_chars", len(req.ContractText)),
		zap.String("instruction", req.ChangeInstructions),
	)
	res, err := s.pipeline.Process(r.Context(), req.ContractText, req.ChangeInstructions)
	if err != nil {
		s.logger.Error("process failed", zap.Error(err))
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ProcessResponse{
		Contract:     res.Highlighted,
		DownloadFile: res.Artifact,
		Clauses:      res.Clauses,
		Changes:      res.Outcomes,
		ReportFile:   res.Report,
	})
}

func (s *Server) handleDownloadEdit(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadEditRequest
	if err := s.readBody(w, r, &req); err != nil {
		s.respondBodyError(w, err)
		return
	}
	if !isJSON(r) {
		req.Text = r.FormValue("text")
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text cannot be empty")
		return
	}

	name, err := s.pipeline.SaveEdited(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("saving edited document failed", zap.Error(err))
		s.respondPipelineError(w, err)
		return
	}
	path, err := s.artifacts.Path(name)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.serveFile(w, r, path, docx.ContentType, DownloadName)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, err := s.artifacts.Path(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.serveFile(w, r, path, docx.ContentType, DownloadName)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.respondError(w, http.StatusNotImplemented, "outcome reports not enabled")
		return
	}
	path, err := s.reports.Path(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "report not found")
		return
	}
	s.serveFile(w, r, path, report.ContentType, ReportDownloadName)
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "revision catalog not enabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	revs, err := s.storage.ListRevisions(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list revisions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountRevisions(r.Context())
	if err != nil {
		s.logger.Error("count revisions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"revisions": revs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "revision catalog not enabled")
		return
	}
	artifact := chi.URLParam(r, "artifact")
	rev, err := s.storage.GetRevisionByArtifact(r.Context(), artifact)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "revision not found")
			return
		}
		s.logger.Error("get revision failed", zap.String("artifact", artifact), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	detail := models.RevisionDetail{Revision: rev}
	if rev.Report != "" && s.reports != nil {
		outcomes, err := s.readOutcomes(rev.Report)
		if err != nil {
			s.logger.Warn("outcome report unreadable", zap.String("report", rev.Report), zap.Error(err))
		} else {
			detail.Outcomes = outcomes
		}
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) readOutcomes(name string) ([]models.Outcome, error) {
	path, err := s.reports.Path(name)
	if err != nil {
		return nil, err
	}
	return report.ReadOutcomes(path)
}

// receiveUpload stores the multipart "file" field under a fresh name in the upload
// directory and returns its path. Only the extension of the client's file name is kept.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	if limit := s.config.Server.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", errMissingFile
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !extract.Supported(ext) {
		return "", fmt.Errorf("%w: %q", errUnsupportedType, ext)
	}
	if err := os.MkdirAll(s.config.Storage.UploadDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %w", docx.ErrStorageWrite, err)
	}
	path := filepath.Join(s.config.Storage.UploadDir, uuid.New().String()+ext)
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("%w: %w", docx.ErrStorageWrite, err)
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %w", docx.ErrStorageWrite, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %w", docx.ErrStorageWrite, err)
	}
	s.logger.Debug("upload stored", zap.String("client_name", header.Filename), zap.String("path", path))
	return path, nil
}

var (
	errMissingFile     = errors.New("file is required")
	errUnsupportedType = errors.New("unsupported document type")
	errInvalidBody     = errors.New("invalid request body")
)

func (s *Server) respondUploadError(w http.ResponseWriter, err error) {
	switch {
	case isTooLarge(err):
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.config.Server.MaxUploadBytes))
	case errors.Is(err, docx.ErrStorageWrite):
		s.logger.Error("storing upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, errMissingFile):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errUnsupportedType):
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s; supported: %s",
			err.Error(), strings.Join(extract.SupportedExtensions(), ", ")))
	default:
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
	}
}

// isTooLarge reports whether err came from the upload size limit. Older multipart
// readers flatten the error, so the message is checked as well.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extract.ErrUnreadableDocument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrMalformedResponse), errors.Is(err, llm.ErrServiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, contentType, downloadName string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	http.ServeContent(w, r, downloadName, info.ModTime(), f)
}

// readBody applies the upload size limit to the request body, then decodes a JSON
// body into v or parses a form body for FormValue.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if limit := s.config.Server.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			return fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		return nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

func (s *Server) respondBodyError(w http.ResponseWriter, err error) {
	if isTooLarge(err) {
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", s.config.Server.MaxUploadBytes))
		return
	}
	s.respondError(w, http.StatusBadRequest, "invalid request body")
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
