package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"resumeform/internal/errors"
	"resumeform/internal/types"
	"resumeform/internal/uploadform"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Multipart field names shared by the browser form and the JSON API
const (
	fieldResume         = "resume"
	fieldJobDescription = "jobDescription"
	fieldAction         = "action"
)

// formHandler serves the browser form. GET renders the session's view; POST
// applies the posted file and text and submits unless only a file selection was requested.
func (s *Server) formHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sess := s.Sessions.Acquire(w, r, s.tlsEnabled())
		s.renderForm(w, sess)
	case http.MethodPost:
		s.handleFormPost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFormPost(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Acquire(w, r, s.tlsEnabled())

	ctx, span := s.om.Tracer("resumeform.web").Start(r.Context(), "web.submit")
	defer span.End()

	if err := r.ParseMultipartForm(s.multipartMemory()); err != nil {
		span.RecordError(err)
		status, title, message := multipartFailure(err)
		s.Logger.Warn("Rejected form post", "session_id", sess.ID, "error", err)
		http.Error(w, title+": "+message, status)
		return
	}
	defer s.removeMultipartFiles(r)

	file, ok, err := readUploadedResume(r.MultipartForm)
	if err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to read uploaded resume", "session_id", sess.ID)
		http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}
	if ok {
		sess.Form.SelectFile(file)
	}
	if values, present := r.MultipartForm.Value[fieldJobDescription]; present && len(values) > 0 {
		sess.Form.EditJobDescription(values[0])
	}

	action := r.FormValue(fieldAction)
	span.SetAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("form.action", action),
		attribute.Bool("form.file_uploaded", ok),
	)

	if action != "select" {
		s.startSubmission(ctx, sess)
	}

	// Post/redirect/get: the page shows the submitting view and refreshes until idle.
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// startSubmission validates the session's form and runs the analysis in the
// background. The call outlives the request and a closed browser tab.
func (s *Server) startSubmission(ctx context.Context, sess *Session) {
	detached := context.WithoutCancel(ctx)
	done, err := sess.Form.Start(detached)
	if err != nil {
		s.om.GetMetrics().RecordSubmission(ctx, err, "web")
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("error.type", string(errorType(err))))
		if errors.HasCode(err, errors.ErrCodeSubmissionInProgress) {
			s.Logger.Debug("Submission already in progress", "session_id", sess.ID)
		}
		return
	}

	s.submissions.Add(1)
	go func() {
		defer s.submissions.Done()
		err := <-done
		s.om.GetMetrics().RecordSubmission(detached, err, "web")
		if err != nil {
			s.Logger.Debug("Background submission failed", "session_id", sess.ID, "error", err)
		}
	}()
}

// analyzeAPIHandler submits a multipart request through a fresh form and
// answers with the analysis result as JSON.
func (s *Server) analyzeAPIHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeErrorResponse(w, "Method not allowed", "Use POST with a multipart/form-data body", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.om.Tracer("resumeform.api").Start(r.Context(), "api.analyze")
	defer span.End()

	if err := r.ParseMultipartForm(s.multipartMemory()); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		status, title, message := multipartFailure(err)
		writeErrorResponse(w, title, message, status)
		return
	}
	defer s.removeMultipartFiles(r)

	form := uploadform.New(s.client, uploadform.WithLogger(s.Logger))

	file, ok, err := readUploadedResume(r.MultipartForm)
	if err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Invalid request body", "Failed to read the resume part", http.StatusBadRequest)
		return
	}
	if ok {
		form.SelectFile(file)
		span.SetAttributes(
			attribute.Int64("request.resume_size", file.Size),
			attribute.String("request.resume_type", file.ContentType),
		)
	}
	jobDescription := r.FormValue(fieldJobDescription)
	form.EditJobDescription(jobDescription)
	span.SetAttributes(attribute.Int("request.job_length", len(jobDescription)))

	err = form.Submit(context.WithoutCancel(ctx))
	s.om.GetMetrics().RecordSubmission(ctx, err, "api")
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", string(errorType(err))))

		appErr, _ := errors.AsAppError(err)
		code, message := errors.ErrCodeSubmissionFailed, uploadform.FailureMessage
		if appErr != nil {
			code, message = appErr.Code, appErr.Message
		}
		if errors.IsType(err, errors.ErrorTypeValidation) {
			writeErrorResponse(w, code, message, http.StatusBadRequest)
			return
		}
		writeErrorResponse(w, code, message, http.StatusBadGateway)
		return
	}

	result := form.State().Result
	span.SetAttributes(attribute.Float64("ats.score", result.ATSScore.Score))
	writeJSON(w, http.StatusOK, result)
}

// healthHandler reports service health including the analysis circuit breaker
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "healthy",
		"service": "resumeform",
		"version": s.Version,
	}

	status := http.StatusOK
	if s.health != nil {
		response["circuit_breaker"] = s.health.Stats()
		if !s.health.Healthy() {
			response["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	if s.certWatcher != nil {
		response["certificates"] = s.certWatcher.Status()
	}

	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service": "resumeform",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"active_sessions":        s.Sessions.Len(),
			"api_keys_configured":    len(s.APIKeys),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.health != nil {
		response["circuit_breaker"] = s.health.Stats()
	}

	writeJSON(w, http.StatusOK, response)
}

// readUploadedResume loads the first non-empty resume part. ok is false when
// no file was chosen, which browsers send as an empty part.
func readUploadedResume(form *multipart.Form) (file types.SelectedFile, ok bool, err error) {
	if form == nil {
		return types.SelectedFile{}, false, nil
	}
	headers := form.File[fieldResume]
	if len(headers) == 0 || headers[0].Filename == "" {
		return types.SelectedFile{}, false, nil
	}
	header := headers[0]

	f, err := header.Open()
	if err != nil {
		return types.SelectedFile{}, false, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close uploaded file: %v", err)
		}
	}()

	content, err := io.ReadAll(f)
	if err != nil {
		return types.SelectedFile{}, false, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	// The declared type goes out unchanged; sniffing only fills in a missing
	// one or labels a generic one for display.
	file = types.SelectedFile{
		Name:        header.Filename,
		Size:        int64(len(content)),
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}
	switch file.ContentType {
	case "":
		file.ContentType = mimetype.Detect(content).String()
	case "application/octet-stream":
		file.DetectedType = mimetype.Detect(content).String()
	}
	return file, true, nil
}

// multipartMemory bounds the in-memory part of a parsed upload; the rest spills to temp files
func (s *Server) multipartMemory() int64 {
	const defaultMemory = 32 << 20
	if s.MaxRequestSize > 0 && s.MaxRequestSize < defaultMemory {
		return s.MaxRequestSize
	}
	return defaultMemory
}

func (s *Server) removeMultipartFiles(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		s.Logger.Warn("Failed to remove multipart temp files", "error", err)
	}
}

func multipartFailure(err error) (status int, title, message string) {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, "Request too large",
			fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
	}
	return http.StatusBadRequest, "Invalid request body", "expected a multipart/form-data body: " + err.Error()
}

func errorType(err error) errors.ErrorType {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Type
	}
	return errors.ErrorTypeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
