package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"resumeform/internal/uploadform"
)

//go:embed templates/*.html
var templateFS embed.FS

var formTemplate = template.Must(template.ParseFS(templateFS, "templates/form.html"))

type formPage struct {
	View    uploadform.View
	Notices []uploadform.Notice

	AcceptedFormats string
	FormatsHint     string
	LoadingMessage  string
	RefreshSeconds  int
}

// busyRefreshSeconds is how often a submitting page reloads itself
const busyRefreshSeconds = 2

// renderForm writes the session's current view and any pending alerts
func (s *Server) renderForm(w http.ResponseWriter, sess *Session) {
	page := formPage{
		View:            sess.Form.View(),
		AcceptedFormats: uploadform.AcceptedFormats,
		FormatsHint:     uploadform.FormatsHint,
		LoadingMessage:  uploadform.LoadingMessage,
		RefreshSeconds:  busyRefreshSeconds,
	}
	// Alerts of a running submission are raised before it turns idle; keep
	// them for the first idle page.
	if !page.View.Busy {
		page.Notices = sess.Notices.Drain()
	}

	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, page); err != nil {
		s.Logger.LogError(err, "Failed to render form", "session_id", sess.ID)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		s.Logger.Warn("Failed to write page", "session_id", sess.ID, "error", err)
	}
}
