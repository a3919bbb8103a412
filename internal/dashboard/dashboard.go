// Package dashboard serves a read-only status page over the status
// store: an HTML table for browsers and a JSON endpoint for scripts.
package dashboard

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"dictascribe/internal/statusstore"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="10">
<title>dictascribe</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #f0f0f0; }
.error { color: #b00020; }
.done { color: #1b7f3b; }
</style>
</head>
<body>
<h1>Transcription studies</h1>
<p>{{len .Studies}} tracked, refreshed {{.Now.Format "15:04:05"}}</p>
<table>
<tr><th>Study</th><th>Status</th><th>Updated</th><th>Detail</th></tr>
{{range .Studies}}
<tr>
<td>{{.StudyKey}}</td>
<td class="{{statusClass .Status}}">{{.Status}}</td>
<td>{{.LastUpdatedAt.Format "2006-01-02 15:04:05"}}</td>
<td>{{if .ErrorMessage}}{{.ErrorMessage}}{{else}}{{.DicomPath}}{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`

// Server exposes study statuses on a local HTTP listener.
type Server struct {
	status statusstore.Store
	listen string
	log    *logrus.Entry
	tmpl   *template.Template
}

func NewServer(status statusstore.Store, listen string, log *logrus.Entry) *Server {
	tmpl := template.Must(template.New("page").Funcs(template.FuncMap{
		"statusClass": statusClass,
	}).Parse(pageTemplate))
	return &Server{status: status, listen: listen, log: log, tmpl: tmpl}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/studies", s.handleStudies)

	srv := &http.Server{
		Addr:         s.listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.WithField("listen", s.listen).Info("dashboard started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.log.Info("dashboard stopped")
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	studies, err := s.status.ListStatuses(r.Context())
	if err != nil {
		s.log.WithError(err).Error("failed to list statuses")
		http.Error(w, "status store unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, struct {
		Studies []statusstore.StudyStatus
		Now     time.Time
	}{studies, time.Now()}); err != nil {
		s.log.WithError(err).Error("failed to render dashboard")
	}
}

func (s *Server) handleStudies(w http.ResponseWriter, r *http.Request) {
	studies, err := s.status.ListStatuses(r.Context())
	if err != nil {
		s.log.WithError(err).Error("failed to list statuses")
		http.Error(w, `{"error":"status store unavailable"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(studies); err != nil {
		s.log.WithError(err).Error("failed to encode statuses")
	}
}

func statusClass(status statusstore.Status) string {
	switch status {
	case statusstore.StatusError:
		return "error"
	case statusstore.StatusProcessingComplete, statusstore.StatusCompleteSR:
		return "done"
	default:
		return ""
	}
}
