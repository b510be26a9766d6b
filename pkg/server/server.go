package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
	"github.com/elonfeng/presence/pkg/export"
	"github.com/elonfeng/presence/pkg/presence"
	"github.com/elonfeng/presence/pkg/query"
	"github.com/elonfeng/presence/pkg/source"
)

//go:embed ui/*.html
var templateFS embed.FS

const (
	indexEndpoint   = "/"
	analyzeEndpoint = "/analyze"
	apiEndpoint     = "/api/v1/analyze"
	sourcesEndpoint = "/api/v1/sources"
	exportEndpoint  = "/export.csv"
	healthEndpoint  = "/health"

	quotesPerSide = 5
)

// Analyzer runs one analysis. *presence.Pipeline satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, in query.Inputs) *presence.Report
	Adapters() []source.Adapter
}

// Config configures the dashboard server.
type Config struct {
	Analyzer Analyzer

	// Address to listen on, e.g. ":8080".
	ListenAddr string

	// Debug shows per-adapter diagnostics on the results page.
	Debug bool

	// Logger defaults to a discarding logger.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Analyzer == nil {
		err = multierror.Append(err, fmt.Errorf("analyzer not provided"))
	}
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address not provided"))
	}
	cfg.Logger = logging.OrDiscard(cfg.Logger)
	return err
}

// Server serves the dashboard, the JSON API and the CSV export.
type Server struct {
	cfg       Config
	router    *chi.Mux
	templates map[string]*template.Template
}

// New validates cfg, parses the embedded templates and registers routes.
func New(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("server config validation failed: %w", err)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, router: chi.NewRouter(), templates: templates}
	s.router.Get(indexEndpoint, s.handleIndex)
	s.router.Get(analyzeEndpoint, s.handleAnalyzePage)
	s.router.Get(apiEndpoint, s.handleAnalyzeAPI)
	s.router.Get(sourcesEndpoint, s.handleSources)
	s.router.Get(exportEndpoint, s.handleExport)
	s.router.Get(healthEndpoint, s.handleHealth)
	s.router.NotFound(s.handleNotFound)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{Addr: s.cfg.ListenAddr, Handler: s.router}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	s.cfg.Logger.WithField("addr", s.cfg.ListenAddr).Info("started dashboard")
	if err = srv.Serve(l); err == http.ErrServerClosed {
		err = nil
	}
	return err
}

func parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)
	for _, page := range []string{"index.html", "report.html", "error.html"} {
		t, err := template.New(page).Funcs(templateFuncs).ParseFS(templateFS, "ui/layout.html", "ui/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page] = t
	}
	return templates, nil
}

// inputsFrom reads the query string: q holds free text, the other fields
// take precedence over what is parsed from it.
func inputsFrom(r *http.Request) query.Inputs {
	v := r.URL.Query()
	explicit := query.Inputs{
		Name:       strings.TrimSpace(v.Get("name")),
		Company:    strings.TrimSpace(v.Get("company")),
		City:       strings.TrimSpace(v.Get("city")),
		Profession: strings.ToLower(strings.TrimSpace(v.Get("profession"))),
	}
	return explicit.Merge(query.Parse(v.Get("q")))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "index.html", map[string]any{
		"analyzeEndpoint": analyzeEndpoint,
	})
}

func (s *Server) handleAnalyzePage(w http.ResponseWriter, r *http.Request) {
	in := inputsFrom(r)
	if in.IsEmpty() {
		s.render(w, http.StatusBadRequest, "index.html", map[string]any{
			"analyzeEndpoint": analyzeEndpoint,
			"message":         "Enter a name, business or keyword to analyze.",
		})
		return
	}

	report := s.cfg.Analyzer.Analyze(r.Context(), in)
	s.render(w, http.StatusOK, "report.html", map[string]any{
		"analyzeEndpoint": analyzeEndpoint,
		"exportURL":       exportEndpoint + "?" + r.URL.RawQuery,
		"apiURL":          apiEndpoint + "?" + r.URL.RawQuery,
		"report":          report,
		"radar":           newRadar(report.Score.Breakdown),
		"categories":      presence.Categories,
		"tipGroups":       report.TipGroups(),
		"positive":        report.TopQuotes(quotesPerSide, true),
		"negative":        report.TopQuotes(quotesPerSide, false),
		"debug":           s.cfg.Debug,
	})
}

func (s *Server) handleAnalyzeAPI(w http.ResponseWriter, r *http.Request) {
	in := inputsFrom(r)
	if in.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is empty"})
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Analyzer.Analyze(r.Context(), in))
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	type sourceInfo struct {
		Name string      `json:"name"`
		Kind source.Kind `json:"kind"`
	}

	infos := make([]sourceInfo, 0, len(s.cfg.Analyzer.Adapters()))
	for _, a := range s.cfg.Analyzer.Adapters() {
		infos = append(infos, sourceInfo{Name: a.Name(), Kind: a.Kind()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	in := inputsFrom(r)
	if in.IsEmpty() {
		http.Error(w, "query is empty", http.StatusBadRequest)
		return
	}

	report := s.cfg.Analyzer.Analyze(r.Context(), in)
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, report); err != nil {
		s.cfg.Logger.WithField("err", err).Error("could not export report")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(report.Query)))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusNotFound, "error.html", map[string]any{
		"analyzeEndpoint": analyzeEndpoint,
		"messageTitle":    "Page not found",
	})
}

// render executes into a buffer first so a template failure can still
// produce a 500.
func (s *Server) render(w http.ResponseWriter, status int, page string, data map[string]any) {
	var buf bytes.Buffer
	if err := s.templates[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.cfg.Logger.WithFields(logrus.Fields{"page": page, "err": err}).Error("could not render page")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func exportFilename(q string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, q)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "report"
	}
	return "presence-" + slug + ".csv"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

