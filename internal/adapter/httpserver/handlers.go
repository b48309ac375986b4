package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/skillmatch/assessment-recommender/internal/config"
	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/internal/usecase"
	"github.com/skillmatch/assessment-recommender/pkg/textx"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Recommend  usecase.RecommendService
	Catalogue  usecase.CatalogueService
	Extractor  domain.TextExtractor
	Fetcher    domain.PageFetcher
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, rec usecase.RecommendService, cat usecase.CatalogueService, extractor domain.TextExtractor, fetcher domain.PageFetcher, dbCheck, redisCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Recommend: rec, Catalogue: cat, Extractor: extractor, Fetcher: fetcher, DBCheck: dbCheck, RedisCheck: redisCheck, TikaCheck: tikaCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// recommendRequest is the JSON request body for POST /v1/recommend. Exactly
// one of query_text and url must be set; the multipart variant carries the
// document instead.
type recommendRequest struct {
	QueryText   string             `json:"query_text" validate:"omitempty,max=10000"`
	URL         string             `json:"url" validate:"omitempty,url,max=2000"`
	Engine      string             `json:"engine" validate:"omitempty,oneof=hybrid gemini rag nlp clustering"`
	Constraints constraintsPayload `json:"constraints"`
}

type constraintsPayload struct {
	MaxDurationMinutes *int    `json:"max_duration_minutes"`
	RequireRemote      bool    `json:"require_remote"`
	RequiredLanguage   *string `json:"required_language"`
	Count              int     `json:"count" validate:"omitempty,min=1,max=10"`
}

func (p constraintsPayload) toDomain() domain.FilterConstraints {
	return domain.FilterConstraints{
		MaxDurationMinutes: p.MaxDurationMinutes,
		RequireRemote:      p.RequireRemote,
		RequiredLanguage:   p.RequiredLanguage,
		RequestedCount:     p.Count,
	}
}

// RecommendHandler serves POST /v1/recommend. It accepts either a JSON body
// with free text or a job posting URL, or a multipart form with an uploaded
// job description document.
func (s *Server) RecommendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a}}})
			return
		}
		var (
			q   domain.RecommendQuery
			err error
		)
		if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			q, err = s.queryFromMultipart(w, r)
		} else {
			q, err = s.queryFromJSON(w, r)
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.Recommend.Recommend(r.Context(), q)
		if err != nil {
			writeError(w, r, fmt.Errorf("recommend: %w", err), nil)
			return
		}
		if res.FromCache {
			w.Header().Set("X-Cache", "HIT")
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) queryFromJSON(w http.ResponseWriter, r *http.Request) (domain.RecommendQuery, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(req); err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, validationDetail(err))
	}
	hasText := strings.TrimSpace(req.QueryText) != ""
	hasURL := req.URL != ""
	if hasText == hasURL {
		return domain.RecommendQuery{}, fmt.Errorf("%w: exactly one of query_text and url is required", domain.ErrInvalidArgument)
	}
	engine, err := domain.ParseEngine(req.Engine)
	if err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: unknown engine %q", domain.ErrInvalidArgument, req.Engine)
	}
	text := textx.SanitizeText(req.QueryText)
	if hasURL {
		if s.Fetcher == nil {
			return domain.RecommendQuery{}, fmt.Errorf("%w: url input not supported", domain.ErrInvalidArgument)
		}
		text, err = s.Fetcher.FetchText(r.Context(), req.URL)
		if err != nil {
			return domain.RecommendQuery{}, fmt.Errorf("fetch url: %w", err)
		}
	}
	return domain.RecommendQuery{Text: text, Engine: engine, Constraints: req.Constraints.toDomain()}, nil
}

func (s *Server) queryFromMultipart(w http.ResponseWriter, r *http.Request) (domain.RecommendQuery, error) {
	maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			return domain.RecommendQuery{}, fmt.Errorf("%w: payload exceeds %d MB", domain.ErrInvalidArgument, s.Cfg.MaxUploadMB)
		}
		return domain.RecommendQuery{}, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: file field required", domain.ErrInvalidArgument)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: file read: %v", domain.ErrInvalidArgument, err)
	}
	if !allowedExt(header.Filename) {
		return domain.RecommendQuery{}, fmt.Errorf("%w: unsupported file extension %q", domain.ErrInvalidArgument, filepath.Ext(header.Filename))
	}
	m := mimetype.Detect(data)
	if !allowedMIMEFor(m.String(), header.Filename) {
		return domain.RecommendQuery{}, fmt.Errorf("%w: unsupported media type %q", domain.ErrInvalidArgument, m.String())
	}
	text, err := s.extractUploadedText(r.Context(), header, data)
	if err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: extract: %v", domain.ErrInvalidArgument, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.RecommendQuery{}, fmt.Errorf("%w: document contains no text", domain.ErrInvalidArgument)
	}

	engine, err := domain.ParseEngine(r.FormValue("engine"))
	if err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: unknown engine %q", domain.ErrInvalidArgument, r.FormValue("engine"))
	}
	constraints, err := constraintsFromForm(r)
	if err != nil {
		return domain.RecommendQuery{}, err
	}
	return domain.RecommendQuery{Text: text, Engine: engine, Constraints: constraints}, nil
}

// extractUploadedText extracts text from the uploaded document.
// PDF and DOCX stream through Apache Tika via a temp file, plain text is
// sanitized directly.
func (s *Server) extractUploadedText(ctx context.Context, h *multipart.FileHeader, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(h.Filename))
	if ext == ".pdf" || ext == ".docx" {
		if s.Extractor == nil {
			return "", fmt.Errorf("%s requires extractor", strings.TrimPrefix(ext, "."))
		}
		tmp, err := os.CreateTemp("", "jd-*")
		if err != nil {
			return "", err
		}
		defer func() { _ = os.Remove(tmp.Name()); _ = tmp.Close() }()
		if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
			return "", err
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		return s.Extractor.ExtractPath(ctx, h.Filename, tmp.Name())
	}
	return textx.SanitizeText(string(data)), nil
}

func constraintsFromForm(r *http.Request) (domain.FilterConstraints, error) {
	var c domain.FilterConstraints
	if v := r.FormValue("max_duration_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%w: max_duration_minutes must be an integer", domain.ErrInvalidArgument)
		}
		c.MaxDurationMinutes = &n
	}
	if v := r.FormValue("require_remote"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, fmt.Errorf("%w: require_remote must be a boolean", domain.ErrInvalidArgument)
		}
		c.RequireRemote = b
	}
	if v, ok := r.Form["required_language"]; ok && len(v) > 0 {
		lang := v[0]
		c.RequiredLanguage = &lang
	}
	if v := r.FormValue("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%w: count must be an integer", domain.ErrInvalidArgument)
		}
		c.RequestedCount = n
	}
	return c, nil
}

// allowedExt enforces an allowlist for uploads: .txt, .pdf, .docx
func allowedExt(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".txt") || strings.HasSuffix(n, ".pdf") || strings.HasSuffix(n, ".docx")
}

func allowedMIMEFor(m string, filename string) bool {
	m = strings.ToLower(m)
	if strings.HasSuffix(strings.ToLower(filename), ".txt") && strings.HasPrefix(m, "text/") {
		return true
	}
	if strings.HasPrefix(m, "text/plain") { // allow parameters such as charset
		return true
	}
	return m == "application/pdf" || m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func validationDetail(err error) string {
	if ve, ok := err.(validator.ValidationErrors); ok {
		parts := make([]string, 0, len(ve))
		for _, fe := range ve {
			parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
		}
		return strings.Join(parts, ", ")
	}
	return "validation failed"
}

// CatalogueListHandler serves GET /v1/assessments with offset/limit paging.
func (s *Server) CatalogueListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := 0, 0
		if v := r.URL.Query().Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, r, fmt.Errorf("%w: offset must be a non-negative integer", domain.ErrInvalidArgument), nil)
				return
			}
			offset = n
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidArgument), nil)
				return
			}
			limit = n
		}
		items, err := s.Catalogue.List(r.Context(), offset, limit)
		if err != nil {
			writeError(w, r, fmt.Errorf("catalogue list: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "offset": offset})
	}
}

// CatalogueGetHandler serves GET /v1/assessments/{id}.
func (s *Server) CatalogueGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		a, err := s.Catalogue.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// MetadataHandler serves GET /v1/metadata with the catalogue's filterable
// dimensions.
func (s *Server) MetadataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		md, err := s.Catalogue.Metadata(r.Context())
		if err != nil {
			writeError(w, r, fmt.Errorf("catalogue metadata: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, md)
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes DB, Redis and Tika.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		probe := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		probe("db", s.DBCheck)
		probe("redis", s.RedisCheck)
		probe("tika", s.TikaCheck)
		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
