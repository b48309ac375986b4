package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmatch/assessment-recommender/internal/adapter/httpserver"
	"github.com/skillmatch/assessment-recommender/internal/config"
	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/internal/recommend"
	"github.com/skillmatch/assessment-recommender/internal/usecase"
)

type stubCatalogue struct{ items []domain.Assessment }

func (s stubCatalogue) GetAll(_ domain.Context) ([]domain.Assessment, error) { return s.items, nil }
func (s stubCatalogue) GetByID(_ domain.Context, id string) (domain.Assessment, error) {
	for _, a := range s.items {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Assessment{}, domain.ErrNotFound
}
func (s stubCatalogue) List(_ domain.Context, _, _ int) ([]domain.Assessment, error) {
	return s.items, nil
}

type stubScorer struct {
	out []domain.ScoredCandidate
	err error
}

func (s stubScorer) Score(_ domain.Context, _ string) ([]domain.ScoredCandidate, error) {
	return s.out, s.err
}

type stubFetcher struct {
	text string
	err  error
	url  string
}

func (s *stubFetcher) FetchText(_ domain.Context, url string) (string, error) {
	s.url = url
	return s.text, s.err
}

type stubExtractor struct{ text string }

func (s stubExtractor) ExtractPath(_ context.Context, _, _ string) (string, error) {
	return s.text, nil
}

func catalogueFixture() []domain.Assessment {
	return []domain.Assessment{
		{ID: "a1", Name: "Java Coding", DurationMinutes: 40, RemoteCapable: true, Languages: []string{"en"}},
		{ID: "a2", Name: "Numerical Reasoning", DurationMinutes: 25, RemoteCapable: true, Languages: []string{"en"}},
	}
}

// newTestServer wires a server whose only active scoring source is the nlp
// stub; that keeps handler tests independent from the other sources.
func newTestServer(t *testing.T, scorer domain.TextScorer, items []domain.Assessment) *httpserver.Server {
	t.Helper()
	cat := stubCatalogue{items: items}
	rec := usecase.RecommendService{
		Catalogue:     cat,
		Scorers:       map[domain.Source]domain.TextScorer{domain.SourceNLP: scorer},
		HybridWeights: recommend.Weights{domain.SourceNLP: 1},
		SourceTimeout: time.Second,
		VectorTopK:    20,
		CacheTTL:      time.Hour,
	}
	cfg := config.Config{AppEnv: "test", MaxUploadMB: 1}
	return httpserver.NewServer(cfg, rec, usecase.NewCatalogueService(cat), nil, nil, nil, nil, nil)
}

func mountRoutes(s *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/recommend", s.RecommendHandler())
	r.Get("/v1/assessments", s.CatalogueListHandler())
	r.Get("/v1/assessments/{id}", s.CatalogueGetHandler())
	r.Get("/v1/metadata", s.MetadataHandler())
	r.Get("/healthz", s.HealthzHandler())
	r.Get("/readyz", s.ReadyzHandler())
	return r
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRecommendHandler_JSON(t *testing.T) {
	t.Parallel()

	t.Run("free text happy path", func(t *testing.T) {
		t.Parallel()
		scorer := stubScorer{out: []domain.ScoredCandidate{
			{ItemID: "a1", RawScore: 0.9, Source: domain.SourceNLP},
			{ItemID: "a2", RawScore: 0.2, Source: domain.SourceNLP},
		}}
		h := mountRoutes(newTestServer(t, scorer, catalogueFixture()))

		rr := postJSON(t, h, `{"query_text":"senior java developer","engine":"nlp"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var res struct {
			Engine string `json:"engine"`
			Items  []struct {
				Rank int     `json:"rank"`
				ID   string  `json:"id"`
				Name string  `json:"name"`
				Score float64 `json:"score"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, "nlp", res.Engine)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "a1", res.Items[0].ID)
		assert.Equal(t, 1, res.Items[0].Rank)
	})

	t.Run("empty engine defaults to hybrid", func(t *testing.T) {
		t.Parallel()
		scorer := stubScorer{out: []domain.ScoredCandidate{{ItemID: "a1", RawScore: 1, Source: domain.SourceNLP}}}
		h := mountRoutes(newTestServer(t, scorer, catalogueFixture()))

		rr := postJSON(t, h, `{"query_text":"dev"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"engine":"hybrid"`)
	})

	t.Run("both text and url rejected", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

		rr := postJSON(t, h, `{"query_text":"dev","url":"https://example.com/jd"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "INVALID_ARGUMENT")
	})

	t.Run("neither text nor url rejected", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

		rr := postJSON(t, h, `{"engine":"nlp"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown engine rejected", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

		rr := postJSON(t, h, `{"query_text":"dev","engine":"oracle"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("negative duration constraint rejected", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

		rr := postJSON(t, h, `{"query_text":"dev","engine":"nlp","constraints":{"max_duration_minutes":-5}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("all sources failed maps to 503", func(t *testing.T) {
		t.Parallel()
		scorer := stubScorer{err: errors.New("nlp down")}
		h := mountRoutes(newTestServer(t, scorer, catalogueFixture()))

		rr := postJSON(t, h, `{"query_text":"dev","engine":"nlp"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "NO_SOURCES_AVAILABLE")
	})

	t.Run("empty catalogue maps to 503", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, nil))

		rr := postJSON(t, h, `{"query_text":"dev","engine":"nlp"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "EMPTY_CATALOGUE")
	})

	t.Run("invalid json rejected", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

		rr := postJSON(t, h, `{`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("url input uses fetcher", func(t *testing.T) {
		t.Parallel()
		scorer := stubScorer{out: []domain.ScoredCandidate{{ItemID: "a1", RawScore: 1, Source: domain.SourceNLP}}}
		srv := newTestServer(t, scorer, catalogueFixture())
		f := &stubFetcher{text: "senior java developer posting"}
		srv.Fetcher = f
		h := mountRoutes(srv)

		rr := postJSON(t, h, `{"url":"https://jobs.example.com/123","engine":"nlp"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://jobs.example.com/123", f.url)
	})
}

func TestRecommendHandler_Multipart(t *testing.T) {
	t.Parallel()

	buildForm := func(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		for k, v := range fields {
			require.NoError(t, mw.WriteField(k, v))
		}
		require.NoError(t, mw.Close())
		return &buf, mw.FormDataContentType()
	}

	t.Run("plain text upload", func(t *testing.T) {
		t.Parallel()
		scorer := stubScorer{out: []domain.ScoredCandidate{{ItemID: "a2", RawScore: 1, Source: domain.SourceNLP}}}
		h := mountRoutes(newTestServer(t, scorer, catalogueFixture()))

		body, ct := buildForm(t, "jd.txt", "we need a data analyst", map[string]string{"engine": "nlp", "count": "3"})
		req := httptest.NewRequest(http.MethodPost, "/v1/recommend", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"id":"a2"`)
	})

	t.Run("unsupported extension rejected", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

		body, ct := buildForm(t, "jd.exe", "MZ binary", nil)
		req := httptest.NewRequest(http.MethodPost, "/v1/recommend", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing file field rejected", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("engine", "nlp"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/v1/recommend", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "file field required")
	})

	t.Run("pdf routed through extractor", func(t *testing.T) {
		t.Parallel()
		scorer := stubScorer{out: []domain.ScoredCandidate{{ItemID: "a1", RawScore: 1, Source: domain.SourceNLP}}}
		srv := newTestServer(t, scorer, catalogueFixture())
		srv.Extractor = stubExtractor{text: "senior java developer"}
		h := mountRoutes(srv)

		body, ct := buildForm(t, "jd.pdf", "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF", map[string]string{"engine": "nlp"})
		req := httptest.NewRequest(http.MethodPost, "/v1/recommend", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"id":"a1"`)
	})
}

func TestCatalogueHandlers(t *testing.T) {
	t.Parallel()
	h := mountRoutes(newTestServer(t, stubScorer{}, catalogueFixture()))

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/assessments", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Java Coding")
	})

	t.Run("list bad offset", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/assessments?offset=x", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("get found", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/assessments/a2", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Numerical Reasoning")
	})

	t.Run("get missing is 404", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/assessments/nope", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "NOT_FOUND")
	})

	t.Run("metadata", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metadata", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"count":2`)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("healthz", func(t *testing.T) {
		t.Parallel()
		h := mountRoutes(newTestServer(t, stubScorer{}, nil))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("readyz all ok", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, stubScorer{}, nil)
		srv.DBCheck = func(_ context.Context) error { return nil }
		srv.RedisCheck = func(_ context.Context) error { return nil }
		h := mountRoutes(srv)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("readyz failing dependency", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, stubScorer{}, nil)
		srv.DBCheck = func(_ context.Context) error { return errors.New("db unreachable") }
		h := mountRoutes(srv)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "db unreachable")
	})
}
