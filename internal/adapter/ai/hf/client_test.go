package hf_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmatch/assessment-recommender/internal/adapter/ai/hf"
	"github.com/skillmatch/assessment-recommender/internal/config"
	"github.com/skillmatch/assessment-recommender/internal/domain"
)

func testCfg(baseURL string) config.Config {
	return config.Config{
		AppEnv:                   "test",
		HFAPIKey:                 "hf-test",
		HFBaseURL:                baseURL,
		EmbeddingsModel:          "sentence-transformers/all-MiniLM-L6-v2",
		EmbeddingDim:             3,
		AIBackoffMaxElapsedTime:  500 * time.Millisecond,
		AIBackoffInitialInterval: 5 * time.Millisecond,
		AIBackoffMaxInterval:     20 * time.Millisecond,
		AIBackoffMultiplier:      1.5,
	}
}

func TestClient_Embed(t *testing.T) {
	t.Parallel()

	t.Run("prefixes queries and returns vectors", func(t *testing.T) {
		t.Parallel()
		var gotInputs []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer hf-test", r.Header.Get("Authorization"))
			var req struct {
				Inputs []string `json:"inputs"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gotInputs = req.Inputs
			_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}})
		}))
		defer srv.Close()

		c := hf.New(testCfg(srv.URL))
		vecs, err := c.Embed(context.Background(), []string{"java developer", "sql analyst"}, true)
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.InDelta(t, 0.5, vecs[1][1], 1e-6)
		require.Len(t, gotInputs, 2)
		assert.Equal(t, "query: java developer", gotInputs[0])
		assert.Equal(t, "query: sql analyst", gotInputs[1])
	})

	t.Run("passage prefix for catalogue texts", func(t *testing.T) {
		t.Parallel()
		var gotInputs []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Inputs []string `json:"inputs"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			gotInputs = req.Inputs
			_ = json.NewEncoder(w).Encode([][]float32{{1, 0, 0}})
		}))
		defer srv.Close()

		c := hf.New(testCfg(srv.URL))
		_, err := c.Embed(context.Background(), []string{"numerical reasoning test"}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"passage: numerical reasoning test"}, gotInputs)
	})

	t.Run("retries 503 then succeeds", func(t *testing.T) {
		t.Parallel()
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode([][]float32{{0, 1, 0}})
		}))
		defer srv.Close()

		c := hf.New(testCfg(srv.URL))
		vecs, err := c.Embed(context.Background(), []string{"text"}, true)
		require.NoError(t, err)
		require.Len(t, vecs, 1)
		assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	})

	t.Run("4xx is permanent", func(t *testing.T) {
		t.Parallel()
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		c := hf.New(testCfg(srv.URL))
		_, err := c.Embed(context.Background(), []string{"text"}, true)
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Parallel()
		cfg := testCfg("http://unused")
		cfg.HFAPIKey = ""
		c := hf.New(cfg)
		_, err := c.Embed(context.Background(), []string{"text"}, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}})
		}))
		defer srv.Close()

		c := hf.New(testCfg(srv.URL))
		_, err := c.Embed(context.Background(), []string{"text"}, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dims")
	})

	t.Run("empty input short-circuits", func(t *testing.T) {
		t.Parallel()
		c := hf.New(testCfg("http://unused"))
		vecs, err := c.Embed(context.Background(), nil, true)
		require.NoError(t, err)
		assert.Nil(t, vecs)
	})
}
