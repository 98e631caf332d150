package backtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackbox/internal/types"
)

func newTestHTTPServer(t *testing.T) (*HTTPServer, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	srv, err := NewHTTPServer(HTTPConfig{Svc: svc, Results: svc.results})
	require.NoError(t, err)
	return srv, svc
}

func doRequest(t *testing.T, srv *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestHTTPServer_RequiresDependencies(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := NewHTTPServer(HTTPConfig{Results: svc.results})
	assert.Error(t, err)

	_, err = NewHTTPServer(HTTPConfig{Svc: svc})
	assert.Error(t, err)
}

func TestHTTPServer_Universe(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/backtest/universe", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Symbols []string `json:"symbols"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, resp.Symbols)
}

func TestHTTPServer_Manifest(t *testing.T) {
	srv, svc := newTestHTTPServer(t)
	ctx := context.Background()
	require.NoError(t, svc.EnsureBars(ctx, []string{"BTCUSDT"}, day("2024-03-01"), day("2024-03-10")))

	// 路径里的小写 symbol 也能命中
	w := doRequest(t, srv, http.MethodGet, "/api/backtest/data/btcusdt", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Manifest struct {
			Symbol  string `json:"symbol"`
			MinDate string `json:"min_date"`
			MaxDate string `json:"max_date"`
		} `json:"manifest"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "BTCUSDT", resp.Manifest.Symbol)
	assert.Equal(t, "2024-03-01", resp.Manifest.MinDate)
	assert.Equal(t, "2024-03-10", resp.Manifest.MaxDate)
}

func TestHTTPServer_RunLifecycle(t *testing.T) {
	srv, svc := newTestHTTPServer(t)
	ctx := context.Background()

	w := doRequest(t, srv, http.MethodPost, "/api/backtest/runs", `{"include_equity_curve":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started struct {
		Run Run `json:"run"`
	}
	decodeBody(t, w, &started)
	require.NotEmpty(t, started.Run.ID)
	assert.Equal(t, RunStatusPending, started.Run.Status)

	deadline := time.After(30 * time.Second)
	for {
		got, err := svc.results.GetRun(ctx, started.Run.ID)
		require.NoError(t, err)
		if got.Status == RunStatusDone {
			break
		}
		require.NotEqual(t, RunStatusFailed, got.Status, "run failed: %s", got.Message)
		select {
		case <-deadline:
			t.Fatalf("run %s did not finish, status %s", started.Run.ID, got.Status)
		case <-time.After(50 * time.Millisecond):
		}
	}

	t.Run("Detail", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/backtest/runs/"+started.Run.ID, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Run Run `json:"run"`
		}
		decodeBody(t, w, &resp)
		assert.Equal(t, RunStatusDone, resp.Run.Status)
		assert.Equal(t, 10, resp.Run.Stats.Days)
	})

	t.Run("List", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/backtest/runs?limit=5", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Runs []Run `json:"runs"`
		}
		decodeBody(t, w, &resp)
		require.Len(t, resp.Runs, 1)
		assert.Equal(t, started.Run.ID, resp.Runs[0].ID)
	})

	t.Run("Logs", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/backtest/runs/"+started.Run.ID+"/logs", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Logs []DailyLogRecord `json:"logs"`
		}
		decodeBody(t, w, &resp)
		assert.Len(t, resp.Logs, 10)
	})

	t.Run("Equity", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/backtest/runs/"+started.Run.ID+"/equity", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Equity []types.EquityPoint `json:"equity"`
		}
		decodeBody(t, w, &resp)
		assert.Len(t, resp.Equity, 10)
	})

	t.Run("Trades", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/backtest/runs/"+started.Run.ID+"/trades", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Trades []TradeRecord `json:"trades"`
		}
		decodeBody(t, w, &resp)
		for _, tr := range resp.Trades {
			assert.Equal(t, started.Run.ID, tr.RunID)
		}
	})
}

func TestHTTPServer_BadRequests(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	t.Run("MalformedBody", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodPost, "/api/backtest/runs", `{"symbols":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("BadStartDate", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodPost, "/api/backtest/runs", `{"start_date":"03/05/2024"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownRun", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/backtest/runs/no-such-run", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
