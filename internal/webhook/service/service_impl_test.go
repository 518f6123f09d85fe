package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/config"
	matchingdomain "github.com/smallbiznis/tixsync/internal/matching/domain"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	webhookdomain "github.com/smallbiznis/tixsync/internal/webhook/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testReport = webhookdomain.ReportRef{ID: snowflake.ID(900), OrgID: snowflake.ID(42)}

func matchedItem(n int) webhookdomain.Item {
	return webhookdomain.Item{
		EntryID: snowflake.ID(1000 + n),
		Show: reportdomain.ParsedShow{
			CleanName: fmt.Sprintf("Show %d", n),
			Date:      "2025-03-12",
			Hash:      fmt.Sprintf("hash-%d", n),
		},
		Result: matchingdomain.MatchResult{
			Matched:       true,
			Method:        matchingdomain.MethodExact,
			Confidence:    1,
			IsNewMatch:    true,
			CanonicalShow: &showdomain.CanonicalShow{ID: fmt.Sprintf("show-%d", n), Name: fmt.Sprintf("Show %d", n)},
		},
	}
}

func newTestDispatcher(url string, clk *clock.FakeClock, tweak func(*config.WebhookConfig)) *Service {
	cfg := config.WebhookConfig{
		URL:         url,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Timeout:     2 * time.Second,
		BatchSize:   2,
		BatchPause:  500 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	return NewService(cfg, clk, zap.NewNop(), nil)
}

func TestDispatchRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clk := clock.NewFakeClock(time.Date(2025, 3, 13, 2, 0, 0, 0, time.UTC))
	svc := newTestDispatcher(srv.URL, clk, nil)

	results := svc.Dispatch(context.Background(), testReport, []webhookdomain.Item{matchedItem(1)}, webhookdomain.ModeSequential)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "1001", results[0].EntryID)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Sleeps())
}

func TestDispatchRecordsExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	clk := clock.NewFakeClock(time.Now())
	svc := newTestDispatcher(srv.URL, clk, nil)

	items := []webhookdomain.Item{matchedItem(1), matchedItem(2)}
	results := svc.Dispatch(context.Background(), testReport, items, webhookdomain.ModeSequential)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, 3, r.Attempts)
		assert.Contains(t, r.Error, "unexpected status 500")
		assert.NotEmpty(t, r.DeliveryID)
	}
	assert.Equal(t, int32(6), calls.Load())
}

func TestDispatchWithoutEndpoint(t *testing.T) {
	svc := newTestDispatcher("", clock.NewFakeClock(time.Now()), nil)

	results := svc.Dispatch(context.Background(), testReport, []webhookdomain.Item{matchedItem(1)}, webhookdomain.ModeSequential)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Zero(t, results[0].Attempts)
	assert.Equal(t, webhookdomain.ErrEndpointNotConfigured.Error(), results[0].Error)
}

func TestDispatchSkipsUnmatched(t *testing.T) {
	svc := newTestDispatcher("http://127.0.0.1:1", clock.NewFakeClock(time.Now()), nil)

	unmatched := matchedItem(1)
	unmatched.Result = matchingdomain.Unmatched()

	results := svc.Dispatch(context.Background(), testReport, []webhookdomain.Item{unmatched}, webhookdomain.ModeParallel)
	assert.Empty(t, results)
}

func TestDispatchSignsAndSendsPayload(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookdomain.Payload
		headers  []http.Header
		bodies   [][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p webhookdomain.Payload
		_ = json.Unmarshal(body, &p)
		mu.Lock()
		received = append(received, p)
		headers = append(headers, r.Header.Clone())
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	now := time.Date(2025, 3, 13, 2, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc := newTestDispatcher(srv.URL, clk, func(cfg *config.WebhookConfig) { cfg.Secret = "s3cret" })
	svc.newID = func() string { return "delivery-1" }

	results := svc.Dispatch(context.Background(), testReport, []webhookdomain.Item{matchedItem(1)}, webhookdomain.ModeSequential)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "delivery-1", results[0].DeliveryID)

	require.Len(t, received, 1)
	assert.Equal(t, "delivery-1", received[0].WebhookID)
	assert.Equal(t, "900", received[0].ReportID)
	assert.Equal(t, "show-1", received[0].Notion.ShowID)
	assert.Equal(t, "exact", received[0].Match.Method)

	assert.Equal(t, "delivery-1", headers[0].Get("X-Tixsync-Delivery"))
	assert.Equal(t, "1", headers[0].Get("X-Tixsync-Version"))
	assert.Equal(t, Sign("s3cret", now, bodies[0]), headers[0].Get("X-Tixsync-Signature"))
}

func TestDispatchParallelBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var p webhookdomain.Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		if p.Notion.ShowID == "show-3" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clk := clock.NewFakeClock(time.Now())
	svc := newTestDispatcher(srv.URL, clk, func(cfg *config.WebhookConfig) { cfg.MaxAttempts = 1 })

	items := []webhookdomain.Item{matchedItem(1), matchedItem(2), matchedItem(3), matchedItem(4), matchedItem(5)}
	results := svc.Dispatch(context.Background(), testReport, items, webhookdomain.ModeParallel)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("hash-%d", i+1), r.IdentityHash)
		assert.Equal(t, i != 2, r.Success, r.IdentityHash)
	}
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, clk.Sleeps())
}

func TestDispatchStopsRetryingWhenCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestDispatcher(srv.URL, clock.NewFakeClock(time.Now()), nil)
	results := svc.Dispatch(ctx, testReport, []webhookdomain.Item{matchedItem(1)}, webhookdomain.ModeSequential)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, 1, results[0].Attempts)
}

func TestDispatchRetriesSlowEndpoint(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := newTestDispatcher(srv.URL, clock.NewFakeClock(time.Now()), func(cfg *config.WebhookConfig) {
		cfg.Timeout = 100 * time.Millisecond
	})
	results := svc.Dispatch(context.Background(), testReport, []webhookdomain.Item{matchedItem(1)}, webhookdomain.ModeSequential)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Error)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, int32(2), calls.Load())
}
