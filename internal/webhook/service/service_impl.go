package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/config"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	webhookdomain "github.com/smallbiznis/tixsync/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxResponseDrain = 64 << 10

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.PipelineMetrics `optional:"true"`
}

type Service struct {
	endpoint    string
	secret      string
	maxAttempts int
	baseDelay   time.Duration
	batchSize   int
	batchPause  time.Duration

	client  *http.Client
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.PipelineMetrics
	newID   func() string
}

func New(p Params) webhookdomain.Dispatcher {
	return NewService(p.Cfg.Webhook, p.Clock, p.Log.Named("webhook.service"), p.Metrics)
}

func NewService(cfg config.WebhookConfig, clk clock.Clock, log *zap.Logger, m *metrics.PipelineMetrics) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		endpoint:    cfg.URL,
		secret:      cfg.Secret,
		maxAttempts: max(cfg.MaxAttempts, 1),
		baseDelay:   cfg.BaseDelay,
		batchSize:   max(cfg.BatchSize, 1),
		batchPause:  cfg.BatchPause,
		client:      &http.Client{Timeout: timeout},
		clock:       clk,
		log:         log,
		metrics:     m,
		newID:       uuid.NewString,
	}
}

func (s *Service) Dispatch(ctx context.Context, report webhookdomain.ReportRef, items []webhookdomain.Item, mode string) []webhookdomain.DeliveryResult {
	queue := make([]webhookdomain.Item, 0, len(items))
	for _, item := range items {
		if item.Result.Matched && item.Result.CanonicalShow != nil {
			queue = append(queue, item)
		}
	}
	results := make([]webhookdomain.DeliveryResult, len(queue))
	if len(queue) == 0 {
		return results
	}

	switch mode {
	case webhookdomain.ModeParallel:
		s.dispatchBatches(ctx, report, queue, results)
	default:
		for i, item := range queue {
			results[i] = s.deliver(ctx, report, item)
		}
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.log.Info("webhook dispatch finished",
		zap.String("report_id", report.ID.String()),
		zap.String("mode", mode),
		zap.Int("deliveries", len(results)),
		zap.Int("failed", failed),
	)
	return results
}

// dispatchBatches sends fixed-size batches concurrently and pauses between batches.
func (s *Service) dispatchBatches(ctx context.Context, report webhookdomain.ReportRef, queue []webhookdomain.Item, results []webhookdomain.DeliveryResult) {
	for start := 0; start < len(queue); start += s.batchSize {
		end := min(start+s.batchSize, len(queue))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = s.deliver(ctx, report, queue[i])
				return nil
			})
		}
		_ = g.Wait()

		if end < len(queue) && s.batchPause > 0 {
			if err := s.clock.Sleep(ctx, s.batchPause); err != nil {
				for i := end; i < len(queue); i++ {
					results[i] = s.aborted(report, queue[i], err)
				}
				return
			}
		}
	}
}

func (s *Service) deliver(ctx context.Context, report webhookdomain.ReportRef, item webhookdomain.Item) webhookdomain.DeliveryResult {
	d := webhookdomain.NewDelivery(s.newID(), s.maxAttempts)

	if s.endpoint == "" {
		d.Abort(webhookdomain.ErrEndpointNotConfigured)
		return s.finish(report, item, d)
	}

	payload := webhookdomain.BuildPayload(d.ID, report, item, s.clock.Now())
	body, err := json.Marshal(payload)
	if err != nil {
		d.Abort(fmt.Errorf("encode payload: %w", err))
		return s.finish(report, item, d)
	}

	for !d.Done() {
		if d.State == webhookdomain.StateRetrying {
			wait := webhookdomain.Backoff(d.Attempts, s.baseDelay)
			if err := s.clock.Sleep(ctx, wait); err != nil {
				d.Abort(err)
				break
			}
		}
		s.metrics.IncDeliveryAttempt()
		d.Record(s.post(ctx, d.ID, body))
		if d.State == webhookdomain.StateRetrying && ctx.Err() != nil {
			d.Abort(ctx.Err())
			break
		}
		if d.State == webhookdomain.StateRetrying {
			s.log.Debug("webhook attempt failed, retrying",
				zap.String("delivery_id", d.ID),
				zap.Int("attempt", d.Attempts),
				zap.Error(d.LastErr),
			)
		}
	}
	return s.finish(report, item, d)
}

func (s *Service) post(ctx context.Context, deliveryID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tixsync-webhook/"+webhookdomain.PayloadVersion)
	req.Header.Set(headerDelivery, deliveryID)
	req.Header.Set(headerVersion, webhookdomain.PayloadVersion)
	if s.secret != "" {
		req.Header.Set(headerSignature, Sign(s.secret, s.clock.Now(), body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) aborted(report webhookdomain.ReportRef, item webhookdomain.Item, err error) webhookdomain.DeliveryResult {
	d := webhookdomain.NewDelivery(s.newID(), s.maxAttempts)
	d.Abort(err)
	return s.finish(report, item, d)
}

func (s *Service) finish(report webhookdomain.ReportRef, item webhookdomain.Item, d *webhookdomain.Delivery) webhookdomain.DeliveryResult {
	result := webhookdomain.DeliveryResult{
		IdentityHash: item.Show.Hash,
		Success:      d.State == webhookdomain.StateDelivered,
		DeliveryID:   d.ID,
		Attempts:     d.Attempts,
	}
	if item.EntryID != 0 {
		result.EntryID = item.EntryID.String()
	}

	if result.Success {
		s.metrics.IncDelivery(metrics.DeliveryOutcomeDelivered)
		return result
	}

	s.metrics.IncDelivery(metrics.DeliveryOutcomeFailed)
	if d.LastErr != nil {
		result.Error = d.LastErr.Error()
	}
	s.log.Warn("webhook delivery failed",
		zap.String("report_id", report.ID.String()),
		zap.String("delivery_id", d.ID),
		zap.String("identity_hash", item.Show.Hash),
		zap.Int("attempts", d.Attempts),
		zap.String("error", result.Error),
	)
	return result
}
