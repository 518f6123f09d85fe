package service

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
	aidomain "github.com/smallbiznis/tixsync/internal/aimatch/domain"
	"github.com/smallbiznis/tixsync/internal/config"
	"github.com/smallbiznis/tixsync/internal/matching/similarity"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *metrics.PipelineMetrics `optional:"true"`
}

// New returns the OpenAI-backed suggester, or a no-op one when no API key is configured.
func New(p Params) aidomain.Suggester {
	log := p.Log.Named("aimatch.service")
	if !p.Cfg.AIEnabled() {
		log.Info("ai matching disabled, no api key configured")
		return aidomain.Noop{}
	}
	return NewClient(p.Cfg.AI, log, p.Metrics)
}

// Client asks an OpenAI-compatible chat completion endpoint to pick a candidate.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	log     *zap.Logger
	metrics *metrics.PipelineMetrics
}

func NewClient(cfg config.AIConfig, log *zap.Logger, m *metrics.PipelineMetrics) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = max(1, int(cfg.RatePerSecond))
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
		metrics: m,
	}
}

func (c *Client) SuggestMatch(ctx context.Context, show reportdomain.ParsedShow, candidates []showdomain.CanonicalShow) (*aidomain.Suggestion, bool) {
	window := WithinWindow(show, candidates, aidomain.WindowDays)
	if len(window) == 0 {
		c.metrics.IncAISuggestion(metrics.AIOutcomeSkipped)
		return nil, false
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.IncAISuggestion(metrics.AIOutcomeError)
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(show, window),
			},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.fail(show, err)
		return nil, false
	}
	if len(resp.Choices) == 0 {
		c.fail(show, errors.New("no choices returned"))
		return nil, false
	}

	chosen, ans, err := parseAnswer(resp.Choices[0].Message.Content, window)
	if err != nil {
		c.fail(show, err)
		return nil, false
	}
	if chosen == nil {
		c.metrics.IncAISuggestion(metrics.AIOutcomeRejected)
		c.log.Debug("ai found no match", zap.String("identity_hash", show.Hash), zap.String("reasoning", ans.Reasoning))
		return nil, false
	}

	return &aidomain.Suggestion{
		Candidate:  *chosen,
		Confidence: ans.Confidence,
		Reasoning:  ans.Reasoning,
	}, true
}

func (c *Client) fail(show reportdomain.ParsedShow, err error) {
	c.metrics.IncAISuggestion(metrics.AIOutcomeError)
	c.log.Warn("ai match request failed",
		zap.String("identity_hash", show.Hash),
		zap.String("clean_name", show.CleanName),
		zap.Error(err),
	)
}

// WithinWindow keeps candidates dated within days of the show.
func WithinWindow(show reportdomain.ParsedShow, candidates []showdomain.CanonicalShow, days int) []showdomain.CanonicalShow {
	out := make([]showdomain.CanonicalShow, 0, len(candidates))
	for _, c := range candidates {
		if apart, ok := similarity.DaysApart(show.Date, c.Date); ok && apart <= days {
			out = append(out, c)
		}
	}
	return out
}
