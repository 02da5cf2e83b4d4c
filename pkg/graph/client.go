package graph

import (
	"context"
	"errors"
	"time"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/ai"
)

const (
	maxTextRunes          = 15000
	maxPromptNodes        = 50
	maxExcerptDocuments   = 3
	maxExcerptDocRunes    = 1000
	maxExcerptTotalRunes  = 5000
	extractionTemperature = 0.1
	defaultMaxTokens      = 2000
	defaultMaxAttempts    = 2
	defaultTimeout        = 2 * time.Minute
)

// GraphClient extracts nodes and edges from announcement text with a
// language model. Every model call runs under its own deadline and is
// retried on failure. Extraction never fails hard: errors are logged and
// reported as an empty result.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	aiClient    ai.GraphAIClient
	model       string
	maxAttempts int
	timeout     time.Duration
	maxTokens   int
	now         func() time.Time
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// MaxAttempts is the total number of model calls per extraction, so 2 means
// one retry. Timeout bounds a single call.
type NewGraphClientParams struct {
	AIClient    ai.GraphAIClient
	Model       string
	MaxAttempts int
	Timeout     time.Duration
	MaxTokens   int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient:    aiClient,
//		MaxAttempts: 2,
//		Timeout:     2 * time.Minute,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.AIClient == nil {
		return nil, errors.New("graph client requires an ai client")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &GraphClient{
		aiClient:    params.AIClient,
		model:       params.Model,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		maxTokens:   maxTokens,
		now:         time.Now,
	}, nil
}

// complete runs one JSON mode completion with retries. It returns the raw
// response and the number of calls that were made.
func (c *GraphClient) complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	opts := []ai.GenerateOption{
		ai.WithModel(c.model),
		ai.WithSystemPrompts(systemPrompt),
		ai.WithTemperature(extractionTemperature),
		ai.WithMaxTokens(c.maxTokens),
		ai.WithJSONMode(),
	}

	attempts := 0
	res, err := util.RetryWithContext(ctx, c.maxAttempts, func(ctx context.Context) (string, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.aiClient.GenerateCompletion(callCtx, userPrompt, opts...)
	})
	return res, attempts, err
}
