package ollama

import (
	"context"
	"encoding/json"

	"github.com/finkg/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultContextTokens = 4096
	contextReserveTokens = 200
)

// GenerateCompletion sends a single-turn prompt to the extraction model and
// returns the assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}, opts...)

	msgs := systemMessages(options)
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	return c.chat(ctx, msgs, options)
}

// GenerateChat sends a multi-turn conversation to the description model.
func (c *GraphOllamaClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.descriptionModel,
		Temperature: 0.7,
	}, opts...)

	msgs := systemMessages(options)
	for _, m := range messages {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Message})
	}

	return c.chat(ctx, msgs, options)
}

func systemMessages(options ai.GenerateOptions) []api.Message {
	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	return msgs
}

func (c *GraphOllamaClient) chat(
	ctx context.Context,
	msgs []api.Message,
	options ai.GenerateOptions,
) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.JSONMode {
		req.Format = json.RawMessage(`"json"`)
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}
	if options.Thinking != "" {
		req.Think = &api.ThinkValue{Value: options.Thinking}
	}

	tokens, err := countTokens(msgs)
	if err != nil {
		return "", err
	}
	tokens += contextReserveTokens + options.MaxTokens
	if tokens > defaultContextTokens {
		req.Options["num_ctx"] = tokens
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(rCtx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final.Message.Content, nil
}

// countTokens estimates the prompt size so num_ctx can be raised for long
// announcements instead of letting Ollama silently truncate them.
func countTokens(msgs []api.Message) (int, error) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range msgs {
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}
