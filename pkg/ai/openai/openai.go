package openai

import (
	"sync"
	"time"

	"github.com/finkg/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient talks to an OpenAI compatible API (OpenAI, DeepSeek,
// vLLM, ...). It keeps separate clients for chat completions and
// embeddings because they are often served by different providers.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	embeddingModel   string
	descriptionModel string
	extractionModel  string

	chatURL string

	reqLock *semaphore.Weighted
	timeout time.Duration

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for
// creating a new GraphOpenAIClient.
//
// DescriptionModel is used for free text answers, ExtractionModel for
// JSON extraction calls. Requests beyond MaxConcurrentRequests wait.
type NewGraphOpenAIClientParams struct {
	EmbeddingModel   string
	DescriptionModel string
	ExtractionModel  string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

// NewGraphOpenAIClient creates and returns a new client configured with the
// provided parameters.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		EmbeddingModel:   "text-embedding-3-small",
//		DescriptionModel: "deepseek-chat",
//		ExtractionModel:  "deepseek-chat",
//		ChatURL:          "https://api.deepseek.com/v1",
//		ChatKey:          os.Getenv("AI_CHAT_KEY"),
//		EmbeddingKey:     os.Getenv("AI_EMBED_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey)

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 15
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	extractionModel := params.ExtractionModel
	if extractionModel == "" {
		extractionModel = params.DescriptionModel
	}

	return &GraphOpenAIClient{
		embeddingModel:   params.EmbeddingModel,
		descriptionModel: params.DescriptionModel,
		extractionModel:  extractionModel,

		chatURL: params.ChatURL,

		reqLock: semaphore.NewWeighted(maxReq),
		timeout: timeout,

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
