package ollama

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/finkg/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

const defaultBaseURL = "http://127.0.0.1:11434"

// GraphOllamaClient implements ai.GraphAIClient against a locally hosted
// Ollama server.
type GraphOllamaClient struct {
	embeddingModel   string
	descriptionModel string
	extractionModel  string

	reqLock *semaphore.Weighted
	timeout time.Duration

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	EmbeddingModel   string
	DescriptionModel string
	ExtractionModel  string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient connects to the Ollama server at BaseURL (or the
// library default when empty).
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	u, err = url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: headers,
			rt:      http.DefaultTransport,
		},
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 4
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	extractionModel := params.ExtractionModel
	if extractionModel == "" {
		extractionModel = params.DescriptionModel
	}

	return &GraphOllamaClient{
		embeddingModel:   params.EmbeddingModel,
		descriptionModel: params.DescriptionModel,
		extractionModel:  extractionModel,

		reqLock: semaphore.NewWeighted(maxReq),
		timeout: timeout,

		Client: api.NewClient(u, httpClient),
	}, nil
}
