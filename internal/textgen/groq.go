package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultGroqModel is the chat model used when none is configured
const DefaultGroqModel = "llama-3.1-8b-instant"

const systemPrompt = `You are the Almaty City Dispatcher AI.
You provide concise, actionable urban condition updates.
Keep responses under 3 sentences. Be direct and practical.
Focus on safety recommendations and traffic advice.`

var languageNames = map[string]string{
	"ru": "Russian",
	"en": "English",
	"kk": "Kazakh",
}

// GroqConfig for the Groq chat-completions client
type GroqConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerMinute int
}

// Groq generates text through the Groq OpenAI-compatible API
type Groq struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// errPermanent marks responses that retrying cannot fix
var errPermanent = errors.New("permanent")

// NewGroq creates a client. It fails without an API key.
func NewGroq(cfg GroqConfig, logger *zap.Logger) (*Groq, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("textgen: groq API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGroqModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	logger.Info("Groq client initialized",
		zap.String("model", cfg.Model),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute))

	return &Groq{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

// Generate asks the chat model for a short answer to the request query
func (g *Groq) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("textgen: failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying Groq request",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
			select {
			case <-time.After(g.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, err := g.complete(ctx, body)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if errors.Is(err, errPermanent) {
			break
		}
	}

	return "", fmt.Errorf("textgen: groq failed after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *Groq) complete(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", errPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("groq API error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("groq API returned status %d: %s", resp.StatusCode, string(data))
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return "", fmt.Errorf("%w: %v", errPermanent, err)
		}
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty response from groq")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func userPrompt(req Request) string {
	temp := "unknown"
	if req.Temperature != nil {
		temp = fmt.Sprintf("%.1f°C", *req.Temperature)
	}
	lang, ok := languageNames[string(req.Language)]
	if !ok {
		lang = languageNames["ru"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current conditions in Almaty for %s:\n", req.TargetDate)
	fmt.Fprintf(&b, "- Season: %s\n", req.Season)
	fmt.Fprintf(&b, "- Temperature: %s\n", temp)
	fmt.Fprintf(&b, "- Predicted AQI: %d\n", req.AQI)
	fmt.Fprintf(&b, "- Traffic Index: %.1f%%\n", req.Congestion)
	if req.Forecast != "" {
		fmt.Fprintf(&b, "\n%s\n", req.Forecast)
	}
	fmt.Fprintf(&b, "\nUser query: %s\n\n", req.Query)
	fmt.Fprintf(&b, "Provide a brief, actionable response in %s.", lang)
	return b.String()
}
