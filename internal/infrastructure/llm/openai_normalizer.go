// Package llm corrects school names and classifications through an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = `You clean up records of Brazilian schools.
For every input item return an object with the same "index" and the fields:
"name": the school name with fixed capitalization, accents and abbreviations (e.g. "E.E." -> "Escola Estadual"),
"school_type": "public" or "private" or "" when unknown,
"education_level": a comma separated list using early_childhood, elementary, high_school, technical, adult,
"email": the corrected email or "" when none.
Answer with a JSON array only.`

var errEmptyResponse = errors.New("empty completion")

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

type OpenAINormalizer struct {
	client openai.Client
	cfg    Config
}

var _ domain.TextNormalizer = (*OpenAINormalizer)(nil)

func NewOpenAINormalizer(cfg Config) *OpenAINormalizer {
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	// Failures degrade to pass-through, so the SDK's own retries only add latency.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAINormalizer{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

func (n *OpenAINormalizer) Normalize(ctx context.Context, hints []domain.NormalizationHint) ([]domain.NormalizationResult, error) {
	if len(hints) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(hints)
	if err != nil {
		return nil, fmt.Errorf("marshal hints: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	resp, err := n.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: n.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(payload)),
		},
		Temperature: openai.Float(n.cfg.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyResponse
	}

	return parseResults(resp.Choices[0].Message.Content)
}

// parseResults accepts the array wrapped in prose or a fenced code block.
func parseResults(content string) ([]domain.NormalizationResult, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in completion: %q", truncate(content, 120))
	}

	var results []domain.NormalizationResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &results); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
