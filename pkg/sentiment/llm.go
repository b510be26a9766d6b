package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
)

const batchPrompt = `You are a sentiment analyst. Rate the polarity of each numbered text about a person or business.

Use a number between -1 (very negative) and 1 (very positive); 0 means neutral or not an opinion.

Texts:
%s

Respond with a JSON array of exactly %d numbers, in the same order as the texts.
Example for three texts: [0.8, -0.25, 0]

Return ONLY the JSON array, no other text.`

// maxTextLen bounds each text sent to the model.
const maxTextLen = 400

// LLMConfig configures the LLM scorer.
type LLMConfig struct {
	Provider string // "openai" or "anthropic"
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// LLM scores texts with one batch call to a chat model. Any failure falls
// back to the wrapped scorer.
type LLM struct {
	client   *http.Client
	provider string
	model    string
	apiKey   string
	baseURL  string
	fallback Scorer
	logger   *logrus.Entry
}

// NewLLM creates an LLM scorer. fallback defaults to the lexicon scorer.
func NewLLM(cfg LLMConfig, fallback Scorer, logger *logrus.Entry) *LLM {
	if cfg.Model == "" {
		switch cfg.Provider {
		case "anthropic":
			cfg.Model = "claude-sonnet-4-20250514"
		default:
			cfg.Model = "gpt-4o-mini"
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if fallback == nil {
		fallback = NewLexicon()
	}
	return &LLM{
		client:   &http.Client{Timeout: cfg.Timeout},
		provider: cfg.Provider,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		fallback: fallback,
		logger:   logging.OrDiscard(logger),
	}
}

// Score implements Scorer.
func (e *LLM) Score(ctx context.Context, texts []string) []float64 {
	if len(texts) == 0 {
		return nil
	}

	scores, err := e.scoreBatch(ctx, texts)
	if err != nil {
		e.logger.WithField("err", err).Warn("llm sentiment failed, using fallback scorer")
		return e.fallback.Score(ctx, texts)
	}
	return scores
}

func (e *LLM) scoreBatch(ctx context.Context, texts []string) ([]float64, error) {
	lines := make([]string, len(texts))
	for i, t := range texts {
		lines[i] = fmt.Sprintf("%d. %s", i+1, strings.Join(strings.Fields(truncate(t, maxTextLen)), " "))
	}
	prompt := fmt.Sprintf(batchPrompt, strings.Join(lines, "\n"), len(texts))

	var (
		raw string
		err error
	)
	switch e.provider {
	case "anthropic":
		raw, err = e.callAnthropic(ctx, prompt)
	default:
		raw, err = e.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	scores, err := parseScores(raw)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(texts) {
		return nil, fmt.Errorf("llm returned %d scores for %d texts", len(scores), len(texts))
	}
	for i := range scores {
		scores[i] = Clamp(scores[i])
	}
	return scores, nil
}

// parseScores decodes the model output, tolerating markdown code fences.
func parseScores(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
	}

	var scores []float64
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("parse llm response: %w (raw: %s)", err, truncate(raw, 200))
	}
	return scores, nil
}

func (e *LLM) callOpenAI(ctx context.Context, prompt string) (string, error) {
	baseURL := e.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	payload := map[string]any{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0,
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (e *LLM) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := e.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := map[string]any{
		"model":      e.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic status %d", resp.StatusCode)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
