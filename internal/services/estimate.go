package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/makerplan/backend/internal/config"
	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/logger"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

// Price extraction patterns, tried in order against the model's reply.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)estimated?\s*price[:：]?\s*\$?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)price[:：]?\s*\$?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)`),
}

// EstimateService asks a configured LLM for a unit-price estimate. The core
// treats it as an opaque estimate(prompt) -> value collaborator; callers
// hold write authorization on the target row before invoking it.
type EstimateService struct {
	db     *gorm.DB
	config *config.EstimatorConfig
}

func NewEstimateService(db *gorm.DB, cfg *config.EstimatorConfig) *EstimateService {
	return &EstimateService{db: db, config: cfg}
}

// EstimateItemPrice returns a unit-price estimate for the item. Configured
// estimators are tried in order (default first), falling back to the static
// file config when no database rows exist.
func (s *EstimateService) EstimateItemPrice(ctx context.Context, item *models.Item) (float64, error) {
	prompt := buildPricePrompt(item)

	configs := s.getOrderedConfigs()
	if len(configs) == 0 {
		return 0, fmt.Errorf("no estimator configuration available")
	}

	var lastErr error
	for i, cfg := range configs {
		logger.Infof("[Estimate] Attempting estimator %d/%d: %s (model: %s)", i+1, len(configs), cfg.Name, cfg.Model)

		content, err := s.callLLM(ctx, &cfg, prompt)
		if err != nil {
			lastErr = err
			logger.Infof("[Estimate] Estimator %s failed: %v, trying next...", cfg.Name, err)
			continue
		}

		price, ok := extractPrice(content)
		if !ok {
			lastErr = fmt.Errorf("no price found in reply from %s", cfg.Name)
			continue
		}
		return price, nil
	}
	return 0, fmt.Errorf("all estimators failed, last error: %w", lastErr)
}

func buildPricePrompt(item *models.Item) string {
	var b strings.Builder
	b.WriteString("Estimate a fair single-unit market price in USD for the following item. ")
	b.WriteString("Reply with a line of the form \"Estimated price: $<number>\".\n\n")
	fmt.Fprintf(&b, "Name: %s\n", item.Name)
	if item.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", item.Description)
	}
	fmt.Fprintf(&b, "Type: %s\n", item.ItemType)
	return b.String()
}

// getOrderedConfigs returns the active estimator configurations, default
// first, with the file config as a final fallback when the table is empty.
func (s *EstimateService) getOrderedConfigs() []models.EstimatorConfig {
	var configs []models.EstimatorConfig

	var defaultConfig models.EstimatorConfig
	if err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&defaultConfig).Error; err == nil {
		configs = append(configs, defaultConfig)
	}

	var backups []models.EstimatorConfig
	existingIDs := make(map[uint]bool)
	for _, c := range configs {
		existingIDs[c.ID] = true
	}
	s.db.Where("is_active = ?", true).Order("id ASC").Find(&backups)
	for _, c := range backups {
		if !existingIDs[c.ID] {
			configs = append(configs, c)
		}
	}

	if len(configs) == 0 && s.config != nil && s.config.APIKey != "" {
		configs = append(configs, models.EstimatorConfig{
			Name:    "fallback",
			BaseURL: s.config.BaseURL,
			APIKey:  s.config.APIKey,
			Model:   s.config.Model,
		})
	}
	return configs
}

// callLLM dispatches to the provider-specific call based on the Provider field.
func (s *EstimateService) callLLM(ctx context.Context, cfg *models.EstimatorConfig, prompt string) (string, error) {
	switch cfg.Provider {
	case "anthropic":
		return s.callAnthropic(ctx, cfg, prompt)
	case "ollama":
		return s.callOllama(ctx, cfg, prompt)
	case "gemini":
		return s.callGemini(ctx, cfg, prompt)
	default:
		// openai and OpenAI-compatible endpoints
		return s.callOpenAI(ctx, cfg, prompt)
	}
}

func (s *EstimateService) callOpenAI(ctx context.Context, cfg *models.EstimatorConfig, prompt string) (string, error) {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	temperature := float32(0.2)
	if cfg.Temperature > 0 {
		temperature = float32(cfg.Temperature)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *EstimateService) callAnthropic(ctx context.Context, cfg *models.EstimatorConfig, prompt string) (string, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

func (s *EstimateService) callOllama(ctx context.Context, cfg *models.EstimatorConfig, prompt string) (string, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	model := cfg.Model
	if model == "" {
		model = "llama3"
	}

	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Options: map[string]interface{}{
			"temperature": cfg.Temperature,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama API error: %w", err)
	}
	return content.String(), nil
}

func (s *EstimateService) callGemini(ctx context.Context, cfg *models.EstimatorConfig, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini client error: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-3.0-flash"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return resp.Text(), nil
}

// extractPrice pulls the first parseable dollar amount out of the reply.
func extractPrice(content string) (float64, bool) {
	for _, pattern := range pricePatterns {
		matches := pattern.FindStringSubmatch(content)
		if len(matches) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(matches[1], 64)
		if err != nil || price < 0 {
			continue
		}
		return price, true
	}
	return 0, false
}
