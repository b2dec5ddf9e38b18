package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/tripscout/agent/internal/agent/model"
	logx "github.com/tripscout/agent/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey        string
	BaseURL       string
	RewriteConfig *model.RewriteModelConfig
	FormatConfig  *model.FormatModelConfig
}

// ChatModels holds the query-rewrite and report-format chat models.
// Fields are the Eino chat model interface so tests can substitute
// deterministic doubles.
type ChatModels struct {
	Rewrite          einomodel.BaseChatModel
	Format           einomodel.BaseChatModel
	RewriteModelName string
	FormatModelName  string
}

// NewChatModels creates both chat models over a single Gemini client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModelRewrite, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RewriteConfig.Model,
		Temperature: &config.RewriteConfig.Temperature,
		MaxTokens:   &config.RewriteConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating rewrite model")
		return nil, fmt.Errorf("error creating rewrite model: %w", err)
	}

	chatModelFormat, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.FormatConfig.Model,
		Temperature: &config.FormatConfig.Temperature,
		MaxTokens:   &config.FormatConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating format model")
		return nil, fmt.Errorf("error creating format model: %w", err)
	}

	return &ChatModels{
		Rewrite:          chatModelRewrite,
		Format:           chatModelFormat,
		RewriteModelName: config.RewriteConfig.Model,
		FormatModelName:  config.FormatConfig.Model,
	}, nil
}
