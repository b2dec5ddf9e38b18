package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/tripscout/agent/internal/agent/graph"
	"github.com/tripscout/agent/internal/agent/model"
	"github.com/tripscout/agent/internal/agent/repo"
	"github.com/tripscout/agent/internal/agent/search"
	"github.com/tripscout/agent/internal/core"
	logx "github.com/tripscout/agent/pkg/logger"
	pkgredis "github.com/tripscout/agent/pkg/redis"
)

// AppConfig defines all configurable parameters for the travel agent,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure (optional; enables the search result cache)
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Rewrite      model.RewriteModelConfig
	Format       model.FormatModelConfig
	Search       model.SearchConfig
	Cache        model.CacheConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	// Search result cache is active only when a Redis URL is configured.
	var cache repo.SearchCache = repo.NoopSearchCache{}
	if envCfg.Redis.Enabled() {
		ttl, err := time.ParseDuration(envCfg.Cache.TTL)
		if err != nil {
			log.Fatalf("Invalid CACHE_TTL '%s': %v", envCfg.Cache.TTL, err)
		}
		rdb, err := envCfg.Redis.New()
		if err != nil {
			log.Fatalf("Failed to initialise Redis client: %v", err)
		}
		defer rdb.Close()
		cache = repo.NewRedisSearchCache(rdb, ttl)
		logx.Info().Msg("Search result caching enabled")
	}

	runner, err := graph.BuildTravelGraph(ctx, graph.Config{
		APIKey:           envCfg.APIKey,
		BaseURL:          envCfg.BaseURL,
		RewriteModel:     envCfg.Rewrite,
		FormatModel:      envCfg.Format,
		Conversation:     envCfg.Conversation,
		ConversationRepo: repo.NewMemoryConversationRepository(),
		SearchProvider:   search.NewDuckDuckGo(envCfg.Search),
		SearchCache:      cache,
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	// One conversation per process; history accumulates until exit.
	conversationID := uuid.NewString()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Enter your search query ('q' to quit): ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "q" {
			break
		}

		response, err := runner.Invoke(ctx, model.TurnInput{
			ConversationID: conversationID,
			Query:          line,
		})
		if err != nil {
			// Collaborator failure: report it and stay in the loop rather
			// than taking the process down.
			logx.Error().Err(err).Msg("Pipeline turn failed")
			continue
		}

		if response != nil && response.Role == schema.Assistant {
			fmt.Println(response.Content)
		} else {
			fmt.Println("Invalid response received.")
		}
	}
}
