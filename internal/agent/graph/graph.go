package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tripscout/agent/internal/agent/graph/conversations"
	"github.com/tripscout/agent/internal/agent/graph/nodes"
	"github.com/tripscout/agent/internal/agent/graph/observers"
	"github.com/tripscout/agent/internal/agent/model"
	"github.com/tripscout/agent/internal/agent/repo"
	"github.com/tripscout/agent/internal/agent/search"
	logx "github.com/tripscout/agent/pkg/logger"
)

// Runner is a thin wrapper to execute the compiled graph with the public TurnInput.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnInput) (*schema.Message, error)
}

// Config holds everything needed to compose the full travel pipeline
// end-to-end. This is a convenience layer over GraphConfig that also
// constructs the chat models and the messages manager.
type Config struct {
	APIKey           string
	BaseURL          string
	RewriteModel     model.RewriteModelConfig
	FormatModel      model.FormatModelConfig
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository
	SearchProvider   search.Provider
	SearchCache      repo.SearchCache
}

// GraphConfig holds all collaborators needed to build the graph. Tests build
// this directly with deterministic doubles.
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	SearchProvider  search.Provider
	SearchCache     repo.SearchCache
}

// GraphBuilder handles the construction of the travel pipeline graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.TurnInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.TurnInput, *schema.Message]
}

// Invoke runs one pipeline turn. Collaborator failures (model or search
// transport) surface here as errors; malformed stage input never does, it
// comes back as a diagnostic assistant message.
func (r *graphRunner) Invoke(ctx context.Context, in model.TurnInput) (*schema.Message, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// BuildTravelGraph composes chat models and the messages manager, builds the
// graph, and returns a Runner.
func BuildTravelGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.SearchProvider == nil {
		return nil, fmt.Errorf("search provider is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		RewriteConfig: &cfg.RewriteModel,
		FormatConfig:  &cfg.FormatModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	cache := cfg.SearchCache
	if cache == nil {
		cache = repo.NoopSearchCache{}
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		SearchProvider:  cfg.SearchProvider,
		SearchCache:     cache,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Travel pipeline graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled pipeline graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.TurnInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Rewrite == nil || config.ChatModels.Format == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.SearchProvider == nil {
		return nil, fmt.Errorf("search provider is nil")
	}
	if config.SearchCache == nil {
		config.SearchCache = repo.NoopSearchCache{}
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.PipelineState {
				return &model.PipelineState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	mm := b.config.MessagesManager
	cms := b.config.ChatModels

	b.graph.AddLambdaNode(nodes.NodeProcessInput,
		nodes.NewProcessInputNode(),
		compose.WithStatePreHandler(nodes.NewProcessInputPreHandler(mm)),
	)

	b.graph.AddChatModelNode(nodes.NodeRewriteModel,
		cms.Rewrite,
		compose.WithStatePostHandler(nodes.NewRewriteModelPostHandler(mm, cms.RewriteModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeRejectInput,
		nodes.NewRejectInputNode(),
	)

	b.graph.AddLambdaNode(nodes.NodeProcessSearch,
		nodes.NewProcessSearchNode(b.config.SearchProvider, b.config.SearchCache, mm),
	)

	b.graph.AddLambdaNode(nodes.NodeFormatContext,
		nodes.NewFormatContextNode(mm),
	)

	b.graph.AddLambdaNode(nodes.NodeRejectResults,
		nodes.NewRejectResultsNode(),
	)

	b.graph.AddChatModelNode(nodes.NodeFormatModel,
		cms.Format,
		compose.WithStatePostHandler(nodes.NewFormatModelPostHandler(mm, cms.FormatModelName)),
	)
}

// addEdges creates the unconditional flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeProcessInput},
		{nodes.NodeRejectInput, compose.END},
		{nodes.NodeRewriteModel, nodes.NodeProcessSearch},
		{nodes.NodeRejectResults, compose.END},
		{nodes.NodeFormatModel, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the routing branches guarded by the stage success flag
func (b *GraphBuilder) addBranches() error {
	inputBranch := compose.NewGraphBranch(
		nodes.NewInputValidCondition(),
		map[string]bool{
			nodes.NodeRewriteModel: true,
			nodes.NodeRejectInput:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeProcessInput, inputBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding input validation branch")
		return fmt.Errorf("error adding input validation branch: %w", err)
	}

	searchBranch := compose.NewGraphBranch(
		nodes.NewSearchValidCondition(),
		map[string]bool{
			nodes.NodeFormatContext: true,
			compose.END:             true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeProcessSearch, searchBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding search branch")
		return fmt.Errorf("error adding search branch: %w", err)
	}

	formatBranch := compose.NewGraphBranch(
		nodes.NewFormatValidCondition(),
		map[string]bool{
			nodes.NodeFormatModel:   true,
			nodes.NodeRejectResults: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeFormatContext, formatBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding format branch")
		return fmt.Errorf("error adding format branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *schema.Message], error) {
	// The pipeline is strictly linear; a small step cap guards against wiring
	// mistakes rather than runtime loops.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(12))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
