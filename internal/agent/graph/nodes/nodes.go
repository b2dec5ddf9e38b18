package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tripscout/agent/internal/agent/graph/conversations"
	"github.com/tripscout/agent/internal/agent/graph/prompts"
	"github.com/tripscout/agent/internal/agent/model"
	"github.com/tripscout/agent/internal/agent/repo"
	"github.com/tripscout/agent/internal/agent/search"
	logx "github.com/tripscout/agent/pkg/logger"
)

// NewProcessInputPreHandler seeds pipeline state for a new turn: it records
// the user's query in the transcript, loads history into state, and validates
// that the stage's input artifact is a usable user message. On failure the
// fixed diagnostic is appended and the routing flag cleared; no error is
// returned because malformed input is a routing concern, not a failure.
func NewProcessInputPreHandler(mm *conversations.MessagesManager) func(context.Context, model.TurnInput, *model.PipelineState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.PipelineState) (model.TurnInput, error) {
		if s.ConversationID == "" {
			s.ConversationID = in.ConversationID
		}
		// Reset per-turn routing and accounting state.
		s.ValidInput = false
		s.TotalCostUSD = 0

		msgs, err := mm.BeginTurn(ctx, in.ConversationID, in.Query)
		if err != nil {
			return in, err
		}
		s.Messages = msgs

		if !isUsableUserInput(s.LastMessage()) {
			diagnostic := schema.AssistantMessage(MsgNoUserInput, nil)
			s.Messages = append(s.Messages, diagnostic)
			if err := mm.SaveAssistant(ctx, s.ConversationID, MsgNoUserInput); err != nil {
				logx.Error().Err(err).Str("conversation_id", s.ConversationID).Msg("Error saving diagnostic")
			}
			logx.Debug().Str("conversation_id", s.ConversationID).Msg("Rejected blank or missing user input")
			return in, nil
		}

		s.ValidInput = true
		return in, nil
	}
}

// NewProcessInputNode builds the rewrite-model context from the validated
// user query. When validation failed the node is a no-op; the branch routes
// around the chat model.
func NewProcessInputNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.TurnInput) ([]*schema.Message, error) {
		var valid bool
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			valid = s.ValidInput
			return nil
		}); err != nil {
			return nil, err
		}
		if !valid {
			return nil, nil
		}

		systemPrompt, err := prompts.RenderRewriteSystem(ctx)
		if err != nil {
			return nil, err
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(input.Query),
		}, nil
	})
}

// NewInputValidCondition routes to the rewrite model on valid input, or to
// the reject exit when the rewriter stage already emitted its diagnostic.
func NewInputValidCondition() func(context.Context, []*schema.Message) (string, error) {
	return func(ctx context.Context, _ []*schema.Message) (string, error) {
		var valid bool
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			valid = s.ValidInput
			return nil
		}); err != nil {
			return "", err
		}
		if valid {
			return NodeRewriteModel, nil
		}
		logx.Debug().Msg("Invalid user input - routing to end")
		return NodeRejectInput, nil
	}
}

// NewRejectInputNode terminates an invalid turn, surfacing the diagnostic
// appended by the rewriter stage as the graph output.
func NewRejectInputNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []*schema.Message) (*schema.Message, error) {
		out := schema.AssistantMessage(MsgNoUserInput, nil)
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			if last := s.LastMessage(); last != nil {
				out = last
			}
			return nil
		}); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// NewRewriteModelPostHandler appends the rewritten search query to the
// transcript and marks the stage successful.
func NewRewriteModelPostHandler(mm *conversations.MessagesManager, modelName string) func(context.Context, *schema.Message, *model.PipelineState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.PipelineState) (*schema.Message, error) {
		recordUsageCost(state, out, NodeRewriteModel, modelName)

		state.Messages = append(state.Messages, out)
		state.ValidInput = true

		if err := mm.SaveModelOutput(ctx, state.ConversationID, out); err != nil {
			logx.Error().Err(err).Str("conversation_id", state.ConversationID).Msg("Error saving rewritten query")
		}

		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Str("search_query", strings.TrimSpace(out.Content)).
			Msg("Query rewritten")
		return out, nil
	}
}

// NewProcessSearchNode executes the web search for the rewritten query.
// The provider's results are passed through verbatim, wrapped with the
// search-results prefix. A cache sits in front of the provider; cache
// failures degrade to a provider call rather than failing the turn.
func NewProcessSearchNode(provider search.Provider, cache repo.SearchCache, mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		if !isAssistantArtifact(in) {
			return appendDiagnostic(ctx, mm, MsgNoSearchQuery)
		}

		query := strings.TrimSpace(in.Content)

		results, hit, err := cache.Get(ctx, query)
		if err != nil {
			logx.Warn().Err(err).Msg("Search cache read failed - falling through to provider")
			hit = false
		}
		if !hit {
			results, err = provider.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			if err := cache.Put(ctx, query, results); err != nil {
				logx.Warn().Err(err).Msg("Search cache write failed")
			}
		} else {
			logx.Debug().Str("query", query).Msg("Search cache hit")
		}

		content := SearchResultsPrefix + search.RenderResults(results)
		out := schema.AssistantMessage(content, nil)

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Messages = append(s.Messages, out)
			s.ValidInput = true
			if err := mm.SaveAssistant(ctx, s.ConversationID, content); err != nil {
				logx.Error().Err(err).Str("conversation_id", s.ConversationID).Msg("Error saving search results")
			}
			return nil
		}); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// NewSearchValidCondition routes to the formatter when the search stage
// succeeded, or short-circuits to the end with the stage's diagnostic.
func NewSearchValidCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, _ *schema.Message) (string, error) {
		var valid bool
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			valid = s.ValidInput
			return nil
		}); err != nil {
			return "", err
		}
		if valid {
			return NodeFormatContext, nil
		}
		logx.Debug().Msg("Search stage failed - routing to end")
		return compose.END, nil
	}
}

// NewFormatContextNode builds the format-model context from the raw search
// results.
func NewFormatContextNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) ([]*schema.Message, error) {
		if !isAssistantArtifact(in) {
			if _, err := appendDiagnostic(ctx, mm, MsgNoSearchResults); err != nil {
				return nil, err
			}
			return nil, nil
		}

		systemPrompt, err := prompts.RenderFormatSystem(ctx)
		if err != nil {
			return nil, err
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(in.Content),
		}, nil
	})
}

// NewFormatValidCondition routes to the format model, or to the reject exit
// when the formatter stage found no usable search results.
func NewFormatValidCondition() func(context.Context, []*schema.Message) (string, error) {
	return func(ctx context.Context, _ []*schema.Message) (string, error) {
		var valid bool
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			valid = s.ValidInput
			return nil
		}); err != nil {
			return "", err
		}
		if valid {
			return NodeFormatModel, nil
		}
		logx.Debug().Msg("Formatter stage failed - routing to end")
		return NodeRejectResults, nil
	}
}

// NewRejectResultsNode surfaces the formatter stage's diagnostic as the graph
// output.
func NewRejectResultsNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []*schema.Message) (*schema.Message, error) {
		out := schema.AssistantMessage(MsgNoSearchResults, nil)
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			if last := s.LastMessage(); last != nil {
				out = last
			}
			return nil
		}); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// NewFormatModelPostHandler appends the formatted travel report to the
// transcript and marks the final stage successful.
func NewFormatModelPostHandler(mm *conversations.MessagesManager, modelName string) func(context.Context, *schema.Message, *model.PipelineState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.PipelineState) (*schema.Message, error) {
		recordUsageCost(state, out, NodeFormatModel, modelName)

		state.Messages = append(state.Messages, out)
		state.ValidInput = true

		if err := mm.SaveModelOutput(ctx, state.ConversationID, out); err != nil {
			logx.Error().Err(err).Str("conversation_id", state.ConversationID).Msg("Error saving formatted report")
		}

		logx.Debug().Str("conversation_id", state.ConversationID).Msg("Report formatted")
		return out, nil
	}
}

// appendDiagnostic records a stage-failure diagnostic in state and the
// transcript, clears the routing flag, and returns the diagnostic message.
func appendDiagnostic(ctx context.Context, mm *conversations.MessagesManager, text string) (*schema.Message, error) {
	out := schema.AssistantMessage(text, nil)
	if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
		s.Messages = append(s.Messages, out)
		s.ValidInput = false
		if err := mm.SaveAssistant(ctx, s.ConversationID, text); err != nil {
			logx.Error().Err(err).Str("conversation_id", s.ConversationID).Msg("Error saving diagnostic")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}
