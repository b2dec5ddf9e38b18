package model

import (
	"github.com/cloudwego/eino/schema"
)

// PipelineState stores per-invocation state for the Eino graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers
//     (WithStatePreHandler, WithStatePostHandler) or compose.ProcessState,
//     which serialize access, so no mutex is required.
//   - Do not touch PipelineState outside handlers; persistence goes through
//     the ConversationRepository.
type PipelineState struct {
	ConversationID string
	// Messages is the append-only transcript for this turn. The last element
	// is always the artifact produced by the previous stage: the user query,
	// then the rewritten search query, then the wrapped search results, then
	// the formatted report. Stages only ever read the last element.
	Messages []*schema.Message
	// ValidInput is set by each stage and consumed by the routing branches.
	ValidInput bool

	// Accumulated total LLM cost (USD) across model invocations for this turn.
	TotalCostUSD float64
}

// LastMessage returns the most recent transcript entry, or nil when empty.
func (s *PipelineState) LastMessage() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// TurnInput is the graph input for one user turn.
type TurnInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// SearchResult is one entry returned by a web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
