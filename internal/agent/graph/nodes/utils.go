package nodes

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/tripscout/agent/internal/agent/model"
	logx "github.com/tripscout/agent/pkg/logger"
)

// Node names double as the pipeline's state-machine states.
const (
	NodeProcessInput  = "process_input"
	NodeRewriteModel  = "rewrite_model"
	NodeRejectInput   = "reject_input"
	NodeProcessSearch = "process_search"
	NodeFormatContext = "format_context"
	NodeFormatModel   = "format_output"
	NodeRejectResults = "reject_results"
)

// Fixed diagnostics appended when a stage's expected input artifact is
// missing or malformed. These exact strings are part of the CLI contract.
const (
	MsgNoUserInput     = "No user input received."
	MsgNoSearchQuery   = "No search query received."
	MsgNoSearchResults = "No search results received."
)

// SearchResultsPrefix labels the raw-results message produced by the search
// stage.
const SearchResultsPrefix = "Search results: "

// ===== Small helpers to keep handlers simple/readable =====

// isUsableUserInput reports whether msg is a user-authored message with
// non-blank content.
func isUsableUserInput(msg *schema.Message) bool {
	return msg != nil && msg.Role == schema.User && strings.TrimSpace(msg.Content) != ""
}

// isAssistantArtifact reports whether msg is an assistant-authored artifact
// from the previous stage.
func isAssistantArtifact(msg *schema.Message) bool {
	return msg != nil && msg.Role == schema.Assistant
}

// recordUsageCost annotates a model output with token usage and USD cost and
// accumulates the turn total into state.
func recordUsageCost(state *model.PipelineState, out *schema.Message, node, modelName string) {
	if !model.CostEnabled() || out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}

	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     out.ResponseMeta.Usage.PromptTokens,
		"completion_tokens": out.ResponseMeta.Usage.CompletionTokens,
		"total_tokens":      out.ResponseMeta.Usage.TotalTokens,
		"input_cost":        inC,
		"output_cost":       outC,
		"total_cost":        totalC,
	}

	state.TotalCostUSD += totalC
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

	logx.Debug().
		Str("conversation_id", state.ConversationID).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
		Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
		Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
