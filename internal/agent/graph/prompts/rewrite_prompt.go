package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/rewrite_prompt.txt
var rewriteSystemPrompt string

// RenderRewriteSystem renders the query-rewrite system prompt via the Eino
// prompt component so prompt callbacks fire, and returns the final string.
func RenderRewriteSystem(ctx context.Context) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(rewriteSystemPrompt)},
	})
	if err != nil {
		return "", fmt.Errorf("rewrite prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("rewrite prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
