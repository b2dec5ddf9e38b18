package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/tripscout/agent/internal/agent/model"
)

// MessagesManager mediates between the pipeline and the conversation
// repository so graph nodes never touch storage directly.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// BeginTurn records the user's query and returns the transcript (bounded by
// the configured window) to seed pipeline state. The returned slice ends with
// the just-saved user message.
func (mm *MessagesManager) BeginTurn(ctx context.Context, conversationID string, query string) ([]*schema.Message, error) {
	userMsg := schema.UserMessage(query)
	if err := mm.conversationRepo.AddMessage(ctx, conversationID, userMsg); err != nil {
		return nil, err
	}

	history, err := mm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return trimTail(history.Messages, mm.maxTurns), nil
}

// SaveAssistant appends an assistant-authored artifact (rewritten query,
// search wrapper, report, or diagnostic) to the transcript.
func (mm *MessagesManager) SaveAssistant(ctx context.Context, conversationID string, content string) error {
	assistantMsg := schema.AssistantMessage(content, nil)
	return mm.conversationRepo.AddMessage(ctx, conversationID, assistantMsg)
}

// SaveModelOutput appends a chat model's output message verbatim, preserving
// whatever role the provider reported.
func (mm *MessagesManager) SaveModelOutput(ctx context.Context, conversationID string, msg *schema.Message) error {
	return mm.conversationRepo.AddMessage(ctx, conversationID, msg)
}

// MessageCount reports the transcript length for a conversation.
func (mm *MessagesManager) MessageCount(ctx context.Context, conversationID string) (int, error) {
	return mm.conversationRepo.GetMessageCount(ctx, conversationID)
}

// trimTail returns a copy of the most recent maxTurns messages.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
