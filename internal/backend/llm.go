package backend

import (
	"context"
	"errors"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

const llmPrompt = `
You are the SmartStore operations assistant for a retail franchise.
Answer questions about inventory, reorders, deliveries, drivers, weather
and store performance in two or three short sentences. The answer is read
aloud, so do not use markdown, tables or lists. If you do not know, say so.
`

// LLM answers questions with a chat completion instead of the backend's
// chatbot route.
type LLM struct {
	client openai.Client
	model  string
}

func NewLLM(client openai.Client, model string) *LLM {
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}
	return &LLM{client: client, model: model}
}

func (l *LLM) Answer(ctx context.Context, question string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(llmPrompt),
			openai.UserMessage(question),
		},
		Model: openai.ChatModel(l.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Endpoint: "chat/completions"}
		}
		return "", networkErr("chat/completions", err)
	}

	if len(resp.Choices) == 0 {
		return "", malformedErr("chat/completions", "no choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", malformedErr("chat/completions", "empty message content")
	}

	log.Debug("LLM answer ready", "model", l.model, "chars", len(content))
	return content, nil
}
