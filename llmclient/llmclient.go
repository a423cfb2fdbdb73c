// Package llmclient wraps langchaingo's llms.Model behind the spec's §6 LLM
// client contract (chat/embed/embed_many/get_model_name), generalizing the
// teacher's rag/engine/graph.go's ad hoc `rag.LLMInterface.Generate(ctx,
// prompt string)` single-shot call into a message-based chat call with
// structured usage and finish-reason reporting.
package llmclient

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

// Role is a closed tag for chat message roles.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// ChatOptions configures a single chat call; zero values take the client's
// configured defaults.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

// Usage reports token accounting for one chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResult is the response shape for Chat.
type ChatResult struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string
}

// Client is the LLM client contract (§6). Every call accepts a deadline via
// ctx; a request whose deadline has already expired returns a Timeout kind
// without issuing the call.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	GetModelName() string
}

// LangchainClient adapts a langchaingo llms.Model to Client, grounded on the
// teacher's rag.adapters.go LangChain* adapter family (float64->float32
// conversion, context-first calls).
type LangchainClient struct {
	model     llms.Model
	modelName string
}

// New wraps model, reporting modelName from GetModelName().
func New(model llms.Model, modelName string) *LangchainClient {
	return &LangchainClient{model: model, modelName: modelName}
}

func toLangchainRole(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// Chat implements Client.
func (c *LangchainClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, kinderr.Wrap(kinderr.Timeout, err, "chat call deadline already expired")
	}

	lcMessages := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		lcMessages[i] = llms.TextParts(toLangchainRole(m.Role), m.Content)
	}

	callOpts := []llms.CallOption{}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}

	resp, err := c.model.GenerateContent(ctx, lcMessages, callOpts...)
	if err != nil {
		return nil, classifyLLMError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, kinderr.New(kinderr.Fatal, "llm returned no choices")
	}
	choice := resp.Choices[0]

	result := &ChatResult{
		Content:      choice.Content,
		FinishReason: string(choice.StopReason),
		Model:        c.modelName,
	}
	if choice.GenerationInfo != nil {
		if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
			result.Usage.PromptTokens = v
		}
		if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
			result.Usage.CompletionTokens = v
		}
		if v, ok := choice.GenerationInfo["TotalTokens"].(int); ok {
			result.Usage.TotalTokens = v
		} else {
			result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
		}
	}
	return result, nil
}

// Embed implements Client. It always returns a Fatal error; embeddings are
// served by embedclient.Client.
func (c *LangchainClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, kinderr.New(kinderr.Fatal, "this llm client is not configured for embeddings; use embedclient.Client")
}

// EmbedMany implements Client, see Embed.
func (c *LangchainClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, kinderr.New(kinderr.Fatal, "this llm client is not configured for embeddings; use embedclient.Client")
}

// GetModelName implements Client.
func (c *LangchainClient) GetModelName() string { return c.modelName }

// classifyLLMError maps a langchaingo error into the closed kinderr taxonomy.
// langchaingo providers don't expose a typed rate-limit/timeout error, so
// this inspects the error text the way the teacher's own error-wrapping
// code does for provider errors it doesn't control.
func classifyLLMError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case contains(msg, "rate limit", "429", "too many requests"):
		return kinderr.Wrap(kinderr.RateLimited, err, "llm rate limited").WithRetryAfter(5)
	case contains(msg, "deadline exceeded", "context canceled", "timeout"):
		return kinderr.Wrap(kinderr.Timeout, err, "llm call timed out")
	case contains(msg, "invalid", "400", "bad request"):
		return kinderr.Wrap(kinderr.ValidationError, err, "llm rejected request")
	default:
		return kinderr.Wrap(kinderr.TransientIO, err, "llm call failed")
	}
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
