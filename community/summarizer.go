package community

import (
	"context"
	"fmt"
	"strings"

	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
)

const summaryPrompt = `Summarize the following community of related items in 2-3 sentences.
Members: %s

Write a concise summary of what connects these items.`

// Summarizer produces an LLM-backed natural-language summary for a
// community given its member names/keywords.
type Summarizer struct {
	LLM llmclient.Client
}

// Summarize returns a short prose description of the community.
func (s Summarizer) Summarize(ctx context.Context, memberNames []string) (string, error) {
	if len(memberNames) == 0 {
		return "", nil
	}
	prompt := fmt.Sprintf(summaryPrompt, strings.Join(memberNames, ", "))
	resp, err := s.LLM.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0.3})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
