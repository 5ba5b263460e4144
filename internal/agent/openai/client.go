// Package openai adapts Azure OpenAI chat completions to the agent's LLM interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/abstracta/skywalking-copilot/internal/agent"
	"github.com/abstracta/skywalking-copilot/internal/agent/domain"
)

// Config identifies an Azure OpenAI deployment.
type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Model      string
}

// Client streams chat completions from an Azure OpenAI deployment.
type Client struct {
	client *goopenai.Client
	model  string
}

// NewClient returns a Client for the deployment in cfg.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || cfg.APIKey == "" || cfg.Deployment == "" {
		return nil, fmt.Errorf("openai: endpoint, api key and deployment are required")
	}
	c := goopenai.DefaultAzureConfig(cfg.APIKey, strings.TrimSuffix(cfg.Endpoint, "/"))
	if cfg.APIVersion != "" {
		c.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	c.AzureModelMapperFunc = func(string) string { return deployment }
	return &Client{client: goopenai.NewClientWithConfig(c), model: cfg.Model}, nil
}

var _ agent.LLM = (*Client)(nil)

// Complete streams one reply. Text deltas go to onToken as they arrive; tool call fragments are
// assembled and returned in the completion.
func (c *Client) Complete(ctx context.Context, msgs []domain.Message, tools []domain.ToolSpec, onToken agent.TokenFunc) (domain.Completion, error) {
	req := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toChatMessages(msgs),
		Tools:    toTools(tools),
		// Temperature 0 is dropped by omitempty.
		Temperature: math.SmallestNonzeroFloat32,
		Stream:      true,
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("openai: create stream: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	calls := make(map[int]*domain.ToolCall)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Completion{}, fmt.Errorf("openai: receive: %w", err)
		}
		for _, choice := range chunk.Choices {
			delta := choice.Delta
			if delta.Content != "" {
				content.WriteString(delta.Content)
				if onToken != nil {
					if err := onToken(delta.Content); err != nil {
						return domain.Completion{}, err
					}
				}
			}
			for i, tc := range delta.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				call, ok := calls[idx]
				if !ok {
					call = &domain.ToolCall{}
					calls[idx] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name = tc.Function.Name
				}
				call.Arguments += tc.Function.Arguments
			}
		}
	}
	return domain.Completion{Content: content.String(), ToolCalls: orderedCalls(calls)}, nil
}

func orderedCalls(calls map[int]*domain.ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	idx := make([]int, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]domain.ToolCall, 0, len(idx))
	for _, i := range idx {
		out = append(out, *calls[i])
	}
	return out
}

func toChatMessages(msgs []domain.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := goopenai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func toTools(specs []domain.ToolSpec) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}
