package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abstracta/skywalking-copilot/internal/agent/domain"
	"github.com/abstracta/skywalking-copilot/internal/agent/repository"
)

// DefaultMaxIterations bounds the model round trips of one question when none is configured.
const DefaultMaxIterations = 3

// StoppedAnswer is returned when the model keeps requesting invalid commands until the iteration limit.
const StoppedAnswer = "Agent stopped due to iteration limit."

// TokenFunc receives answer tokens as they are produced. Returning an error aborts the answer.
type TokenFunc func(token string) error

// LLM is a chat model with tool calling. Complete streams text tokens through onToken and
// returns the whole reply.
type LLM interface {
	Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec, onToken TokenFunc) (domain.Completion, error)
}

// Runner executes commands. *Toolbox implements it.
type Runner interface {
	Specs() []domain.ToolSpec
	Run(ctx context.Context, cmd Command) (string, error)
}

// Agent answers questions with a language model, keeping one conversation per session.
type Agent struct {
	llm           LLM
	tools         Runner
	history       repository.Repository
	systemPrompt  string
	maxIterations int
	logger        *zap.Logger
}

// Config configures an Agent.
type Config struct {
	SystemPrompt  string
	MaxIterations int
}

// New returns an Agent.
func New(llm LLM, tools Runner, history repository.Repository, cfg Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Agent{
		llm:           llm,
		tools:         tools,
		history:       history,
		systemPrompt:  cfg.SystemPrompt,
		maxIterations: cfg.MaxIterations,
		logger:        logger.Named("agent"),
	}
}

// StartSession seeds the session conversation with the user's preferred locale.
func (a *Agent) StartSession(ctx context.Context, sessionID string, locales []string) error {
	if len(locales) == 0 {
		return nil
	}
	if err := a.history.Append(ctx, sessionID, domain.UserMessage("this is my locale: "+locales[0])); err != nil {
		return fmt.Errorf("agent: start session: %w", err)
	}
	return nil
}

// Ask answers question within the session conversation, streaming tokens through onToken, and
// records the exchange in the session history. It returns everything passed to onToken.
//
// A command requested by the model is run and its output is the answer. Invalid command requests
// are reported back to the model, up to the iteration limit.
func (a *Agent) Ask(ctx context.Context, sessionID, question string, onToken TokenFunc) (string, error) {
	past, err := a.history.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("agent: load history: %w", err)
	}
	msgs := make([]domain.Message, 0, len(past)+2)
	if a.systemPrompt != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: a.systemPrompt})
	}
	msgs = append(msgs, past...)
	msgs = append(msgs, domain.UserMessage(question))

	var streamed strings.Builder
	emit := func(token string) error {
		streamed.WriteString(token)
		if onToken == nil {
			return nil
		}
		return onToken(token)
	}

	answer, err := a.run(ctx, msgs, emit)
	if err != nil {
		return streamed.String(), err
	}
	// Command output and the stop notice are not streamed by the model.
	if answer != streamed.String() {
		if err := emit(answer); err != nil {
			return streamed.String(), err
		}
	}

	if err := a.history.Append(ctx, sessionID, domain.UserMessage(question), domain.AssistantMessage(answer)); err != nil {
		return streamed.String(), fmt.Errorf("agent: save history: %w", err)
	}
	return streamed.String(), nil
}

func (a *Agent) run(ctx context.Context, msgs []domain.Message, emit TokenFunc) (string, error) {
	specs := a.tools.Specs()
	for i := 0; i < a.maxIterations; i++ {
		reply, err := a.llm.Complete(ctx, msgs, specs, emit)
		if err != nil {
			return "", fmt.Errorf("agent: complete: %w", err)
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		call := reply.ToolCalls[0]
		cmd, err := ParseCommand(call)
		if err != nil {
			a.logger.Warn("invalid command requested", zap.String("tool", call.Name), zap.Error(err))
			msgs = append(msgs, domain.Message{Role: domain.RoleAssistant, Content: reply.Content, ToolCalls: reply.ToolCalls})
			msgs = append(msgs, toolResults(reply.ToolCalls, err.Error())...)
			continue
		}
		a.logger.Debug("running command", zap.Stringer("command", cmd.Kind))
		out, err := a.tools.Run(ctx, cmd)
		if err != nil {
			return "", fmt.Errorf("agent: %s: %w", cmd.Kind, err)
		}
		return out, nil
	}
	return StoppedAnswer, nil
}

// toolResults answers every tool call of a rejected reply: the first with reason, the rest as skipped.
func toolResults(calls []domain.ToolCall, reason string) []domain.Message {
	out := make([]domain.Message, len(calls))
	for i, c := range calls {
		content := reason
		if i > 0 {
			content = "skipped: only one command runs per answer"
		}
		out[i] = domain.Message{Role: domain.RoleTool, ToolCallID: c.ID, Content: content}
	}
	return out
}

// IsCanceled reports whether err comes from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
