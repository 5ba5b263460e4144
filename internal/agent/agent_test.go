package agent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/abstracta/skywalking-copilot/internal/agent/domain"
)

// scriptedReply is one model reply: tokens are streamed, then the completion is returned.
type scriptedReply struct {
	tokens    []string
	toolCalls []domain.ToolCall
	err       error
}

type fakeLLM struct {
	replies []scriptedReply
	calls   [][]domain.Message
	tools   []domain.ToolSpec
}

func (l *fakeLLM) Complete(_ context.Context, msgs []domain.Message, tools []domain.ToolSpec, onToken TokenFunc) (domain.Completion, error) {
	l.calls = append(l.calls, append([]domain.Message(nil), msgs...))
	l.tools = tools
	r := l.replies[0]
	if len(l.replies) > 1 {
		l.replies = l.replies[1:]
	}
	if r.err != nil {
		return domain.Completion{}, r.err
	}
	for _, tok := range r.tokens {
		if err := onToken(tok); err != nil {
			return domain.Completion{}, err
		}
	}
	return domain.Completion{Content: strings.Join(r.tokens, ""), ToolCalls: r.toolCalls}, nil
}

type fakeRunner struct {
	out  string
	err  error
	cmds []Command
}

func (r *fakeRunner) Specs() []domain.ToolSpec {
	return []domain.ToolSpec{{Name: "get_services_topology"}}
}

func (r *fakeRunner) Run(_ context.Context, cmd Command) (string, error) {
	r.cmds = append(r.cmds, cmd)
	return r.out, r.err
}

type memoryHistory struct {
	msgs      map[string][]domain.Message
	appendErr error
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{msgs: map[string][]domain.Message{}}
}

func (h *memoryHistory) Load(_ context.Context, sessionID string) ([]domain.Message, error) {
	return h.msgs[sessionID], nil
}

func (h *memoryHistory) Append(_ context.Context, sessionID string, msgs ...domain.Message) error {
	if h.appendErr != nil {
		return h.appendErr
	}
	h.msgs[sessionID] = append(h.msgs[sessionID], msgs...)
	return nil
}

type tokenRecorder struct {
	tokens []string
}

func (r *tokenRecorder) record(tok string) error {
	r.tokens = append(r.tokens, tok)
	return nil
}

func TestAgent_StartSession(t *testing.T) {
	h := newMemoryHistory()
	a := New(&fakeLLM{}, &fakeRunner{}, h, Config{}, nil)
	if err := a.StartSession(context.Background(), "s1", []string{"es-UY", "en"}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := a.StartSession(context.Background(), "s2", nil); err != nil {
		t.Fatalf("StartSession(no locales): %v", err)
	}
	want := []domain.Message{domain.UserMessage("this is my locale: es-UY")}
	if !reflect.DeepEqual(h.msgs["s1"], want) {
		t.Errorf("history = %+v, want %+v", h.msgs["s1"], want)
	}
	if len(h.msgs["s2"]) != 0 {
		t.Errorf("history without locales = %+v", h.msgs["s2"])
	}
}

func TestAgent_AskTextAnswer(t *testing.T) {
	h := newMemoryHistory()
	h.msgs["s1"] = []domain.Message{domain.UserMessage("this is my locale: en")}
	llm := &fakeLLM{replies: []scriptedReply{{tokens: []string{"All ", "services ", "are healthy."}}}}
	a := New(llm, &fakeRunner{}, h, Config{SystemPrompt: "be brief"}, nil)
	rec := &tokenRecorder{}

	answer, err := a.Ask(context.Background(), "s1", "how are things?", rec.record)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "All services are healthy." {
		t.Errorf("answer = %q", answer)
	}
	if !reflect.DeepEqual(rec.tokens, []string{"All ", "services ", "are healthy."}) {
		t.Errorf("tokens = %q", rec.tokens)
	}

	sent := llm.calls[0]
	wantSent := []domain.Message{
		{Role: domain.RoleSystem, Content: "be brief"},
		domain.UserMessage("this is my locale: en"),
		domain.UserMessage("how are things?"),
	}
	if !reflect.DeepEqual(sent, wantSent) {
		t.Errorf("messages sent = %+v, want %+v", sent, wantSent)
	}
	if len(llm.tools) != 1 {
		t.Errorf("tools offered = %+v", llm.tools)
	}
	wantHistory := append(wantSent[1:], domain.AssistantMessage("All services are healthy."))
	if !reflect.DeepEqual(h.msgs["s1"], wantHistory) {
		t.Errorf("history = %+v, want %+v", h.msgs["s1"], wantHistory)
	}
}

func TestAgent_AskRunsCommand(t *testing.T) {
	h := newMemoryHistory()
	llm := &fakeLLM{replies: []scriptedReply{{toolCalls: []domain.ToolCall{{ID: "c1", Name: "get_services_topology", Arguments: "{}"}}}}}
	runner := &fakeRunner{out: "```plantuml```"}
	rec := &tokenRecorder{}

	answer, err := New(llm, runner, h, Config{}, nil).Ask(context.Background(), "s1", "show the topology", rec.record)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "```plantuml```" || !reflect.DeepEqual(rec.tokens, []string{"```plantuml```"}) {
		t.Errorf("answer = %q, tokens = %q", answer, rec.tokens)
	}
	if len(runner.cmds) != 1 || runner.cmds[0].Kind != CommandServicesTopology {
		t.Errorf("commands run = %+v", runner.cmds)
	}
	if len(llm.calls) != 1 {
		t.Errorf("model calls = %d, want 1", len(llm.calls))
	}
	last := h.msgs["s1"][len(h.msgs["s1"])-1]
	if !reflect.DeepEqual(last, domain.AssistantMessage("```plantuml```")) {
		t.Errorf("last history message = %+v", last)
	}
}

func TestAgent_AskRetriesInvalidCommand(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{
		{toolCalls: []domain.ToolCall{{ID: "c1", Name: "drop_tables"}, {ID: "c2", Name: "get_services_metrics"}}},
		{tokens: []string{"Sorry, I can't do that."}},
	}}
	runner := &fakeRunner{}
	answer, err := New(llm, runner, newMemoryHistory(), Config{}, nil).Ask(context.Background(), "s1", "drop everything", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Sorry, I can't do that." {
		t.Errorf("answer = %q", answer)
	}
	if len(runner.cmds) != 0 {
		t.Errorf("commands run = %+v", runner.cmds)
	}
	if len(llm.calls) != 2 {
		t.Fatalf("model calls = %d, want 2", len(llm.calls))
	}
	retry := llm.calls[1]
	tail := retry[len(retry)-3:]
	if tail[0].Role != domain.RoleAssistant || len(tail[0].ToolCalls) != 2 {
		t.Errorf("assistant tool call message = %+v", tail[0])
	}
	if tail[1].ToolCallID != "c1" || !strings.Contains(tail[1].Content, "unknown command") {
		t.Errorf("first tool result = %+v", tail[1])
	}
	if tail[2].ToolCallID != "c2" || !strings.HasPrefix(tail[2].Content, "skipped") {
		t.Errorf("second tool result = %+v", tail[2])
	}
}

func TestAgent_AskIterationLimit(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{{toolCalls: []domain.ToolCall{{ID: "c", Name: "nope"}}}}}
	rec := &tokenRecorder{}
	answer, err := New(llm, &fakeRunner{}, newMemoryHistory(), Config{MaxIterations: 2}, nil).
		Ask(context.Background(), "s1", "q", rec.record)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != StoppedAnswer || len(llm.calls) != 2 {
		t.Errorf("answer = %q after %d calls", answer, len(llm.calls))
	}
}

func TestAgent_AskErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("model error", func(t *testing.T) {
		h := newMemoryHistory()
		llm := &fakeLLM{replies: []scriptedReply{{err: boom}}}
		if _, err := New(llm, &fakeRunner{}, h, Config{}, nil).Ask(context.Background(), "s1", "q", nil); !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
		if len(h.msgs["s1"]) != 0 {
			t.Errorf("history saved on failure: %+v", h.msgs["s1"])
		}
	})

	t.Run("command error", func(t *testing.T) {
		llm := &fakeLLM{replies: []scriptedReply{{toolCalls: []domain.ToolCall{{ID: "c", Name: "get_services_metrics"}}}}}
		if _, err := New(llm, &fakeRunner{err: boom}, newMemoryHistory(), Config{}, nil).Ask(context.Background(), "s1", "q", nil); !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	})

	t.Run("token sink error", func(t *testing.T) {
		llm := &fakeLLM{replies: []scriptedReply{{tokens: []string{"a", "b"}}}}
		sink := func(string) error { return context.Canceled }
		_, err := New(llm, &fakeRunner{}, newMemoryHistory(), Config{}, nil).Ask(context.Background(), "s1", "q", sink)
		if !IsCanceled(err) {
			t.Errorf("err = %v, want canceled", err)
		}
	})

	t.Run("history error", func(t *testing.T) {
		h := newMemoryHistory()
		h.appendErr = boom
		llm := &fakeLLM{replies: []scriptedReply{{tokens: []string{"ok"}}}}
		answer, err := New(llm, &fakeRunner{}, h, Config{}, nil).Ask(context.Background(), "s1", "q", nil)
		if !errors.Is(err, boom) || answer != "ok" {
			t.Errorf("Ask = %q, %v; want ok, boom", answer, err)
		}
	})
}
