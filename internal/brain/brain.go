// Package brain drives LLM turns for agents: session bookkeeping, a hard
// call timeout with a stateless fallback path, and decoding of model
// output into structured agent responses.
package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bronhq/bron/internal/provider"
)

// Intent classifies what the agent wants to happen after a turn.
type Intent string

const (
	IntentRespond     Intent = "respond"
	IntentRequestInfo Intent = "request_info"
	IntentUpdateTask  Intent = "update_task"
	IntentExecute     Intent = "execute"
	IntentComplete    Intent = "complete"
	IntentError       Intent = "error"
)

// UIRequest is the agent's ask for structured client input. It becomes a
// UI recipe when the orchestrator persists it.
type UIRequest struct {
	Kind        string           `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Fields      []map[string]any `json:"fields,omitempty"`
}

// TaskUpdate is the model's optional delta against the current task.
// Every field is optional; Progress is a pointer so an explicit zero can
// be told apart from absence.
type TaskUpdate struct {
	NewState   string   `json:"new_state,omitempty"`
	Progress   *float64 `json:"progress,omitempty"`
	NextAction string   `json:"next_action,omitempty"`
	WaitingOn  string   `json:"waiting_on,omitempty"`
}

// AgentResponse is one decoded model turn.
type AgentResponse struct {
	Intent     Intent      `json:"intent"`
	Content    string      `json:"content"`
	UI         *UIRequest  `json:"ui,omitempty"`
	TaskUpdate *TaskUpdate `json:"task_update,omitempty"`
	Tool       string      `json:"tool,omitempty"`
	Provider   string      `json:"provider,omitempty"` // set by request_auth
	Query      string      `json:"query,omitempty"`    // set by search_api
}

// Options tunes the manager. Zero values get sensible defaults.
type Options struct {
	Provider       provider.LLMProvider
	SessionTimeout time.Duration // hard cap on the structured call; must be below the request budget
	MaxRetries     int           // fallback retries on transient failures
	BackoffBase    time.Duration // first retry delay, doubled per attempt
	MaxTokens      int
	Logger         *slog.Logger
}

// Manager owns live sessions and runs turns against the provider.
type Manager struct {
	provider       provider.LLMProvider
	registry       *Registry
	sessionTimeout time.Duration
	maxRetries     int
	backoffBase    time.Duration
	maxTokens      int
	log            *slog.Logger
}

// NewManager creates a brain manager.
func NewManager(opts Options) *Manager {
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 45 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		provider:       opts.Provider,
		registry:       NewRegistry(),
		sessionTimeout: opts.SessionTimeout,
		maxRetries:     opts.MaxRetries,
		backoffBase:    opts.BackoffBase,
		maxTokens:      opts.MaxTokens,
		log:            opts.Logger,
	}
}

// Ask runs one turn for the agent. The structured call runs under the
// session timeout; on timeout or a transient provider failure it falls
// back to a stateless single-shot call with bounded retries.
func (m *Manager) Ask(ctx context.Context, agentID, systemPrompt string, history []provider.Message, userText string) (*AgentResponse, error) {
	sess := m.registry.Acquire(agentID)
	defer m.registry.Release(agentID)

	messages := make([]provider.Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, provider.Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, provider.Message{Role: "user", Content: userText})

	callCtx, cancel := context.WithTimeout(ctx, m.sessionTimeout)
	resp, err := m.provider.Chat(callCtx, &provider.ChatRequest{
		Messages:  messages,
		Tools:     toolDefinitions(),
		MaxTokens: m.maxTokens,
	})
	cancel()
	if err == nil {
		return m.decode(resp), nil
	}
	if !shouldFallback(err) {
		return nil, fmt.Errorf("session call: %w", err)
	}
	m.log.Warn("structured session call failed, falling back",
		"agent_id", agentID, "session_id", sess.ID, "error", err)

	return m.fallback(ctx, messages)
}

// fallback is the stateless path: a fresh single-shot call with the same
// tool vocabulary, bounded retries with exponential backoff on transient
// failures only.
func (m *Manager) fallback(ctx context.Context, messages []provider.Message) (*AgentResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			delay := m.backoffBase << (attempt - 1)
			m.log.Info("retrying fallback call", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		resp, err := m.provider.Chat(ctx, &provider.ChatRequest{
			Messages:  messages,
			Tools:     toolDefinitions(),
			MaxTokens: m.maxTokens,
		})
		if err == nil {
			return m.decode(resp), nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
	}
	return nil, fmt.Errorf("fallback call: %w", lastErr)
}

// decode turns a structured provider response into an agent response.
// Tool calls win over content; content alone goes through free-text
// parsing. A task_update block in the accompanying text is honored on
// either path.
func (m *Manager) decode(resp *provider.ChatResponse) *AgentResponse {
	for _, tc := range resp.ToolCalls {
		if out := decodeToolCall(tc); out != nil {
			_, update, rest := extractBlock(resp.Content)
			if out.TaskUpdate == nil {
				out.TaskUpdate = update
			}
			if out.Content == "" {
				out.Content = strings.TrimSpace(rest)
			}
			return out
		}
		m.log.Warn("unknown tool call from model", "tool", tc.Name)
	}
	return ParseFreeText(resp.Content)
}

// shouldFallback reports whether the structured call's failure warrants
// the stateless path: a timeout or a transient provider error.
func shouldFallback(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isTransient(err)
}

func isTransient(err error) bool {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
