// Package orchestrator routes every user turn through the safety gate,
// the brain, and the task state machine, persisting the conversation and
// raising UI recipes when the agent needs structured input.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bronhq/bron/internal/brain"
	"github.com/bronhq/bron/internal/discovery"
	"github.com/bronhq/bron/internal/provider"
	"github.com/bronhq/bron/internal/safety"
	"github.com/bronhq/bron/internal/store"
)

// Asker is the brain surface the orchestrator needs.
type Asker interface {
	Ask(ctx context.Context, agentID, systemPrompt string, history []provider.Message, userText string) (*brain.AgentResponse, error)
}

// EventSink receives task lifecycle events. Implementations must not
// block the turn.
type EventSink interface {
	TaskCreated(ctx context.Context, task *store.Task)
	TaskStateChanged(ctx context.Context, task *store.Task, from, to store.TaskState)
}

// Notifier tells operators about approvals and blocks. Optional.
type Notifier interface {
	ApprovalRequested(ctx context.Context, task *store.Task, recipe *store.UIRecipe)
	RequestBlocked(ctx context.Context, agentID, reason string)
}

// Options wires an Orchestrator.
type Options struct {
	Store        *store.Store
	Brain        Asker
	Events       EventSink // optional
	Notify       Notifier  // optional
	HistoryLimit int
	Logger       *slog.Logger
}

// Orchestrator coordinates one agent turn end to end.
type Orchestrator struct {
	store        *store.Store
	brain        Asker
	events       EventSink
	notify       Notifier
	historyLimit int
	log          *slog.Logger
}

// TurnResult is what one processed turn produced.
type TurnResult struct {
	Agent      *store.Agent       `json:"agent"`
	Task       *store.Task        `json:"task"`
	Message    *store.ChatMessage `json:"message,omitempty"`
	Recipe     *store.UIRecipe    `json:"recipe,omitempty"`
	Assessment *safety.Assessment `json:"-"`
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		store:        opts.Store,
		brain:        opts.Brain,
		events:       opts.Events,
		notify:       opts.Notify,
		historyLimit: opts.HistoryLimit,
		log:          opts.Logger,
	}
}

// ProcessUserMessage runs one user turn: persist the message, ensure an
// active task, gate it, ask the brain, and apply the response.
func (o *Orchestrator) ProcessUserMessage(ctx context.Context, agentID, text string) (*TurnResult, error) {
	agent, err := o.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	history, err := o.loadHistory(agentID)
	if err != nil {
		return nil, err
	}

	task, err := o.store.ActiveTask(agentID)
	if err != nil {
		return nil, err
	}
	newTask := false
	if task == nil {
		task, err = o.store.CreateTask(agentID, GenerateTitle(text), text, DetectCategory(text))
		if err != nil {
			return nil, err
		}
		newTask = true
		o.log.Info("created task", "task_id", task.ID, "title", task.Title, "category", task.Category)
		if o.events != nil {
			o.events.TaskCreated(ctx, task)
		}
	}

	if _, err := o.store.AppendMessage(agentID, task.ID, store.RoleUser, text, ""); err != nil {
		return nil, err
	}
	if err := o.store.SetAgentStatus(agentID, store.AgentWorking); err != nil {
		return nil, err
	}
	agent.Status = store.AgentWorking

	assessment := safety.Assess(text)
	if assessment.Blocked() {
		return o.refuse(ctx, agent, task, assessment)
	}

	resp, err := o.brain.Ask(ctx, agentID, o.systemPrompt(agent), history, text)
	if err != nil {
		return o.errorReply(agent, task, err)
	}
	return o.handleResponse(ctx, agent, task, resp, assessment, newTask)
}

// HandleRecipeSubmission applies submitted recipe data and resumes the
// task turn. Resubmission returns store.ErrAlreadySubmitted.
func (o *Orchestrator) HandleRecipeSubmission(ctx context.Context, recipeID string, data map[string]any) (*TurnResult, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	recipe, err := o.store.SubmitRecipe(recipeID, string(dataJSON))
	if err != nil {
		return nil, err
	}

	taskID := recipe.TaskID
	if taskID == "" {
		msg, err := o.store.GetMessage(recipe.MessageID)
		if err != nil {
			return nil, fmt.Errorf("recipe %s has no resolvable owner: %w", recipeID, err)
		}
		taskID = msg.TaskID
	}
	if taskID == "" {
		return nil, fmt.Errorf("recipe %s resolves to no task", recipeID)
	}
	task, err := o.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	agent, err := o.store.GetAgent(task.AgentID)
	if err != nil {
		return nil, err
	}

	merged, err := o.store.MergedSubmissions(task.ID)
	if err != nil {
		return nil, err
	}
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal inputs: %w", err)
	}
	if err := o.store.SetCollectedInputs(task.ID, string(mergedJSON)); err != nil {
		return nil, err
	}
	task.CollectedInputs = string(mergedJSON)

	if task.State == store.TaskNeedsInfo {
		if err := o.setTaskState(ctx, task, store.TaskPlanned); err != nil {
			return nil, err
		}
		if err := o.store.SetTaskWaitingOn(task.ID, ""); err != nil {
			return nil, err
		}
		task.WaitingOn = ""
	}
	if err := o.store.SetAgentStatus(agent.ID, store.AgentWorking); err != nil {
		return nil, err
	}
	agent.Status = store.AgentWorking

	history, err := o.loadHistory(agent.ID)
	if err != nil {
		return nil, err
	}
	continuation := continuationPrompt(string(mergedJSON))
	if _, err := o.store.AppendMessage(agent.ID, task.ID, store.RoleSystem, continuation, ""); err != nil {
		return nil, err
	}

	resp, err := o.brain.Ask(ctx, agent.ID, o.systemPrompt(agent), history, continuation)
	if err != nil {
		return o.errorReply(agent, task, err)
	}
	// Submitted data is structured, not a new request; the reply itself is
	// still gated inside handleResponse.
	return o.handleResponse(ctx, agent, task, resp, nil, false)
}

// continuationPrompt resumes a task with everything collected so far. The
// model may proceed or ask for whatever is still missing, but never for
// anything already supplied.
func continuationPrompt(mergedJSON string) string {
	return "User has provided the following information for their task:\n\n" +
		mergedJSON +
		"\n\nBased on this information, either:\n" +
		"1. If you have enough info to proceed, provide a helpful response or plan (do NOT ask for more info)\n" +
		"2. If critical information is still missing that prevents you from helping, ask for ONLY the missing essentials\n\n" +
		"Do NOT ask for information that has already been provided above."
}

// HandleAgentResponse applies a decoded agent response to an agent and
// task by ID. Exposed for out-of-band turns.
func (o *Orchestrator) HandleAgentResponse(ctx context.Context, agentID, taskID string, resp *brain.AgentResponse, assessment *safety.Assessment) (*TurnResult, error) {
	agent, err := o.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	task, err := o.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	return o.handleResponse(ctx, agent, task, resp, assessment, false)
}

func (o *Orchestrator) handleResponse(ctx context.Context, agent *store.Agent, task *store.Task, resp *brain.AgentResponse, assessment *safety.Assessment, newTask bool) (*TurnResult, error) {
	resp = o.applySafetyOverride(task, resp, assessment)

	raw := resp.Content
	if resp.Tool == brain.ToolSearchAPI {
		raw = appendSearchNote(raw, resp.Query)
	}
	content := safety.Redact(raw)
	result := &TurnResult{Agent: agent, Task: task, Assessment: assessment}

	var ui *brain.UIRequest
	if resp.Intent == brain.IntentRequestInfo {
		ui = o.resolveUIRequest(resp)
		if content == "" && ui != nil {
			content = ui.Title
		}
	}

	// The model's task delta applies first; the intent transition below
	// then wins any conflict.
	if err := o.applyTaskUpdate(ctx, task, resp.TaskUpdate); err != nil {
		return nil, err
	}

	// A task born this turn never stays in draft: it advances to
	// needs_info when input was requested, planned otherwise.
	if newTask && task.State == store.TaskDraft {
		next := store.TaskPlanned
		if ui != nil {
			next = store.TaskNeedsInfo
		}
		if err := o.setTaskState(ctx, task, next); err != nil {
			return nil, err
		}
	}

	switch resp.Intent {
	case brain.IntentRequestInfo:
		if err := o.transition(ctx, agent, store.AgentNeedsInfo, task, store.TaskNeedsInfo); err != nil {
			return nil, err
		}
		if ui != nil {
			if err := o.store.SetTaskWaitingOn(task.ID, ui.Title); err != nil {
				return nil, err
			}
			task.WaitingOn = ui.Title
		}
	case brain.IntentExecute:
		if err := o.transition(ctx, agent, store.AgentReady, task, store.TaskReady); err != nil {
			return nil, err
		}
	case brain.IntentComplete:
		if content != "" {
			if err := o.store.SetTaskResult(task.ID, content); err != nil {
				return nil, err
			}
			task.Result = content
		}
		if err := o.store.SetTaskProgress(task.ID, 1.0); err != nil {
			return nil, err
		}
		task.Progress = 1.0
		if task.State == store.TaskDraft {
			// Finishing straight from draft is not a legal jump.
			if err := o.setTaskState(ctx, task, store.TaskPlanned); err != nil {
				return nil, err
			}
		}
		if err := o.transition(ctx, agent, store.AgentIdle, task, store.TaskDone); err != nil {
			return nil, err
		}
	case brain.IntentError:
		if err := o.store.SetTaskError(task.ID, content); err != nil {
			return nil, err
		}
		task.ErrorMessage = content
		if err := o.setTaskState(ctx, task, store.TaskFailed); err != nil {
			return nil, err
		}
	default:
		// respond and update_task drive no transition of their own; the
		// task moves only through the delta above.
	}

	if content != "" {
		msg, err := o.store.AppendMessage(agent.ID, task.ID, store.RoleAgent, content, string(task.State))
		if err != nil {
			return nil, err
		}
		result.Message = msg
	}

	if ui != nil {
		fieldsJSON := "[]"
		if len(ui.Fields) > 0 {
			if b, err := json.Marshal(ui.Fields); err == nil {
				fieldsJSON = string(b)
			}
		}
		recipe := &store.UIRecipe{
			TaskID:      task.ID,
			Kind:        ui.Kind,
			Title:       ui.Title,
			Description: ui.Description,
			Fields:      fieldsJSON,
		}
		if result.Message != nil {
			recipe.MessageID = result.Message.ID
		}
		recipe, err := o.store.CreateRecipe(recipe)
		if err != nil {
			return nil, err
		}
		result.Recipe = recipe
		if recipe.Kind == store.RecipeApproval && o.notify != nil {
			o.notify.ApprovalRequested(ctx, task, recipe)
		}
	}

	return result, nil
}

// applySafetyOverride downgrades an execute intent when the gate demands
// confirmation: the action must wait for an explicit approval recipe.
// Both the user's request and the agent's own reply are assessed; the
// stricter verdict wins, so a benign request cannot smuggle a dangerous
// action through the reply.
func (o *Orchestrator) applySafetyOverride(task *store.Task, resp *brain.AgentResponse, assessment *safety.Assessment) *brain.AgentResponse {
	if resp.Intent != brain.IntentExecute {
		return resp
	}
	effective := safety.Stricter(assessment, safety.Assess(resp.Content))
	if effective == nil || !effective.RequiresConfirmation {
		return resp
	}
	if effective.Blocked() {
		return &brain.AgentResponse{
			Intent:  brain.IntentError,
			Content: "this action is not allowed: " + strings.Join(effective.Reasons, "; "),
		}
	}
	if resp.UI != nil && (resp.UI.Kind == store.RecipeApproval || resp.UI.Kind == store.RecipeConfirmation) {
		// Already waiting on an explicit go-ahead.
		return resp
	}
	kind := store.RecipeConfirmation
	if effective.Confirmation == safety.ConfirmApproval {
		kind = store.RecipeApproval
	}
	o.log.Info("execute intent held for confirmation",
		"task_id", task.ID, "risk", effective.Level.String(), "category", string(effective.Category), "kind", kind)
	return &brain.AgentResponse{
		Intent:  brain.IntentRequestInfo,
		Content: "This action needs your explicit approval before I run it: " + resp.Content,
		UI: &brain.UIRequest{
			Kind:        kind,
			Title:       "Approve: " + task.Title,
			Description: "This action needs your explicit go-ahead before I run it.",
		},
	}
}

// applyTaskUpdate applies the model's optional task delta field by field.
func (o *Orchestrator) applyTaskUpdate(ctx context.Context, task *store.Task, update *brain.TaskUpdate) error {
	if update == nil {
		return nil
	}
	if update.NewState != "" {
		next := store.TaskState(update.NewState)
		if !next.Valid() {
			o.log.Warn("ignoring unknown task state from model", "task_id", task.ID, "state", update.NewState)
		} else if err := o.setTaskState(ctx, task, next); err != nil {
			return err
		}
	}
	if update.Progress != nil {
		if err := o.store.SetTaskProgress(task.ID, *update.Progress); err != nil {
			return err
		}
		task.Progress = *update.Progress
	}
	if update.NextAction != "" {
		if err := o.store.SetTaskNextAction(task.ID, update.NextAction); err != nil {
			return err
		}
		task.NextAction = update.NextAction
	}
	if update.WaitingOn != "" {
		if err := o.store.SetTaskWaitingOn(task.ID, update.WaitingOn); err != nil {
			return err
		}
		task.WaitingOn = update.WaitingOn
	}
	return nil
}

// appendSearchNote resolves a catalog search into a short textual note
// naming the chosen provider. The search never raises UI on its own.
func appendSearchNote(content, query string) string {
	api, ok := discovery.BestMatch(query)
	note := "I couldn't find a service for that."
	if ok {
		note = "I can use " + api.Name + " for this."
	}
	if content == "" {
		return note
	}
	return content + "\n\n" + note
}

// resolveUIRequest turns tool-driven responses into concrete UI requests.
func (o *Orchestrator) resolveUIRequest(resp *brain.AgentResponse) *brain.UIRequest {
	if resp.Tool == brain.ToolRequestAuth {
		api, ok := discovery.Info(resp.Provider)
		if !ok {
			api = discovery.APIInfo{Name: resp.Provider, AuthType: "none"}
		}
		return &brain.UIRequest{
			Kind:        discovery.AuthComponent(api),
			Title:       "Connect " + api.Name,
			Description: "I need access to " + api.Name + " to continue.",
		}
	}
	return resp.UI
}

// refuse stops a blocked turn: refusal message, operator notice, agent
// back to idle. The task stays where it was.
func (o *Orchestrator) refuse(ctx context.Context, agent *store.Agent, task *store.Task, assessment *safety.Assessment) (*TurnResult, error) {
	reason := strings.Join(assessment.Reasons, "; ")
	o.log.Warn("request blocked", "agent_id", agent.ID, "task_id", task.ID, "reason", reason)

	msg, err := o.store.AppendMessage(agent.ID, task.ID, store.RoleAgent,
		"I can't help with that request.", string(task.State))
	if err != nil {
		return nil, err
	}
	if err := o.store.SetAgentStatus(agent.ID, store.AgentIdle); err != nil {
		return nil, err
	}
	agent.Status = store.AgentIdle
	if o.notify != nil {
		o.notify.RequestBlocked(ctx, agent.ID, reason)
	}
	return &TurnResult{Agent: agent, Task: task, Message: msg, Assessment: assessment}, nil
}

// transition moves agent status and task state together.
func (o *Orchestrator) transition(ctx context.Context, agent *store.Agent, status store.AgentStatus, task *store.Task, state store.TaskState) error {
	if err := o.store.SetAgentStatus(agent.ID, status); err != nil {
		return err
	}
	agent.Status = status
	return o.setTaskState(ctx, task, state)
}

func (o *Orchestrator) setTaskState(ctx context.Context, task *store.Task, state store.TaskState) error {
	if task.State == state {
		return nil
	}
	from := task.State
	if err := o.store.SetTaskState(task.ID, state); err != nil {
		return err
	}
	task.State = state
	o.log.Info("task state changed", "task_id", task.ID, "from", from, "to", state)
	if o.events != nil {
		o.events.TaskStateChanged(ctx, task, from, state)
	}
	return nil
}

func (o *Orchestrator) loadHistory(agentID string) ([]provider.Message, error) {
	msgs, err := o.store.RecentMessages(agentID, o.historyLimit)
	if err != nil {
		return nil, err
	}
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		switch m.Role {
		case store.RoleAgent:
			role = "assistant"
		case store.RoleSystem:
			role = "system"
		}
		out = append(out, provider.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

func (o *Orchestrator) systemPrompt(agent *store.Agent) string {
	var b strings.Builder
	b.WriteString("You are " + agent.Name + ", a personal assistant that drives tasks to completion.\n")
	b.WriteString("Use the provided tools to ask for structured input, request account access, or find APIs.\n")
	b.WriteString("Be concise. State clearly when a task is done.")
	if agent.Personality != "" {
		b.WriteString("\nPersonality: " + agent.Personality)
	}
	return b.String()
}

// errorReply handles a failed model turn: log it, apologize in chat, and
// leave the agent and task exactly where they were.
func (o *Orchestrator) errorReply(agent *store.Agent, task *store.Task, cause error) (*TurnResult, error) {
	o.log.Error("brain turn failed", "agent_id", agent.ID, "task_id", task.ID, "error", cause)
	content := fmt.Sprintf("I encountered an issue: %v. Please try again.", cause)
	msg, err := o.store.AppendMessage(agent.ID, task.ID, store.RoleAgent, content, string(task.State))
	if err != nil {
		return nil, err
	}
	return &TurnResult{Agent: agent, Task: task, Message: msg}, nil
}
