package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bronhq/bron/internal/brain"
	"github.com/bronhq/bron/internal/provider"
	"github.com/bronhq/bron/internal/store"
)

type askFunc func(ctx context.Context, agentID, systemPrompt string, history []provider.Message, userText string) (*brain.AgentResponse, error)

func (f askFunc) Ask(ctx context.Context, agentID, systemPrompt string, history []provider.Message, userText string) (*brain.AgentResponse, error) {
	return f(ctx, agentID, systemPrompt, history, userText)
}

type sinkRecorder struct {
	created []string
	changes []string
}

func (s *sinkRecorder) TaskCreated(_ context.Context, t *store.Task) {
	s.created = append(s.created, t.ID)
}

func (s *sinkRecorder) TaskStateChanged(_ context.Context, t *store.Task, from, to store.TaskState) {
	s.changes = append(s.changes, string(from)+">"+string(to))
}

type notifyRecorder struct {
	approvals []string
	blocks    []string
}

func (n *notifyRecorder) ApprovalRequested(_ context.Context, t *store.Task, r *store.UIRecipe) {
	n.approvals = append(n.approvals, r.ID)
}

func (n *notifyRecorder) RequestBlocked(_ context.Context, agentID, reason string) {
	n.blocks = append(n.blocks, reason)
}

func setup(t *testing.T, ask Asker) (*Orchestrator, *store.Store, *store.Agent, *sinkRecorder, *notifyRecorder) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	agent, err := s.CreateAgent("user-1", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	sink := &sinkRecorder{}
	notes := &notifyRecorder{}
	o := New(Options{Store: s, Brain: ask, Events: sink, Notify: notes})
	return o, s, agent, sink, notes
}

func respondWith(resp *brain.AgentResponse) askFunc {
	return func(context.Context, string, string, []provider.Message, string) (*brain.AgentResponse, error) {
		return resp, nil
	}
}

func TestProcessUserMessageCreatesTask(t *testing.T) {
	o, s, agent, sink, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent: brain.IntentRespond, Content: "On it.",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "Can you schedule a meeting with Dana?")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Task == nil {
		t.Fatal("no task created")
	}
	if res.Task.Title != "Schedule Meeting Dana" {
		t.Errorf("title = %q", res.Task.Title)
	}
	if res.Task.Category != store.CategoryAdmin {
		t.Errorf("category = %q", res.Task.Category)
	}
	if res.Task.State != store.TaskPlanned {
		t.Errorf("state = %q, a fresh task must leave draft", res.Task.State)
	}
	if res.Agent.Status != store.AgentWorking {
		t.Errorf("agent status = %q", res.Agent.Status)
	}
	if res.Message == nil || res.Message.Content != "On it." {
		t.Errorf("message = %+v", res.Message)
	}
	if res.Message.TaskStateUpdate != "planned" {
		t.Errorf("message state snapshot = %q", res.Message.TaskStateUpdate)
	}
	if len(sink.created) != 1 {
		t.Errorf("created events = %v", sink.created)
	}
	if len(sink.changes) != 1 || sink.changes[0] != "draft>planned" {
		t.Errorf("state events = %v", sink.changes)
	}

	msgs, _ := s.RecentMessages(agent.ID, 10)
	if len(msgs) != 2 || msgs[0].Role != store.RoleUser || msgs[1].Role != store.RoleAgent {
		t.Errorf("persisted history wrong: %+v", msgs)
	}
}

func TestProcessUserMessageReusesActiveTask(t *testing.T) {
	o, s, agent, _, _ := setup(t, respondWith(&brain.AgentResponse{Intent: brain.IntentRespond, Content: "ok"}))
	existing, _ := s.CreateTask(agent.ID, "Trip", "", store.CategoryPersonal)

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "make it first class")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Task.ID != existing.ID {
		t.Errorf("task = %s, want existing %s", res.Task.ID, existing.ID)
	}
}

func TestRequestInfoRaisesRecipe(t *testing.T) {
	o, s, agent, sink, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent:  brain.IntentRequestInfo,
		Content: "A few details first.",
		UI: &brain.UIRequest{
			Kind: store.RecipeForm, Title: "Trip details",
			Fields: []map[string]any{{"name": "destination"}},
		},
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "plan a holiday")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Task.State != store.TaskNeedsInfo {
		t.Errorf("task state = %q", res.Task.State)
	}
	if res.Agent.Status != store.AgentNeedsInfo {
		t.Errorf("agent status = %q", res.Agent.Status)
	}
	if res.Recipe == nil || res.Recipe.Kind != store.RecipeForm {
		t.Fatalf("recipe = %+v", res.Recipe)
	}
	if res.Recipe.TaskID != res.Task.ID || res.Recipe.MessageID != res.Message.ID {
		t.Errorf("recipe links wrong: %+v", res.Recipe)
	}
	if !strings.Contains(res.Recipe.Fields, "destination") {
		t.Errorf("fields = %q", res.Recipe.Fields)
	}
	if res.Task.WaitingOn != "Trip details" {
		t.Errorf("waiting_on = %q", res.Task.WaitingOn)
	}
	if len(sink.changes) != 1 || sink.changes[0] != "draft>needs_info" {
		t.Errorf("state events = %v", sink.changes)
	}

	got, _ := s.GetRecipe(res.Recipe.ID)
	if got.IsSubmitted {
		t.Error("recipe should start unsubmitted")
	}
}

func TestCompleteFinishesTask(t *testing.T) {
	o, s, agent, sink, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent: brain.IntentComplete, Content: "All booked for June 12.",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "book the usual hotel")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Task.State != store.TaskDone {
		t.Errorf("state = %q", res.Task.State)
	}
	if res.Agent.Status != store.AgentIdle {
		t.Errorf("agent status = %q", res.Agent.Status)
	}
	// Even a one-turn task never jumps straight from draft to done.
	if len(sink.changes) != 2 || sink.changes[0] != "draft>planned" || sink.changes[1] != "planned>done" {
		t.Errorf("state events = %v", sink.changes)
	}
	got, _ := s.GetTask(res.Task.ID)
	if got.Result != "All booked for June 12." || got.CompletedAt == nil {
		t.Errorf("task = %+v", got)
	}
	if got.Progress != 1.0 {
		t.Errorf("progress = %v, want 1.0", got.Progress)
	}

	// Terminal task stays terminal; a new turn starts a fresh task.
	res2, err := o.ProcessUserMessage(context.Background(), agent.ID, "now order dinner")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if res2.Task.ID == res.Task.ID {
		t.Error("terminal task was reused")
	}
}

func TestBrainErrorLeavesStateUntouched(t *testing.T) {
	o, s, agent, sink, _ := setup(t, askFunc(func(context.Context, string, string, []provider.Message, string) (*brain.AgentResponse, error) {
		return nil, errors.New("provider down")
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "find a flight")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	// A failed model turn apologizes in chat and changes nothing else.
	if res.Message == nil ||
		!strings.Contains(res.Message.Content, "I encountered an issue") ||
		!strings.Contains(res.Message.Content, "Please try again.") {
		t.Fatalf("message = %+v", res.Message)
	}
	got, _ := s.GetTask(res.Task.ID)
	if got.State != store.TaskDraft {
		t.Errorf("state = %q, want draft untouched", got.State)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error recorded on task: %q", got.ErrorMessage)
	}
	a, _ := s.GetAgent(agent.ID)
	if a.Status != store.AgentWorking {
		t.Errorf("agent status = %q, want working untouched", a.Status)
	}
	if len(sink.changes) != 0 {
		t.Errorf("state events = %v, want none", sink.changes)
	}

	// The task is still live; the next turn picks it up again.
	res2, err := o.ProcessUserMessage(context.Background(), agent.ID, "try again please")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if res2.Task.ID != res.Task.ID {
		t.Error("live task abandoned after model failure")
	}
}

func TestBlockedRequestRefusedWithoutBrainCall(t *testing.T) {
	called := false
	o, _, agent, _, notes := setup(t, askFunc(func(context.Context, string, string, []provider.Message, string) (*brain.AgentResponse, error) {
		called = true
		return &brain.AgentResponse{Intent: brain.IntentRespond}, nil
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "drop database production")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if called {
		t.Error("brain called on blocked request")
	}
	if res.Agent.Status != store.AgentIdle {
		t.Errorf("agent status = %q", res.Agent.Status)
	}
	if res.Message == nil || !strings.Contains(res.Message.Content, "can't help") {
		t.Errorf("message = %+v", res.Message)
	}
	if len(notes.blocks) != 1 {
		t.Errorf("block notifications = %v", notes.blocks)
	}
}

func TestSafetyOverrideHoldsExecute(t *testing.T) {
	o, _, agent, _, notes := setup(t, respondWith(&brain.AgentResponse{
		Intent: brain.IntentExecute, Content: "Sending it now.",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "send email to the whole team about the outage")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Task.State != store.TaskNeedsInfo {
		t.Errorf("state = %q, execute must be held", res.Task.State)
	}
	if res.Recipe == nil || res.Recipe.Kind != store.RecipeApproval {
		t.Fatalf("recipe = %+v, want approval", res.Recipe)
	}
	if len(notes.approvals) != 1 {
		t.Errorf("approval notifications = %v", notes.approvals)
	}
}

func TestSafetyOverrideAssessesReplyText(t *testing.T) {
	// The user's request is harmless; the danger is in what the agent
	// intends to do. The reply must be gated on its own content.
	o, _, agent, _, notes := setup(t, respondWith(&brain.AgentResponse{
		Intent:  brain.IntentExecute,
		Content: "I'll delete your draft and send the email.",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "tidy my inbox please")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Task.State != store.TaskNeedsInfo {
		t.Errorf("state = %q, execute must be held", res.Task.State)
	}
	if res.Recipe == nil || res.Recipe.Kind != store.RecipeApproval {
		t.Fatalf("recipe = %+v, want approval", res.Recipe)
	}
	if res.Message == nil || !strings.Contains(res.Message.Content, "approval") {
		t.Errorf("message = %+v", res.Message)
	}
	if len(notes.approvals) != 1 {
		t.Errorf("approval notifications = %v", notes.approvals)
	}
}

func TestSubmissionReplyStillGated(t *testing.T) {
	o, s, agent, _, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent:  brain.IntentExecute,
		Content: "I'll delete your draft and send the email.",
	}))

	task, _ := s.CreateTask(agent.ID, "Inbox", "", store.CategoryAdmin)
	if err := s.SetTaskState(task.ID, store.TaskNeedsInfo); err != nil {
		t.Fatal(err)
	}
	recipe, _ := s.CreateRecipe(&store.UIRecipe{TaskID: task.ID, Kind: store.RecipeForm, Title: "Which drafts"})

	res, err := o.HandleRecipeSubmission(context.Background(), recipe.ID, map[string]any{"drafts": "all of them"})
	if err != nil {
		t.Fatalf("HandleRecipeSubmission: %v", err)
	}
	if res.Task.State != store.TaskNeedsInfo {
		t.Errorf("state = %q, execute after submission must be held", res.Task.State)
	}
	if res.Recipe == nil || res.Recipe.Kind != store.RecipeApproval {
		t.Fatalf("recipe = %+v, want approval", res.Recipe)
	}
}

func TestExecuteIntentMarksReady(t *testing.T) {
	o, _, agent, sink, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent: brain.IntentExecute, Content: "Proceeding with the plan.",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "go ahead with it")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Task.State != store.TaskReady {
		t.Errorf("state = %q", res.Task.State)
	}
	if res.Agent.Status != store.AgentReady {
		t.Errorf("agent status = %q", res.Agent.Status)
	}
	if len(sink.changes) != 2 || sink.changes[0] != "draft>planned" || sink.changes[1] != "planned>ready" {
		t.Errorf("state events = %v", sink.changes)
	}
}

func TestTaskUpdateDeltaApplied(t *testing.T) {
	progress := 0.4
	o, s, agent, sink, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent:  brain.IntentRespond,
		Content: "Halfway through the comparisons.",
		TaskUpdate: &brain.TaskUpdate{
			NewState:   string(store.TaskExecuting),
			Progress:   &progress,
			NextAction: "compare the last two fares",
		},
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "how is the flight search going")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	got, _ := s.GetTask(res.Task.ID)
	if got.State != store.TaskExecuting {
		t.Errorf("state = %q", got.State)
	}
	if got.Progress != 0.4 {
		t.Errorf("progress = %v", got.Progress)
	}
	if got.NextAction != "compare the last two fares" {
		t.Errorf("next_action = %q", got.NextAction)
	}
	if len(sink.changes) != 1 || sink.changes[0] != "draft>executing" {
		t.Errorf("state events = %v", sink.changes)
	}
	if res.Message.TaskStateUpdate != "executing" {
		t.Errorf("message state snapshot = %q", res.Message.TaskStateUpdate)
	}
}

func TestTaskUpdateIgnoresUnknownState(t *testing.T) {
	o, s, agent, _, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent:     brain.IntentRespond,
		Content:    "Noted.",
		TaskUpdate: &brain.TaskUpdate{NewState: "paused"},
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "remember this for later")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	got, _ := s.GetTask(res.Task.ID)
	if got.State != store.TaskPlanned {
		t.Errorf("state = %q, unknown delta state must not stick", got.State)
	}
}

func TestHistoryPassedToModelIsCapped(t *testing.T) {
	var got int
	ask := askFunc(func(_ context.Context, _, _ string, history []provider.Message, _ string) (*brain.AgentResponse, error) {
		got = len(history)
		return &brain.AgentResponse{Intent: brain.IntentRespond, Content: "noted"}, nil
	})
	o, s, agent, _, _ := setup(t, ask)

	for i := 0; i < 25; i++ {
		if _, err := s.AppendMessage(agent.ID, "", store.RoleUser, "earlier message", ""); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	if _, err := o.ProcessUserMessage(context.Background(), agent.ID, "read my latest emails"); err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if got != 10 {
		t.Errorf("model saw %d history messages, want 10", got)
	}
}

func TestRequestAuthToolResolvesComponent(t *testing.T) {
	o, _, agent, _, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent:   brain.IntentRequestInfo,
		Tool:     brain.ToolRequestAuth,
		Provider: "gmail",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "check my inbox")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Recipe == nil || res.Recipe.Kind != "auth_google" {
		t.Fatalf("recipe = %+v, want auth_google", res.Recipe)
	}
	if !strings.Contains(res.Recipe.Title, "Gmail") {
		t.Errorf("title = %q", res.Recipe.Title)
	}
}

func TestSearchAPIToolAppendsNote(t *testing.T) {
	o, _, agent, _, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent:  brain.IntentRespond,
		Tool:    brain.ToolSearchAPI,
		Query:   "send an email",
		Content: "Let me find the right service.",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "message dana for me")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	// A catalog search resolves into a textual note, never a recipe.
	if res.Recipe != nil {
		t.Fatalf("recipe = %+v, want none", res.Recipe)
	}
	if res.Message == nil || !strings.Contains(res.Message.Content, "I can use Gmail API for this.") {
		t.Errorf("message = %+v", res.Message)
	}
}

func TestSearchAPIToolNoMatch(t *testing.T) {
	o, _, agent, _, _ := setup(t, respondWith(&brain.AgentResponse{
		Intent: brain.IntentRespond,
		Tool:   brain.ToolSearchAPI,
		Query:  "fold my laundry",
	}))

	res, err := o.ProcessUserMessage(context.Background(), agent.ID, "help with my chores")
	if err != nil {
		t.Fatalf("ProcessUserMessage: %v", err)
	}
	if res.Recipe != nil {
		t.Fatalf("recipe = %+v, want none", res.Recipe)
	}
	if res.Message == nil || !strings.Contains(res.Message.Content, "couldn't find a service") {
		t.Errorf("message = %+v", res.Message)
	}
}

func TestHandleRecipeSubmissionResumes(t *testing.T) {
	var lastUserText string
	o, s, agent, sink, _ := setup(t, askFunc(func(_ context.Context, _, _ string, _ []provider.Message, userText string) (*brain.AgentResponse, error) {
		lastUserText = userText
		return &brain.AgentResponse{Intent: brain.IntentExecute, Content: "Booking now."}, nil
	}))

	task, _ := s.CreateTask(agent.ID, "Trip", "", store.CategoryPersonal)
	if err := s.SetTaskState(task.ID, store.TaskNeedsInfo); err != nil {
		t.Fatal(err)
	}
	recipe, _ := s.CreateRecipe(&store.UIRecipe{TaskID: task.ID, Kind: store.RecipeForm, Title: "Dates"})

	res, err := o.HandleRecipeSubmission(context.Background(), recipe.ID, map[string]any{"dates": "june"})
	if err != nil {
		t.Fatalf("HandleRecipeSubmission: %v", err)
	}
	// The continuation carries all merged data plus marching orders.
	if !strings.Contains(lastUserText, `"dates":"june"`) {
		t.Errorf("continuation = %q", lastUserText)
	}
	if !strings.Contains(lastUserText, "Do NOT ask for information that has already been provided") {
		t.Errorf("continuation = %q", lastUserText)
	}
	if res.Task.State != store.TaskReady {
		t.Errorf("state = %q", res.Task.State)
	}
	if res.Agent.Status != store.AgentReady {
		t.Errorf("agent status = %q", res.Agent.Status)
	}

	got, _ := s.GetTask(task.ID)
	var inputs map[string]any
	if err := json.Unmarshal([]byte(got.CollectedInputs), &inputs); err != nil {
		t.Fatalf("inputs not json: %q", got.CollectedInputs)
	}
	if inputs["dates"] != "june" {
		t.Errorf("inputs = %v", inputs)
	}
	if got.WaitingOn != "" {
		t.Errorf("waiting_on = %q after submission", got.WaitingOn)
	}

	// needs_info -> planned -> ready
	if len(sink.changes) != 2 || sink.changes[0] != "needs_info>planned" || sink.changes[1] != "planned>ready" {
		t.Errorf("state events = %v", sink.changes)
	}

	if _, err := o.HandleRecipeSubmission(context.Background(), recipe.ID, map[string]any{"dates": "july"}); !errors.Is(err, store.ErrAlreadySubmitted) {
		t.Errorf("resubmit err = %v", err)
	}
}

func TestGenerateTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Can you book a flight to Rome?", "Book Flight Rome"},
		{"can you please book a flight to rome", "Book Flight Rome"},
		{"I need to study for my exam", "Study Exam"},
		{"please help me", "Me"}, // fillers strip in sequence, skip-word fallback keeps the rest
		{"the a of", "The A Of"}, // all skip words: fall back to first words
		{"", "New Task"},
	}
	for _, tc := range cases {
		if got := GenerateTitle(tc.in); got != tc.want {
			t.Errorf("GenerateTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDetectCategory(t *testing.T) {
	cases := map[string]store.TaskCategory{
		"check my email":                 store.CategoryAdmin,
		"design a poster":                store.CategoryCreative,
		"study for the chemistry exam":   store.CategorySchool,
		"finish the quarterly report":    store.CategoryWork,
		"water the plants":               store.CategoryPersonal,
		"schedule a dentist appointment": store.CategoryAdmin,
	}
	for in, want := range cases {
		if got := DetectCategory(in); got != want {
			t.Errorf("DetectCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
