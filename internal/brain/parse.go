package brain

import (
	"encoding/json"
	"regexp"
	"strings"
)

var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// ParseFreeText decodes a plain-text model reply. An embedded ```json
// block may carry a UI request, a task_update delta, or both; otherwise
// intent comes from keyword heuristics over the text.
func ParseFreeText(content string) *AgentResponse {
	ui, update, rest := extractBlock(content)
	if ui != nil {
		return &AgentResponse{
			Intent:     IntentRequestInfo,
			Content:    strings.TrimSpace(rest),
			UI:         ui,
			TaskUpdate: update,
		}
	}
	return &AgentResponse{
		Intent:     classifyIntent(content),
		Content:    strings.TrimSpace(rest),
		TaskUpdate: update,
	}
}

// extractBlock pulls the first fenced json object out of the text. The
// object is either a bare UI request or an envelope with ui and
// task_update members. Returns the text with the block removed.
func extractBlock(content string) (*UIRequest, *TaskUpdate, string) {
	m := jsonBlockRe.FindStringSubmatchIndex(content)
	if m == nil {
		return nil, nil, content
	}
	raw := content[m[2]:m[3]]
	var env struct {
		UIRequest
		UI         *UIRequest  `json:"ui"`
		TaskUpdate *TaskUpdate `json:"task_update"`
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, nil, content
	}
	ui := env.UI
	if ui == nil && env.Kind != "" {
		ui = &env.UIRequest
	}
	if ui != nil && ui.Kind == "" {
		ui = nil
	}
	if ui == nil && env.TaskUpdate == nil {
		return nil, nil, content
	}
	rest := content[:m[0]] + content[m[1]:]
	return ui, env.TaskUpdate, rest
}

// classifyIntent applies keyword heuristics to free text. Ordered from
// most to least specific; default is a plain response.
func classifyIntent(content string) Intent {
	lower := strings.ToLower(content)

	for _, kw := range []string{"task is done", "task is complete", "all done", "completed the task", "finished the task", "marking this done"} {
		if strings.Contains(lower, kw) {
			return IntentComplete
		}
	}
	for _, kw := range []string{"i'll execute", "i will execute", "executing now", "running the", "starting execution"} {
		if strings.Contains(lower, kw) {
			return IntentExecute
		}
	}
	for _, kw := range []string{"need more", "need a bit more", "could you tell me", "can you tell me", "which one", "what date", "when would", "let me know"} {
		if strings.Contains(lower, kw) {
			return IntentRequestInfo
		}
	}
	if strings.HasSuffix(strings.TrimSpace(lower), "?") {
		return IntentRequestInfo
	}
	for _, kw := range []string{"updated the plan", "i've planned", "here's the plan", "plan is ready"} {
		if strings.Contains(lower, kw) {
			return IntentUpdateTask
		}
	}
	return IntentRespond
}
