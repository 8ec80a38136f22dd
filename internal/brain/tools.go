package brain

import (
	"github.com/bronhq/bron/internal/provider"
)

// Tool names the model may call. Anything else is ignored.
const (
	ToolRequestUserInput = "request_user_input"
	ToolRequestAuth      = "request_auth"
	ToolSearchAPI        = "search_api"
)

// toolDefinitions is the vocabulary offered on every structured call.
func toolDefinitions() []provider.ToolDefinition {
	return []provider.ToolDefinition{
		{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        ToolRequestUserInput,
				Description: "Ask the user for structured input via a UI component",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"kind":        map[string]any{"type": "string", "description": "component kind, e.g. form, picker, date_picker, confirmation"},
						"title":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"fields":      map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
					},
					"required": []string{"kind", "title"},
				},
			},
		},
		{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        ToolRequestAuth,
				Description: "Ask the user to connect an external provider account",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"provider": map[string]any{"type": "string", "description": "provider key, e.g. gmail, stripe"},
					},
					"required": []string{"provider"},
				},
			},
		},
		{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        ToolSearchAPI,
				Description: "Search the API catalog for a service that can perform the task",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{"type": "string"},
					},
					"required": []string{"query"},
				},
			},
		},
	}
}

// decodeToolCall maps a tool call onto an agent response, or nil when the
// tool is not in the vocabulary.
func decodeToolCall(tc provider.ToolCall) *AgentResponse {
	switch tc.Name {
	case ToolRequestUserInput:
		ui := &UIRequest{
			Kind:        argString(tc.Arguments, "kind"),
			Title:       argString(tc.Arguments, "title"),
			Description: argString(tc.Arguments, "description"),
		}
		if raw, ok := tc.Arguments["fields"].([]any); ok {
			for _, f := range raw {
				if m, ok := f.(map[string]any); ok {
					ui.Fields = append(ui.Fields, m)
				}
			}
		}
		return &AgentResponse{Intent: IntentRequestInfo, Tool: tc.Name, UI: ui}
	case ToolRequestAuth:
		return &AgentResponse{
			Intent:   IntentRequestInfo,
			Tool:     tc.Name,
			Provider: argString(tc.Arguments, "provider"),
		}
	case ToolSearchAPI:
		// A catalog search resolves server-side into a textual note; the
		// turn stays a plain response with no UI side effect.
		return &AgentResponse{
			Intent: IntentRespond,
			Tool:   tc.Name,
			Query:  argString(tc.Arguments, "query"),
		}
	}
	return nil
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
