package store

import (
	"time"
)

// AgentStatus reflects what the agent is currently doing from the
// user's point of view.
type AgentStatus string

const (
	AgentIdle      AgentStatus = "idle"
	AgentWorking   AgentStatus = "working"
	AgentWaiting   AgentStatus = "waiting"
	AgentNeedsInfo AgentStatus = "needs_info"
	AgentReady     AgentStatus = "ready"
	AgentCompleted AgentStatus = "completed"
)

// TaskState is the task lifecycle state machine.
type TaskState string

const (
	TaskDraft     TaskState = "draft"
	TaskNeedsInfo TaskState = "needs_info"
	TaskPlanned   TaskState = "planned"
	TaskReady     TaskState = "ready"
	TaskExecuting TaskState = "executing"
	TaskWaiting   TaskState = "waiting"
	TaskDone      TaskState = "done"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether a task in this state can never change again.
func (s TaskState) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s TaskState) Valid() bool {
	switch s {
	case TaskDraft, TaskNeedsInfo, TaskPlanned, TaskReady, TaskExecuting, TaskWaiting, TaskDone, TaskFailed:
		return true
	}
	return false
}

// TaskCategory buckets tasks for the UI.
type TaskCategory string

const (
	CategoryAdmin    TaskCategory = "admin"
	CategoryCreative TaskCategory = "creative"
	CategorySchool   TaskCategory = "school"
	CategoryWork     TaskCategory = "work"
	CategoryPersonal TaskCategory = "personal"
)

// StepStatus tracks progress of an individual plan step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// MessageRole identifies who authored a chat message.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// CredentialType identifies how a stored credential authenticates.
type CredentialType string

const (
	CredOAuthToken  CredentialType = "oauth_token"
	CredAPIKey      CredentialType = "api_key"
	CredCredentials CredentialType = "credentials"
	CredBearerToken CredentialType = "bearer_token"
	CredCookie      CredentialType = "cookie"
)

// Recipe component kinds the client knows how to render.
const (
	RecipeForm             = "form"
	RecipePicker           = "picker"
	RecipeMultiSelect      = "multi_select"
	RecipeDatePicker       = "date_picker"
	RecipeConfirmation     = "confirmation"
	RecipeApproval         = "approval"
	RecipeAuthGoogle       = "auth_google"
	RecipeAuthApple        = "auth_apple"
	RecipeAuthOAuth        = "auth_oauth"
	RecipeAPIKeyInput      = "api_key_input"
	RecipeCredentialsInput = "credentials_input"
	RecipeExecute          = "execute"
	RecipeEmailPreview     = "email_preview"
	RecipeInfo             = "info"
)

// Agent is the per-user assistant persona.
type Agent struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	Status      AgentStatus `json:"status"`
	Personality string      `json:"personality,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Task is a unit of work the agent is driving for the user.
type Task struct {
	ID              string       `json:"id"`
	AgentID         string       `json:"agent_id"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Category        TaskCategory `json:"category"`
	State           TaskState    `json:"state"`
	Priority        int          `json:"priority"`
	Progress        float64      `json:"progress"`
	NextAction      string       `json:"next_action,omitempty"`
	WaitingOn       string       `json:"waiting_on,omitempty"`
	CollectedInputs string       `json:"collected_inputs,omitempty"` // JSON object
	Result          string       `json:"result,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}

// TaskStep is one item of a task's execution plan.
type TaskStep struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	Index     int        `json:"index"`
	Title     string     `json:"title"`
	Status    StepStatus `json:"status"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ChatMessage is one turn in the agent conversation. TaskStateUpdate
// carries the task's state at the moment an agent message was written so
// the client can render a status chip next to the bubble.
type ChatMessage struct {
	ID              string      `json:"id"`
	AgentID         string      `json:"agent_id"`
	TaskID          string      `json:"task_id,omitempty"`
	Role            MessageRole `json:"role"`
	Content         string      `json:"content"`
	TaskStateUpdate string      `json:"task_state_update,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// UIRecipe is a structured request for client-side input. A recipe is
// created unsubmitted and can be submitted exactly once.
type UIRecipe struct {
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id,omitempty"`
	MessageID     string     `json:"message_id,omitempty"`
	Kind          string     `json:"kind"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Fields        string     `json:"fields,omitempty"` // JSON array of field specs
	Style         string     `json:"style,omitempty"`
	IsSubmitted   bool       `json:"is_submitted"`
	SubmittedData string     `json:"submitted_data,omitempty"` // JSON object
	CreatedAt     time.Time  `json:"created_at"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

// Credential is a stored secret for an external provider.
type Credential struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Provider     string         `json:"provider"`
	Type         CredentialType `json:"type"`
	AccessToken  string         `json:"-"`
	RefreshToken string         `json:"-"`
	Scopes       string         `json:"scopes,omitempty"` // space-separated OAuth scopes
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	IsValid      bool           `json:"is_valid"`
	LastUsedAt   *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CredentialInfo is the secret-free view returned by listings.
type CredentialInfo struct {
	ID         string         `json:"id"`
	Provider   string         `json:"provider"`
	Type       CredentialType `json:"type"`
	Scopes     string         `json:"scopes,omitempty"`
	IsValid    bool           `json:"is_valid"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
