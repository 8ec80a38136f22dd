// Package store persists agents, tasks, chat history, UI recipes, and
// credentials in a single sqlite database.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Schema is applied on every open. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT 'Bron',
	status TEXT NOT NULL DEFAULT 'idle',
	personality TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	title TEXT NOT NULL,
	description TEXT DEFAULT '',
	category TEXT NOT NULL DEFAULT 'personal',
	state TEXT NOT NULL DEFAULT 'draft',
	priority INTEGER NOT NULL DEFAULT 0,
	progress REAL NOT NULL DEFAULT 0,
	next_action TEXT DEFAULT '',
	waiting_on TEXT DEFAULT '',
	collected_inputs TEXT DEFAULT '{}',
	result TEXT DEFAULT '',
	error_message TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tasks_agent ON tasks(agent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);

CREATE TABLE IF NOT EXISTS task_steps (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES tasks(id),
	step_index INTEGER NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	detail TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_task_steps_task ON task_steps(task_id);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	task_id TEXT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	task_state_update TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_agent ON chat_messages(agent_id);

CREATE TABLE IF NOT EXISTS ui_recipes (
	id TEXT PRIMARY KEY,
	task_id TEXT,
	message_id TEXT,
	kind TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	description TEXT DEFAULT '',
	fields TEXT DEFAULT '[]',
	style TEXT DEFAULT '',
	is_submitted BOOLEAN NOT NULL DEFAULT 0,
	submitted_data TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	submitted_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_ui_recipes_task ON ui_recipes(task_id);

CREATE TABLE IF NOT EXISTS credentials (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	cred_type TEXT NOT NULL,
	access_token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT DEFAULT '',
	scopes TEXT DEFAULT '',
	expires_at DATETIME,
	is_valid BOOLEAN NOT NULL DEFAULT 1,
	last_used_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_credentials_user_provider ON credentials(user_id, provider);
`

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for older dbs (no-op if the column exists).
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN priority INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN progress REAL NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN next_action TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN waiting_on TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE chat_messages ADD COLUMN task_state_update TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE ui_recipes ADD COLUMN style TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE credentials ADD COLUMN refresh_token TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE credentials ADD COLUMN scopes TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE credentials ADD COLUMN last_used_at DATETIME`)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

// CreateAgent inserts a new agent for a user. Name defaults to "Bron".
func (s *Store) CreateAgent(userID, name string) (*Agent, error) {
	if name == "" {
		name = "Bron"
	}
	a := &Agent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Status:    AgentIdle,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO agents (id, user_id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return a, nil
}

// GetAgent loads one agent by ID.
func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, name, status, COALESCE(personality, ''), created_at, updated_at
		 FROM agents WHERE id = ?`, id)
	a := &Agent{}
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Status, &a.Personality, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	return a, nil
}

// SetAgentStatus updates the agent's status.
func (s *Store) SetAgentStatus(id string, status AgentStatus) error {
	res, err := s.db.Exec(
		`UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update agent status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent not found: %s", id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// CreateTask inserts a new task in draft state.
func (s *Store) CreateTask(agentID, title, description string, category TaskCategory) (*Task, error) {
	if category == "" {
		category = CategoryPersonal
	}
	t := &Task{
		ID:              uuid.NewString(),
		AgentID:         agentID,
		Title:           title,
		Description:     description,
		Category:        category,
		State:           TaskDraft,
		CollectedInputs: "{}",
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, agent_id, title, description, category, state, collected_inputs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AgentID, t.Title, t.Description, t.Category, t.State, t.CollectedInputs, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

const taskColumns = `id, agent_id, title, COALESCE(description, ''), category, state, priority,
	COALESCE(progress, 0), COALESCE(next_action, ''), COALESCE(waiting_on, ''),
	COALESCE(collected_inputs, '{}'), COALESCE(result, ''), COALESCE(error_message, ''),
	created_at, updated_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	t := &Task{}
	var completed sql.NullTime
	err := row.Scan(&t.ID, &t.AgentID, &t.Title, &t.Description, &t.Category, &t.State, &t.Priority,
		&t.Progress, &t.NextAction, &t.WaitingOn,
		&t.CollectedInputs, &t.Result, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return t, nil
}

// GetTask loads one task by ID.
func (s *Store) GetTask(id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return t, nil
}

// ActiveTask returns the agent's most recent non-terminal task, or nil.
func (s *Store) ActiveTask(agentID string) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE agent_id = ? AND state NOT IN ('done', 'failed')
		 ORDER BY updated_at DESC LIMIT 1`, agentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active task: %w", err)
	}
	return t, nil
}

// ListTasks returns all tasks for an agent, newest first.
func (s *Store) ListTasks(agentID string) ([]*Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskColumns+` FROM tasks WHERE agent_id = ? ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetTaskState moves a task to a new state. Terminal states are frozen:
// updating a done or failed task is an error. A draft task must pass
// through an intermediate state before it can finish, so draft to done
// is rejected.
func (s *Store) SetTaskState(id string, state TaskState) error {
	t, err := s.GetTask(id)
	if err != nil {
		return err
	}
	if t.State.Terminal() {
		return fmt.Errorf("task %s is %s and cannot change state", id, t.State)
	}
	if t.State == TaskDraft && state == TaskDone {
		return fmt.Errorf("task %s cannot move from draft directly to done", id)
	}
	now := time.Now().UTC()
	var completed any
	if state.Terminal() {
		completed = now
	}
	_, err = s.db.Exec(
		`UPDATE tasks SET state = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		state, now, completed, id)
	if err != nil {
		return fmt.Errorf("failed to update task state: %w", err)
	}
	return nil
}

// SetTaskProgress clamps and records fractional completion.
func (s *Store) SetTaskProgress(id string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set task progress: %w", err)
	}
	return nil
}

// SetTaskNextAction records what the agent plans to do next.
func (s *Store) SetTaskNextAction(id, nextAction string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET next_action = ?, updated_at = ? WHERE id = ?`,
		nextAction, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set task next action: %w", err)
	}
	return nil
}

// SetTaskWaitingOn records what input the task is blocked on.
func (s *Store) SetTaskWaitingOn(id, waitingOn string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET waiting_on = ?, updated_at = ? WHERE id = ?`,
		waitingOn, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set task waiting_on: %w", err)
	}
	return nil
}

// SetTaskResult records a successful outcome. Does not change state.
func (s *Store) SetTaskResult(id, result string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET result = ?, updated_at = ? WHERE id = ?`,
		result, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set task result: %w", err)
	}
	return nil
}

// SetTaskError records a failure message. Does not change state.
func (s *Store) SetTaskError(id, msg string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET error_message = ?, updated_at = ? WHERE id = ?`,
		msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set task error: %w", err)
	}
	return nil
}

// SetCollectedInputs replaces the task's collected inputs JSON.
func (s *Store) SetCollectedInputs(id, inputsJSON string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET collected_inputs = ?, updated_at = ? WHERE id = ?`,
		inputsJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set collected inputs: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Task steps
// ---------------------------------------------------------------------------

// ReplaceTaskSteps swaps a task's plan for a new ordered list of step titles.
func (s *Store) ReplaceTaskSteps(taskID string, titles []string) ([]*TaskStep, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_steps WHERE task_id = ?`, taskID); err != nil {
		return nil, fmt.Errorf("failed to clear steps: %w", err)
	}
	now := time.Now().UTC()
	steps := make([]*TaskStep, 0, len(titles))
	for i, title := range titles {
		st := &TaskStep{
			ID:        uuid.NewString(),
			TaskID:    taskID,
			Index:     i,
			Title:     title,
			Status:    StepPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := tx.Exec(
			`INSERT INTO task_steps (id, task_id, step_index, title, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.ID, st.TaskID, st.Index, st.Title, st.Status, st.CreatedAt, st.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert step: %w", err)
		}
		steps = append(steps, st)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit steps: %w", err)
	}
	return steps, nil
}

// SetStepStatus updates a single step.
func (s *Store) SetStepStatus(stepID string, status StepStatus, detail string) error {
	_, err := s.db.Exec(
		`UPDATE task_steps SET status = ?, detail = ?, updated_at = ? WHERE id = ?`,
		status, detail, time.Now().UTC(), stepID)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	return nil
}

// ListTaskSteps returns a task's steps in plan order.
func (s *Store) ListTaskSteps(taskID string) ([]*TaskStep, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, step_index, title, status, COALESCE(detail, ''), created_at, updated_at
		 FROM task_steps WHERE task_id = ? ORDER BY step_index`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()
	var out []*TaskStep
	for rows.Next() {
		st := &TaskStep{}
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Index, &st.Title, &st.Status, &st.Detail, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Chat messages
// ---------------------------------------------------------------------------

// AppendMessage persists one chat turn. taskID may be empty;
// taskStateUpdate is the task state snapshot shown beside agent messages
// and is empty for user turns.
func (s *Store) AppendMessage(agentID, taskID string, role MessageRole, content, taskStateUpdate string) (*ChatMessage, error) {
	m := &ChatMessage{
		ID:              uuid.NewString(),
		AgentID:         agentID,
		TaskID:          taskID,
		Role:            role,
		Content:         content,
		TaskStateUpdate: taskStateUpdate,
		CreatedAt:       time.Now().UTC(),
	}
	var tid any
	if taskID != "" {
		tid = taskID
	}
	_, err := s.db.Exec(
		`INSERT INTO chat_messages (id, agent_id, task_id, role, content, task_state_update, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.AgentID, tid, m.Role, m.Content, m.TaskStateUpdate, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return m, nil
}

// GetMessage loads one chat message by ID.
func (s *Store) GetMessage(id string) (*ChatMessage, error) {
	m := &ChatMessage{}
	err := s.db.QueryRow(
		`SELECT id, agent_id, COALESCE(task_id, ''), role, content, COALESCE(task_state_update, ''), created_at
		 FROM chat_messages WHERE id = ?`, id).
		Scan(&m.ID, &m.AgentID, &m.TaskID, &m.Role, &m.Content, &m.TaskStateUpdate, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return m, nil
}

// RecentMessages returns up to limit messages for an agent, oldest first.
func (s *Store) RecentMessages(agentID string, limit int) ([]*ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, agent_id, COALESCE(task_id, ''), role, content, COALESCE(task_state_update, ''), created_at FROM (
			SELECT * FROM chat_messages WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?
		 ) ORDER BY created_at ASC`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()
	var out []*ChatMessage
	for rows.Next() {
		m := &ChatMessage{}
		if err := rows.Scan(&m.ID, &m.AgentID, &m.TaskID, &m.Role, &m.Content, &m.TaskStateUpdate, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
