package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadySubmitted is returned when a recipe is submitted twice.
// Submission is monotonic: once submitted, a recipe never reverts.
var ErrAlreadySubmitted = fmt.Errorf("recipe already submitted")

// CreateRecipe inserts a new unsubmitted recipe. taskID and messageID may
// each be empty, but not both: an orphan recipe cannot be routed back to
// an agent.
func (s *Store) CreateRecipe(r *UIRecipe) (*UIRecipe, error) {
	if r.TaskID == "" && r.MessageID == "" {
		return nil, fmt.Errorf("recipe needs a task or message link")
	}
	if r.Kind == "" {
		return nil, fmt.Errorf("recipe needs a kind")
	}
	r.ID = uuid.NewString()
	r.IsSubmitted = false
	r.CreatedAt = time.Now().UTC()
	if r.Fields == "" {
		r.Fields = "[]"
	}
	var tid, mid any
	if r.TaskID != "" {
		tid = r.TaskID
	}
	if r.MessageID != "" {
		mid = r.MessageID
	}
	_, err := s.db.Exec(
		`INSERT INTO ui_recipes (id, task_id, message_id, kind, title, description, fields, style, is_submitted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		r.ID, tid, mid, r.Kind, r.Title, r.Description, r.Fields, r.Style, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}
	return r, nil
}

const recipeColumns = `id, COALESCE(task_id, ''), COALESCE(message_id, ''), kind, title,
	COALESCE(description, ''), COALESCE(fields, '[]'), COALESCE(style, ''),
	is_submitted, COALESCE(submitted_data, ''), created_at, submitted_at`

func scanRecipe(row interface{ Scan(...any) error }) (*UIRecipe, error) {
	r := &UIRecipe{}
	var submitted sql.NullTime
	err := row.Scan(&r.ID, &r.TaskID, &r.MessageID, &r.Kind, &r.Title, &r.Description,
		&r.Fields, &r.Style, &r.IsSubmitted, &r.SubmittedData, &r.CreatedAt, &submitted)
	if err != nil {
		return nil, err
	}
	if submitted.Valid {
		r.SubmittedAt = &submitted.Time
	}
	return r, nil
}

// GetRecipe loads one recipe by ID.
func (s *Store) GetRecipe(id string) (*UIRecipe, error) {
	r, err := scanRecipe(s.db.QueryRow(`SELECT `+recipeColumns+` FROM ui_recipes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recipe not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	return r, nil
}

// SubmitRecipe marks a recipe submitted with the client's data. The guard
// is enforced in SQL so concurrent submissions cannot both win.
func (s *Store) SubmitRecipe(id, dataJSON string) (*UIRecipe, error) {
	res, err := s.db.Exec(
		`UPDATE ui_recipes SET is_submitted = 1, submitted_data = ?, submitted_at = ?
		 WHERE id = ? AND is_submitted = 0`,
		dataJSON, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to submit recipe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r, err := s.GetRecipe(id)
		if err != nil {
			return nil, err
		}
		if r.IsSubmitted {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("recipe not found: %s", id)
	}
	return s.GetRecipe(id)
}

// ListTaskRecipes returns a task's recipes in creation order.
func (s *Store) ListTaskRecipes(taskID string) ([]*UIRecipe, error) {
	rows, err := s.db.Query(
		`SELECT `+recipeColumns+` FROM ui_recipes WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()
	var out []*UIRecipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MergedSubmissions folds the submitted data of every submitted recipe of
// the task into a single map, last write wins per key in creation order.
func (s *Store) MergedSubmissions(taskID string) (map[string]any, error) {
	recipes, err := s.ListTaskRecipes(taskID)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any)
	for _, r := range recipes {
		if !r.IsSubmitted || r.SubmittedData == "" {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(r.SubmittedData), &data); err != nil {
			// A malformed payload should not poison the rest.
			continue
		}
		for k, v := range data {
			merged[k] = v
		}
	}
	return merged, nil
}
