package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertCredential inserts a new credential row. Older rows for the same
// user and provider are left in place; resolution always prefers the most
// recently updated valid row, so the new row wins immediately.
func (s *Store) UpsertCredential(c *Credential) (*Credential, error) {
	c.ID = uuid.NewString()
	c.IsValid = true
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	var expires any
	if c.ExpiresAt != nil {
		expires = c.ExpiresAt.UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO credentials (id, user_id, provider, cred_type, access_token, refresh_token, scopes, expires_at, is_valid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		c.ID, c.UserID, c.Provider, c.Type, c.AccessToken, c.RefreshToken, c.Scopes, expires, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	return c, nil
}

const credColumns = `id, user_id, provider, cred_type, access_token, COALESCE(refresh_token, ''),
	COALESCE(scopes, ''), expires_at, is_valid, last_used_at, created_at, updated_at`

func scanCredential(row interface{ Scan(...any) error }) (*Credential, error) {
	c := &Credential{}
	var expires, lastUsed sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.Type, &c.AccessToken, &c.RefreshToken,
		&c.Scopes, &expires, &c.IsValid, &lastUsed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		c.ExpiresAt = &expires.Time
	}
	if lastUsed.Valid {
		c.LastUsedAt = &lastUsed.Time
	}
	return c, nil
}

// ResolveCredential returns the most recently updated valid credential for
// the user and provider, or nil when none exists.
func (s *Store) ResolveCredential(userID, provider string) (*Credential, error) {
	c, err := scanCredential(s.db.QueryRow(
		`SELECT `+credColumns+` FROM credentials
		 WHERE user_id = ? AND provider = ? AND is_valid = 1
		 ORDER BY updated_at DESC, created_at DESC LIMIT 1`, userID, provider))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	return c, nil
}

// UpdateCredentialToken refreshes the stored tokens on an existing row,
// bumping updated_at so it becomes the winning row.
func (s *Store) UpdateCredentialToken(id, accessToken, refreshToken string, expiresAt *time.Time) error {
	var expires any
	if expiresAt != nil {
		expires = expiresAt.UTC()
	}
	_, err := s.db.Exec(
		`UPDATE credentials SET access_token = ?, refresh_token = ?, expires_at = ?, is_valid = 1, updated_at = ? WHERE id = ?`,
		accessToken, refreshToken, expires, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return nil
}

// InvalidateCredential marks one row invalid (after a 401 or failed refresh).
func (s *Store) InvalidateCredential(id string) error {
	_, err := s.db.Exec(
		`UPDATE credentials SET is_valid = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to invalidate credential: %w", err)
	}
	return nil
}

// MarkCredentialUsed stamps last_used_at after a successful provider call.
// It deliberately leaves updated_at alone so usage does not reorder
// credential resolution.
func (s *Store) MarkCredentialUsed(id string) error {
	_, err := s.db.Exec(
		`UPDATE credentials SET last_used_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark credential used: %w", err)
	}
	return nil
}

// RevokeCredentials invalidates every row for the user and provider.
func (s *Store) RevokeCredentials(userID, provider string) (int, error) {
	res, err := s.db.Exec(
		`UPDATE credentials SET is_valid = 0, updated_at = ? WHERE user_id = ? AND provider = ? AND is_valid = 1`,
		time.Now().UTC(), userID, provider)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke credentials: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListCredentials returns secret-free credential info for a user.
func (s *Store) ListCredentials(userID string) ([]*CredentialInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, provider, cred_type, COALESCE(scopes, ''), is_valid, expires_at, last_used_at, updated_at
		 FROM credentials WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()
	var out []*CredentialInfo
	for rows.Next() {
		ci := &CredentialInfo{}
		var expires, lastUsed sql.NullTime
		if err := rows.Scan(&ci.ID, &ci.Provider, &ci.Type, &ci.Scopes, &ci.IsValid, &expires, &lastUsed, &ci.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		if expires.Valid {
			ci.ExpiresAt = &expires.Time
		}
		if lastUsed.Valid {
			ci.LastUsedAt = &lastUsed.Time
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

// PruneInvalidCredentials deletes invalid rows older than the cutoff.
// Invalid rows are otherwise kept as an audit trail; this never runs
// implicitly.
func (s *Store) PruneInvalidCredentials(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.Exec(
		`DELETE FROM credentials WHERE is_valid = 0 AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune credentials: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
