package repo

import (
	"context"
	"encoding/json"
	"fmt"
)

// UpsertUserByTelegramID stores or updates the user profile based on the
// external Telegram identity. The conversation state is never touched here.
func (r *PostgresRepository) UpsertUserByTelegramID(ctx context.Context, profile UserProfile) (*User, error) {
	const q = `
INSERT INTO users (telegram_id, username, first_name, last_name, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (telegram_id) DO UPDATE SET
    username = EXCLUDED.username,
    first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
    last_name = EXCLUDED.last_name,
    updated_at = NOW()
RETURNING id, telegram_id, username, first_name, last_name, phone, conversation_state, conversation_data, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, q,
		profile.TelegramID,
		profile.Username,
		profile.FirstName,
		profile.LastName,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// GetUserByTelegramID returns the user registered for the external identity.
func (r *PostgresRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	const q = `
SELECT id, telegram_id, username, first_name, last_name, phone, conversation_state, conversation_data, created_at, updated_at
FROM users
WHERE telegram_id = $1
LIMIT 1;
`
	u, err := scanUser(r.pool.QueryRow(ctx, q, telegramID))
	if err != nil {
		return nil, notFoundOr(err, "get user by telegram id")
	}
	return u, nil
}

// GetUserByID returns user by internal identifier.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT id, telegram_id, username, first_name, last_name, phone, conversation_state, conversation_data, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1;
`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFoundOr(err, "get user by id")
	}
	return u, nil
}

// SetConversationState advances conversation state and scratch data in one
// statement, guarded by the expected current state so duplicate deliveries
// of the same input cannot advance twice.
func (r *PostgresRepository) SetConversationState(ctx context.Context, userID string, from, to ConversationState, data ConversationData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal conversation data: %w", err)
	}
	const q = `
UPDATE users
SET conversation_state = $3, conversation_data = $4, updated_at = NOW()
WHERE id = $1 AND conversation_state = $2;
`
	ct, err := r.pool.Exec(ctx, q, userID, string(from), string(to), payload)
	if err != nil {
		return fmt.Errorf("set conversation state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConversationConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u        User
		state    string
		dataJSON []byte
	)
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &state, &dataJSON, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ConversationState = ConversationState(state)
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &u.ConversationData); err != nil {
			return nil, fmt.Errorf("decode conversation data: %w", err)
		}
	}
	return &u, nil
}
