package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
)

const userColumns = `id, telegram_id, username, first_name, last_name, language_code, created_at`

// UpsertUserByTelegramID создаёт пользователя или обновляет его профиль
func (q *Queries) UpsertUserByTelegramID(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, language_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    language_code = EXCLUDED.language_code
		RETURNING id, created_at
	`

	err := q.db.QueryRow(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (q *Queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	var u model.User
	err := q.db.QueryRow(ctx, query, telegramID).Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode, &u.CreatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return &u, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u model.User
	var telegramID *int64
	err := q.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &telegramID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode, &u.CreatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if telegramID != nil {
		u.TelegramID = *telegramID
	}

	return &u, nil
}
