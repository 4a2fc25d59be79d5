package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/repository/common"
)

// RateLimitRepository хранит счётчики попыток по парам (source, endpoint).
type RateLimitRepository struct {
	db *sqlx.DB
}

func NewRateLimitRepository(db *sqlx.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Update выполняет fn над строкой лимита под блокировкой строки: читает
// (создавая при отсутствии), отдаёт сервису на изменение и пишет обратно
// в одной транзакции. Конкурентные запросы одной пары сериализуются базой.
func (r *RateLimitRepository) Update(ctx context.Context, source, endpoint string, fn func(*models.SourceRateLimit) error) (*models.SourceRateLimit, error) {
	var row models.SourceRateLimit
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `
			SELECT * FROM rate_limits WHERE source = $1 AND endpoint = $2 FOR UPDATE
		`, source, endpoint)
		if errors.Is(err, sql.ErrNoRows) {
			// Лениво создаём строку; при гонке двух вставок выигрывает одна,
			// вторая перечитывает уже существующую.
			_, err = tx.ExecContext(ctx, `
				INSERT INTO rate_limits (source, endpoint, attempt_count, window_started_at)
				VALUES ($1, $2, 0, NOW())
				ON CONFLICT (source, endpoint) DO NOTHING
			`, source, endpoint)
			if err != nil {
				return fmt.Errorf("rate limit insert: %w", err)
			}
			err = tx.GetContext(ctx, &row, `
				SELECT * FROM rate_limits WHERE source = $1 AND endpoint = $2 FOR UPDATE
			`, source, endpoint)
		}
		if err != nil {
			return fmt.Errorf("rate limit get: %w", err)
		}

		if err := fn(&row); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE rate_limits
			SET attempt_count = $3, window_started_at = $4, blocked_until = $5
			WHERE source = $1 AND endpoint = $2
		`, source, endpoint, row.AttemptCount, row.WindowStartedAt, row.BlockedUntil)
		if err != nil {
			return fmt.Errorf("rate limit update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Reset обнуляет счётчик и снимает блокировку пары (source, endpoint).
func (r *RateLimitRepository) Reset(ctx context.Context, source, endpoint string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rate_limits
		SET attempt_count = 0, window_started_at = NOW(), blocked_until = NULL
		WHERE source = $1 AND endpoint = $2
	`, source, endpoint)
	if err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}
