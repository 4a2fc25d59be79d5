package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusgate/recruitment-backend/internal/models"
)

var ErrOTPNotFound = errors.New("verification code not found")

// OTPRepository хранит хэши одноразовых кодов. На email не более одной строки:
// повторная выдача заменяет код на месте, сохраняя счётчики окна отправки.
type OTPRepository struct {
	db *sqlx.DB
}

func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

func (r *OTPRepository) GetByEmail(ctx context.Context, email string) (*models.EmailOTP, error) {
	var otp models.EmailOTP
	err := r.db.GetContext(ctx, &otp, `SELECT * FROM email_otps WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp get: %w", err)
	}
	return &otp, nil
}

// Replace записывает новый код для email, вытесняя предыдущий. Счётчики
// неудачных попыток обнуляются: это свежая учётная запись кода.
func (r *OTPRepository) Replace(ctx context.Context, otp *models.EmailOTP) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_otps (email, code_hash, issued_at, failed_attempts, last_failed_at,
		                        last_issued_at, window_started_at, issuance_count)
		VALUES ($1, $2, $3, 0, NULL, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			issued_at = EXCLUDED.issued_at,
			failed_attempts = 0,
			last_failed_at = NULL,
			last_issued_at = EXCLUDED.last_issued_at,
			window_started_at = EXCLUDED.window_started_at,
			issuance_count = EXCLUDED.issuance_count
	`, otp.Email, otp.CodeHash, otp.IssuedAt, otp.LastIssuedAt, otp.WindowStartedAt, otp.IssuanceCount)
	if err != nil {
		return fmt.Errorf("otp replace: %w", err)
	}
	return nil
}

// IncrementFailed атомарно добавляет неудачную попытку и возвращает новое
// значение счётчика. Запись должна существовать.
func (r *OTPRepository) IncrementFailed(ctx context.Context, email string, at time.Time) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE email_otps
		SET failed_attempts = failed_attempts + 1, last_failed_at = $2
		WHERE email = $1
		RETURNING failed_attempts
	`, email, at).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrOTPNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("otp increment failed: %w", err)
	}
	return attempts, nil
}

// DeleteMatching удаляет запись, только если в ней всё ещё тот же хэш кода.
// Из двух конкурентных проверок одного кода выиграет ровно одна: проигравшая
// увидит false и обязана трактовать это как отсутствие кода.
func (r *OTPRepository) DeleteMatching(ctx context.Context, email, codeHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM email_otps WHERE email = $1 AND code_hash = $2
	`, email, codeHash)
	if err != nil {
		return false, fmt.Errorf("otp delete matching: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("otp delete matching: %w", err)
	}
	return n > 0, nil
}

// Delete убирает запись безусловно (истёкший код).
func (r *OTPRepository) Delete(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM email_otps WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("otp delete: %w", err)
	}
	return nil
}
