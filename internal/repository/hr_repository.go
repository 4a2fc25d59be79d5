package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/repository/common"
)

var ErrApprovalNotFound = errors.New("approval request not found")

// HRRepository хранит HR-профили вместе с состоянием одобрения аккаунта.
type HRRepository struct {
	db *sqlx.DB
}

func NewHRRepository(db *sqlx.DB) *HRRepository {
	return &HRRepository{db: db}
}

// CreateWithUser создаёт аккаунт рекрутера и его профиль со статусом pending
// в одной транзакции: два явных шага, а не побочный эффект сохранения.
func (r *HRRepository) CreateWithUser(ctx context.Context, user *models.User, profile *models.HRProfile) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, user, `
			INSERT INTO users (email, first_name, last_name, password_hash, role, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING *
		`, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.Role); err != nil {
			if strings.Contains(err.Error(), "users_email") {
				return common.ErrAlreadyExists
			}
			return fmt.Errorf("hr create user: %w", err)
		}

		profile.UserID = user.ID
		if err := tx.GetContext(ctx, profile, `
			INSERT INTO hr_profiles (user_id, company_name, designation, department,
			                         approval_status, approval_token, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING *
		`, profile.UserID, profile.CompanyName, profile.Designation, profile.Department,
			profile.ApprovalStatus, profile.ApprovalToken, profile.RequestedAt); err != nil {
			return fmt.Errorf("hr create profile: %w", err)
		}
		return nil
	})
}

func (r *HRRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.HRProfile, error) {
	return common.GetByField[models.HRProfile](ctx, r.db, "hr_profiles", "user_id", userID, ErrApprovalNotFound)
}

func (r *HRRepository) GetByToken(ctx context.Context, token string) (*models.HRProfile, error) {
	var profile models.HRProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM hr_profiles WHERE approval_token = $1
	`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hr get by token: %w", err)
	}
	return &profile, nil
}

// MarkApproved переводит профиль в approved, только если он всё ещё pending.
// Возвращает false, если строка уже в терминальном состоянии: повторное
// нажатие на ссылку не должно перезаписывать решение.
func (r *HRRepository) MarkApproved(ctx context.Context, userID uuid.UUID, decidedBy string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE hr_profiles
		SET approval_status = $2, decided_by = $3, decided_at = $4, updated_at = NOW()
		WHERE user_id = $1 AND approval_status = $5
	`, userID, models.ApprovalApproved, decidedBy, at, models.ApprovalPending)
	if err != nil {
		return false, fmt.Errorf("hr mark approved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("hr mark approved: %w", err)
	}
	return n > 0, nil
}

// RejectAndDelete удаляет аккаунт отклонённого рекрутера. Профиль уходит
// каскадом вместе с пользователем, поэтому токен после отказа перестаёт
// существовать. Удаление выполняется только из состояния pending.
func (r *HRRepository) RejectAndDelete(ctx context.Context, userID uuid.UUID) (bool, error) {
	deleted := false
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var status string
		err := tx.GetContext(ctx, &status, `
			SELECT approval_status FROM hr_profiles WHERE user_id = $1 FOR UPDATE
		`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrApprovalNotFound
		}
		if err != nil {
			return fmt.Errorf("hr reject: %w", err)
		}
		if status != models.ApprovalPending {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("hr reject delete user: %w", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
