package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли аккаунтов портала. Роль хранится явно, проверка доступа идёт по ней,
// а не по наличию связанных записей.
const (
	RoleStudent = "student"
	RoleHR      = "hr"
	RoleAdmin   = "admin"
)

// User описывает аккаунт пользователя портала (студент, HR или администратор).
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Статусы одобрения HR-аккаунта. Переходы только pending -> approved
// или pending -> rejected, терминальные состояния не меняются.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// HRProfile хранит данные рекрутера и состояние одобрения его аккаунта.
// Токен одобрения одноразовый: решение по нему принимается ровно один раз.
type HRProfile struct {
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	CompanyName    string     `db:"company_name" json:"company_name"`
	Designation    string     `db:"designation" json:"designation"`
	Department     string     `db:"department" json:"department"`
	ApprovalStatus string     `db:"approval_status" json:"approval_status"`
	ApprovalToken  string     `db:"approval_token" json:"-"`
	RequestedAt    time.Time  `db:"requested_at" json:"requested_at"`
	DecidedAt      *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy      *string    `db:"decided_by" json:"decided_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
