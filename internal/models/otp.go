package models

import "time"

// EmailOTP хранит хэш одноразового кода подтверждения для email.
// На один email существует не более одной живой записи: повторная отправка
// заменяет код, но счётчики окна отправки переживают замену.
// Сам код нигде не хранится и не логируется, только bcrypt-хэш.
type EmailOTP struct {
	Email           string     `db:"email" json:"email"`
	CodeHash        string     `db:"code_hash" json:"-"`
	IssuedAt        time.Time  `db:"issued_at" json:"issued_at"`
	FailedAttempts  int        `db:"failed_attempts" json:"failed_attempts"`
	LastFailedAt    *time.Time `db:"last_failed_at" json:"last_failed_at,omitempty"`
	LastIssuedAt    *time.Time `db:"last_issued_at" json:"last_issued_at,omitempty"`
	WindowStartedAt time.Time  `db:"window_started_at" json:"window_started_at"`
	IssuanceCount   int        `db:"issuance_count" json:"issuance_count"`
}
