package models

import "time"

// SourceRateLimit считает попытки одного сетевого источника против одного
// защищённого действия в фиксированном окне. Ровно одна строка на пару
// (source, endpoint); blocked_until в прошлом эквивалентен отсутствию блокировки.
type SourceRateLimit struct {
	Source          string     `db:"source" json:"source"`
	Endpoint        string     `db:"endpoint" json:"endpoint"`
	AttemptCount    int        `db:"attempt_count" json:"attempt_count"`
	WindowStartedAt time.Time  `db:"window_started_at" json:"window_started_at"`
	BlockedUntil    *time.Time `db:"blocked_until" json:"blocked_until,omitempty"`
}
