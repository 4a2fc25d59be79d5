package service

import (
	"context"
	"time"

	"github.com/campusgate/recruitment-backend/internal/clock"
	"github.com/campusgate/recruitment-backend/internal/models"
)

// RateLimitStore описывает зависимости лимитера от слоя хранилища.
// Update обязан выполнять чтение-изменение-запись строки атомарно.
type RateLimitStore interface {
	Update(ctx context.Context, source, endpoint string, fn func(*models.SourceRateLimit) error) (*models.SourceRateLimit, error)
	Reset(ctx context.Context, source, endpoint string) error
}

// RateLimitConfig задаёт политику лимита: фиксированное окно подсчёта
// и длительность блокировки при переборе.
type RateLimitConfig struct {
	Window        time.Duration
	MaxAttempts   int
	BlockDuration time.Duration
}

// DefaultRateLimitConfig — политика для эндпоинтов проверки кода:
// три попытки в минуту, перебор блокирует источник на 15 минут.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Window:        time.Minute,
		MaxAttempts:   3,
		BlockDuration: 15 * time.Minute,
	}
}

// Decision — решение лимитера по одной попытке.
type Decision struct {
	Blocked    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitService ограничивает число попыток одного сетевого источника
// против защищённого действия. Работает независимо от блокировки по email:
// лимитер по источнику ловит распределённый перебор многих адресов,
// блокировка по email - перебор одного адреса.
type RateLimitService struct {
	repo  RateLimitStore
	clock clock.Clock
	cfg   RateLimitConfig
}

// NewRateLimitService создаёт лимитер по источнику.
func NewRateLimitService(repo RateLimitStore, clk clock.Clock, cfg RateLimitConfig) *RateLimitService {
	if cfg.Window <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	return &RateLimitService{repo: repo, clock: clk, cfg: cfg}
}

// CheckAndIncrement учитывает одну попытку и возвращает решение.
// Окно фиксированное: привязано к window_started_at и сбрасывается целиком,
// когда истекло. Блокировка в прошлом снимается лениво при следующей попытке.
func (s *RateLimitService) CheckAndIncrement(ctx context.Context, source, endpoint string) (Decision, error) {
	var decision Decision
	now := s.clock.Now()

	_, err := s.repo.Update(ctx, source, endpoint, func(row *models.SourceRateLimit) error {
		if row.BlockedUntil != nil {
			if row.BlockedUntil.After(now) {
				decision = Decision{Blocked: true, RetryAfter: row.BlockedUntil.Sub(now)}
				return nil
			}
			row.BlockedUntil = nil
			row.AttemptCount = 0
			row.WindowStartedAt = now
		}

		if row.WindowStartedAt.IsZero() || now.Sub(row.WindowStartedAt) > s.cfg.Window {
			row.AttemptCount = 0
			row.WindowStartedAt = now
		}

		if row.AttemptCount < s.cfg.MaxAttempts {
			row.AttemptCount++
			decision = Decision{Remaining: s.cfg.MaxAttempts - row.AttemptCount}
			return nil
		}

		until := now.Add(s.cfg.BlockDuration)
		row.BlockedUntil = &until
		decision = Decision{Blocked: true, RetryAfter: s.cfg.BlockDuration}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// Reset снимает блокировку и обнуляет счётчик источника. Вызывается после
// успешной проверки, чтобы не штрафовать живого пользователя за промах
// перед правильным кодом.
func (s *RateLimitService) Reset(ctx context.Context, source, endpoint string) error {
	return s.repo.Reset(ctx, source, endpoint)
}
