package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campusgate/recruitment-backend/internal/clock"
	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/repository"
)

// OTPStore описывает зависимости OTPService от слоя хранилища.
type OTPStore interface {
	GetByEmail(ctx context.Context, email string) (*models.EmailOTP, error)
	Replace(ctx context.Context, otp *models.EmailOTP) error
	IncrementFailed(ctx context.Context, email string, at time.Time) (int, error)
	DeleteMatching(ctx context.Context, email, codeHash string) (bool, error)
	Delete(ctx context.Context, email string) error
}

// OTPConfig задаёт политику жизни кодов подтверждения.
type OTPConfig struct {
	CodeTTL           time.Duration // срок жизни кода
	MaxFailedAttempts int           // неудачных попыток до блокировки
	LockoutDuration   time.Duration // длительность блокировки email
	ResendInterval    time.Duration // минимум между отправками
	MaxPerWindow      int           // отправок в одно окно
	IssuanceWindow    time.Duration // длина окна отправки
}

// DefaultOTPConfig возвращает политику по умолчанию: код живёт 10 минут,
// пять промахов блокируют email на 30 минут, повторная отправка не чаще
// раза в минуту и не больше пяти раз в час.
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{
		CodeTTL:           10 * time.Minute,
		MaxFailedAttempts: 5,
		LockoutDuration:   30 * time.Minute,
		ResendInterval:    60 * time.Second,
		MaxPerWindow:      5,
		IssuanceWindow:    time.Hour,
	}
}

// VerifyOutcome перечисляет ожидаемые исходы проверки кода.
// Все они пользовательские, ни один не является ошибкой уровня сервиса.
type VerifyOutcome string

const (
	VerifySuccess   VerifyOutcome = "success"
	VerifyNotFound  VerifyOutcome = "not_found"
	VerifyExpired   VerifyOutcome = "expired"
	VerifyLockedOut VerifyOutcome = "locked_out"
	VerifyMismatch  VerifyOutcome = "mismatch"
)

// VerifyResult — результат проверки кода. RemainingAttempts заполняется при
// несовпадении, RetryAfter — при блокировке.
type VerifyResult struct {
	Outcome           VerifyOutcome
	RemainingAttempts int
	RetryAfter        time.Duration
}

// OTPService выдаёт, проверяет и гасит одноразовые коды подтверждения email.
// Код хранится только как bcrypt-хэш; открытый текст существует единственный
// раз - в возврате Issue, откуда уходит в письмо.
type OTPService struct {
	repo  OTPStore
	clock clock.Clock
	cfg   OTPConfig
}

// NewOTPService создаёт сервис кодов подтверждения.
func NewOTPService(repo OTPStore, clk clock.Clock, cfg OTPConfig) *OTPService {
	if cfg.CodeTTL <= 0 {
		cfg = DefaultOTPConfig()
	}
	return &OTPService{repo: repo, clock: clk, cfg: cfg}
}

// CanIssue проверяет, можно ли отправить email новый код прямо сейчас.
// При отказе возвращает, сколько осталось ждать.
func (s *OTPService) CanIssue(ctx context.Context, email string) (bool, time.Duration, error) {
	email = normalizeEmail(email)
	now := s.clock.Now()

	prev, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrOTPNotFound) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	if prev.LastIssuedAt != nil {
		if since := now.Sub(*prev.LastIssuedAt); since < s.cfg.ResendInterval {
			return false, s.cfg.ResendInterval - since, nil
		}
	}

	// Окно отправки фиксированное: считаем от window_started_at и сбрасываем
	// только когда окно истекло целиком.
	if now.Sub(prev.WindowStartedAt) <= s.cfg.IssuanceWindow && prev.IssuanceCount >= s.cfg.MaxPerWindow {
		return false, s.cfg.IssuanceWindow - now.Sub(prev.WindowStartedAt), nil
	}

	return true, 0, nil
}

// Issue выдаёт новый шестизначный код для email, вытесняя предыдущий.
// Возвращает открытый текст кода ровно один раз; сервис его не сохраняет
// и не пишет в логи.
func (s *OTPService) Issue(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	now := s.clock.Now()

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("otp service: не удалось сгенерировать код: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("otp service: не удалось захешировать код: %w", err)
	}

	// Счётчики окна отправки переживают замену кода.
	windowStart := now
	issuanceCount := 1
	prev, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrOTPNotFound) {
		return "", err
	}
	if err == nil && now.Sub(prev.WindowStartedAt) <= s.cfg.IssuanceWindow {
		windowStart = prev.WindowStartedAt
		issuanceCount = prev.IssuanceCount + 1
	}

	record := &models.EmailOTP{
		Email:           email,
		CodeHash:        string(hash),
		IssuedAt:        now,
		LastIssuedAt:    &now,
		WindowStartedAt: windowStart,
		IssuanceCount:   issuanceCount,
	}
	if err := s.repo.Replace(ctx, record); err != nil {
		return "", err
	}

	return code, nil
}

// Verify сверяет код с хэшем и гасит запись при успехе. Все ожидаемые исходы
// возвращаются в VerifyResult; error остаётся только за отказами хранилища.
func (s *OTPService) Verify(ctx context.Context, email, code string) (VerifyResult, error) {
	email = normalizeEmail(email)
	now := s.clock.Now()

	otp, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrOTPNotFound) {
		return VerifyResult{Outcome: VerifyNotFound}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}

	if now.Sub(otp.IssuedAt) > s.cfg.CodeTTL {
		if err := s.repo.Delete(ctx, email); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Outcome: VerifyExpired}, nil
	}

	if otp.FailedAttempts >= s.cfg.MaxFailedAttempts && otp.LastFailedAt != nil {
		if since := now.Sub(*otp.LastFailedAt); since < s.cfg.LockoutDuration {
			return VerifyResult{
				Outcome:    VerifyLockedOut,
				RetryAfter: s.cfg.LockoutDuration - since,
			}, nil
		}
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		// Счётчик пишется до возврата результата: упасть между проверкой
		// и записью и тем самым обойти лимит нельзя.
		attempts, err := s.repo.IncrementFailed(ctx, email, now)
		if err != nil {
			return VerifyResult{}, err
		}
		remaining := s.cfg.MaxFailedAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return VerifyResult{Outcome: VerifyMismatch, RemainingAttempts: remaining}, nil
	}

	// Удаление успешно проверенного кода атомарно с совпадением: из двух
	// конкурентных проверок одного кода запись достаётся ровно одной.
	deleted, err := s.repo.DeleteMatching(ctx, email, otp.CodeHash)
	if err != nil {
		return VerifyResult{}, err
	}
	if !deleted {
		return VerifyResult{Outcome: VerifyNotFound}, nil
	}

	return VerifyResult{Outcome: VerifySuccess}, nil
}

// generateCode возвращает ровно шесть цифр с ведущими нулями.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// normalizeEmail приводит email к каноническому виду ключа.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
