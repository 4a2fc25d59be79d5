package service

import (
	"context"
	"errors"
	"strings"

	"github.com/campusgate/recruitment-backend/internal/logger"
	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/pkg/apperror"
	"github.com/campusgate/recruitment-backend/internal/repository"
	"github.com/campusgate/recruitment-backend/internal/session"
	"github.com/campusgate/recruitment-backend/internal/validation"
)

// FlowKind различает три сценария подтверждения email.
type FlowKind string

const (
	FlowRegistration   FlowKind = "register"
	FlowHRRegistration FlowKind = "hr_register"
	FlowPasswordReset  FlowKind = "password_reset"
)

// Стадии сценария в сессии. Переходы:
// awaiting_email -> awaiting_code -> verified; блокировка или истечение кода
// возвращают сессию к awaiting_email.
const (
	StageAwaitingEmail = "awaiting_email"
	StageAwaitingCode  = "awaiting_code"
	StageVerified      = "verified"
)

// FlowAccounts — та часть хранилища пользователей, которая нужна сценариям.
type FlowAccounts interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// FlowService последовательно проводит клиента через выдачу и проверку кода
// для трёх сценариев: регистрация студента, регистрация HR, сброс пароля.
// Состояние шага живёт в сессии клиента; длинных фоновых задач нет.
type FlowService struct {
	otp      *OTPService
	limiter  *RateLimitService
	sessions session.Store
	accounts FlowAccounts
	notifier Notifier
}

// NewFlowService создаёт контроллер сценариев подтверждения.
func NewFlowService(otp *OTPService, limiter *RateLimitService, sessions session.Store, accounts FlowAccounts, notifier Notifier) *FlowService {
	return &FlowService{
		otp:      otp,
		limiter:  limiter,
		sessions: sessions,
		accounts: accounts,
		notifier: notifier,
	}
}

// Start принимает email, проверяет лимиты и отправляет код. Успех переводит
// сессию в awaiting_code.
func (s *FlowService) Start(ctx context.Context, sessionID string, kind FlowKind, email, source string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	email = normalizeEmail(email)

	decision, err := s.limiter.CheckAndIncrement(ctx, source, sendEndpoint(kind))
	if err != nil {
		return err
	}
	if decision.Blocked {
		return apperror.NewRetryable(apperror.ErrCodeRateLimited,
			"слишком много запросов кода, попробуйте позже", int(decision.RetryAfter.Seconds()))
	}

	switch kind {
	case FlowRegistration, FlowHRRegistration:
		if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
			return apperror.ErrEmailTaken
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
	case FlowPasswordReset:
		if _, err := s.accounts.GetByEmail(ctx, email); errors.Is(err, repository.ErrUserNotFound) {
			// Не раскрываем, существует ли аккаунт: отвечаем как при успехе,
			// но код не выдаём. Любая проверка упрётся в not_found.
			if logger.Log != nil {
				logger.Log.WithField("flow", kind).Info("сброс пароля для незарегистрированного email")
			}
			s.sessions.Put(sessionID, session.State{Kind: string(kind), Stage: StageAwaitingCode, Email: email})
			return nil
		} else if err != nil {
			return err
		}
	}

	allowed, wait, err := s.otp.CanIssue(ctx, email)
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.NewRetryable(apperror.ErrCodeRateLimited,
			"код уже отправлялся, подождите перед повторной отправкой", int(wait.Seconds()))
	}

	code, err := s.otp.Issue(ctx, email)
	if err != nil {
		return err
	}

	// Доставка письма не входит в исход операции: отправитель работает
	// асинхронно и сам логирует сбои.
	s.notifier.SendVerificationCode(email, code)

	s.sessions.Put(sessionID, session.State{Kind: string(kind), Stage: StageAwaitingCode, Email: email})
	return nil
}

// Submit проверяет присланный код. Возвращает результат проверки; ошибкой
// считаются только отказ хранилища и несоответствие стадии сессии.
func (s *FlowService) Submit(ctx context.Context, sessionID string, kind FlowKind, code, source string) (VerifyResult, error) {
	st, ok := s.sessions.Get(sessionID)
	if !ok || st.Kind != string(kind) || st.Stage != StageAwaitingCode {
		return VerifyResult{}, apperror.New(apperror.ErrCodeBadRequest, "сначала запросите код подтверждения")
	}

	decision, err := s.limiter.CheckAndIncrement(ctx, source, verifyEndpoint(kind))
	if err != nil {
		return VerifyResult{}, err
	}
	if decision.Blocked {
		return VerifyResult{}, apperror.NewRetryable(apperror.ErrCodeRateLimited,
			"слишком много попыток, попробуйте позже", int(decision.RetryAfter.Seconds()))
	}

	result, err := s.otp.Verify(ctx, st.Email, code)
	if err != nil {
		return VerifyResult{}, err
	}

	switch result.Outcome {
	case VerifySuccess:
		if err := s.limiter.Reset(ctx, source, verifyEndpoint(kind)); err != nil {
			return VerifyResult{}, err
		}
		st.Stage = StageVerified
		s.sessions.Put(sessionID, st)
	case VerifyLockedOut, VerifyExpired, VerifyNotFound:
		// Сценарий придётся начать заново с ввода email.
		s.sessions.Put(sessionID, session.State{Kind: string(kind), Stage: StageAwaitingEmail})
	}

	return result, nil
}

// ConsumeVerified сверяет, что сессия находится ровно в состоянии verified
// и подтверждён тот же email, который пришёл в завершающем шаге. Успешное
// потребление одноразовое: проверка и удаление записи атомарны, из двух
// конкурентных завершающих шагов сессия достаётся ровно одному.
func (s *FlowService) ConsumeVerified(ctx context.Context, sessionID string, kind FlowKind, email string) error {
	_, ok := s.sessions.TakeIf(sessionID, func(st session.State) bool {
		// Подтверждённая сессия для адреса A не даёт завершить шаг для адреса B.
		return st.Kind == string(kind) &&
			st.Stage == StageVerified &&
			strings.EqualFold(st.Email, strings.TrimSpace(email))
	})
	if !ok {
		return apperror.ErrFlowState
	}
	return nil
}

func sendEndpoint(kind FlowKind) string {
	return string(kind) + ":send"
}

func verifyEndpoint(kind FlowKind) string {
	return string(kind) + ":verify"
}
