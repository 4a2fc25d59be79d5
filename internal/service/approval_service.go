package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusgate/recruitment-backend/internal/clock"
	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/repository"
	"github.com/campusgate/recruitment-backend/internal/validation"
)

// ApprovalStore описывает зависимости сервиса одобрения от хранилища.
type ApprovalStore interface {
	CreateWithUser(ctx context.Context, user *models.User, profile *models.HRProfile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.HRProfile, error)
	GetByToken(ctx context.Context, token string) (*models.HRProfile, error)
	MarkApproved(ctx context.Context, userID uuid.UUID, decidedBy string, at time.Time) (bool, error)
	RejectAndDelete(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ApprovalUsers — доступ к аккаунтам, который нужен при уведомлениях.
type ApprovalUsers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// DecisionOutcome перечисляет исходы решения по токену одобрения.
type DecisionOutcome string

const (
	// DecisionApplied — решение записано и побочные эффекты выполнены.
	DecisionApplied DecisionOutcome = "applied"
	// DecisionAlreadyDecided — решение уже было принято ранее; повторный
	// заход по той же ссылке ничего не делает и не шлёт писем.
	DecisionAlreadyDecided DecisionOutcome = "already_decided"
	// DecisionInvalidToken — токен никому не принадлежит.
	DecisionInvalidToken DecisionOutcome = "invalid_token"
)

// DecisionResult — результат approve/reject.
type DecisionResult struct {
	Outcome DecisionOutcome
	Status  string // текущий статус профиля, если он известен
}

// ApprovalService ведёт машину состояний одобрения HR-аккаунтов:
// pending -> approved либо pending -> rejected, из терминальных состояний
// выхода нет. Токен решения одноразовый.
type ApprovalService struct {
	repo       ApprovalStore
	users      ApprovalUsers
	notifier   Notifier
	clock      clock.Clock
	adminEmail string
}

// NewApprovalService создаёт сервис одобрения HR-аккаунтов.
func NewApprovalService(repo ApprovalStore, users ApprovalUsers, notifier Notifier, clk clock.Clock, adminEmail string) *ApprovalService {
	return &ApprovalService{
		repo:       repo,
		users:      users,
		notifier:   notifier,
		clock:      clk,
		adminEmail: adminEmail,
	}
}

// RegisterPending создаёт аккаунт рекрутера со статусом pending и уведомляет
// администратора ссылкой с токеном. Аккаунт и профиль создаются двумя явными
// шагами в одной транзакции.
func (s *ApprovalService) RegisterPending(ctx context.Context, user *models.User, profile *models.HRProfile) error {
	token, err := newApprovalToken()
	if err != nil {
		return fmt.Errorf("approval service: не удалось сгенерировать токен: %w", err)
	}

	user.Role = models.RoleHR
	profile.ApprovalStatus = models.ApprovalPending
	profile.ApprovalToken = token
	profile.RequestedAt = s.clock.Now()

	if err := s.repo.CreateWithUser(ctx, user, profile); err != nil {
		return err
	}

	s.notifier.SendApprovalRequest(s.adminEmail, user.Email, profile.CompanyName, token)
	return nil
}

// Approve одобряет аккаунт по токену. Повторное одобрение идемпотентно:
// статус не меняется и подтверждение повторно не отправляется.
func (s *ApprovalService) Approve(ctx context.Context, token, decidedBy string) (DecisionResult, error) {
	profile, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrApprovalNotFound) {
		return DecisionResult{Outcome: DecisionInvalidToken}, nil
	}
	if err != nil {
		return DecisionResult{}, err
	}

	if profile.ApprovalStatus != models.ApprovalPending {
		return DecisionResult{Outcome: DecisionAlreadyDecided, Status: profile.ApprovalStatus}, nil
	}

	applied, err := s.repo.MarkApproved(ctx, profile.UserID, decidedBy, s.clock.Now())
	if err != nil {
		return DecisionResult{}, err
	}
	if !applied {
		// Конкурентное решение успело раньше.
		return DecisionResult{Outcome: DecisionAlreadyDecided, Status: profile.ApprovalStatus}, nil
	}

	if user, err := s.users.GetByID(ctx, profile.UserID); err == nil {
		s.notifier.SendApprovalDecision(user.Email, true, "")
	}

	return DecisionResult{Outcome: DecisionApplied, Status: models.ApprovalApproved}, nil
}

// Reject отклоняет аккаунт по токену: запись о рекрутере удаляется каскадом,
// причина уходит в уведомление. После отказа токен перестаёт существовать,
// и последующий Approve по нему вернёт InvalidToken.
func (s *ApprovalService) Reject(ctx context.Context, token, decidedBy, reason string) (DecisionResult, error) {
	// Причину пишем в письмо как есть, но ограничиваем длину.
	if r := []rune(reason); len(r) > validation.MaxReasonLength {
		reason = string(r[:validation.MaxReasonLength])
	}

	profile, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrApprovalNotFound) {
		return DecisionResult{Outcome: DecisionInvalidToken}, nil
	}
	if err != nil {
		return DecisionResult{}, err
	}

	if profile.ApprovalStatus != models.ApprovalPending {
		return DecisionResult{Outcome: DecisionAlreadyDecided, Status: profile.ApprovalStatus}, nil
	}

	// Email нужен до удаления: после каскада его уже не достать.
	var email string
	if user, err := s.users.GetByID(ctx, profile.UserID); err == nil {
		email = user.Email
	}

	deleted, err := s.repo.RejectAndDelete(ctx, profile.UserID)
	if errors.Is(err, repository.ErrApprovalNotFound) {
		// Конкурентный отказ успел удалить запись между чтением и удалением.
		return DecisionResult{Outcome: DecisionAlreadyDecided, Status: models.ApprovalRejected}, nil
	}
	if err != nil {
		return DecisionResult{}, err
	}
	if !deleted {
		return DecisionResult{Outcome: DecisionAlreadyDecided, Status: profile.ApprovalStatus}, nil
	}

	if email != "" {
		s.notifier.SendApprovalDecision(email, false, reason)
	}

	return DecisionResult{Outcome: DecisionApplied, Status: models.ApprovalRejected}, nil
}

// StatusFor возвращает статус одобрения для аккаунта рекрутера.
func (s *ApprovalService) StatusFor(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.ApprovalStatus, nil
}

// newApprovalToken возвращает непрозрачный токен с высокой энтропией.
// В отличие от числового кода он доставляется ссылкой и не набирается
// руками, поэтому окна для перебора нет.
func newApprovalToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
