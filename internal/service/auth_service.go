package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/campusgate/recruitment-backend/internal/clock"
	"github.com/campusgate/recruitment-backend/internal/logger"
	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/pkg/apperror"
	"github.com/campusgate/recruitment-backend/internal/repository"
	repocommon "github.com/campusgate/recruitment-backend/internal/repository/common"
	"github.com/campusgate/recruitment-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLoginAt(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RegisterInput содержит данные студента при завершении регистрации.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// HRRegisterInput содержит данные рекрутера при завершении регистрации.
type HRRegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	Designation string
	Department  string
}

// AuthResult возвращает итог входа или регистрации.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

// AuthService завершает сценарии подтверждения (создание аккаунта, смена
// пароля) и проверяет учётные данные при входе. Завершающий шаг каждого
// сценария заново сверяет состояние сессии через FlowService.
type AuthService struct {
	users     AuthRepository
	approvals *ApprovalService
	flows     *FlowService
	tokens    *TokenManager
	clock     clock.Clock
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users AuthRepository, approvals *ApprovalService, flows *FlowService, tokens *TokenManager, clk clock.Clock) *AuthService {
	return &AuthService{
		users:     users,
		approvals: approvals,
		flows:     flows,
		tokens:    tokens,
		clock:     clk,
	}
}

// CompleteRegistration создаёт аккаунт студента. Требует, чтобы сессия была
// ровно в состоянии verified и подтверждён тот же email.
func (s *AuthService) CompleteRegistration(ctx context.Context, sessionID string, in RegisterInput) (*AuthResult, error) {
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("имя", in.FirstName, 1, validation.MaxNameLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("фамилия", in.LastName, 1, validation.MaxNameLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if err := s.flows.ConsumeVerified(ctx, sessionID, FlowRegistration, in.Email); err != nil {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(passHash),
		Role:         models.RoleStudent,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repocommon.ErrAlreadyExists) {
			return nil, apperror.ErrEmailTaken
		}
		return nil, err
	}

	tokenPair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// CompleteHRRegistration создаёт аккаунт рекрутера в статусе pending.
// Токены не выдаются: вход откроется после одобрения администратором.
func (s *AuthService) CompleteHRRegistration(ctx context.Context, sessionID string, in HRRegisterInput) (*models.User, error) {
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateNonEmpty("название компании", in.CompanyName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("название компании", in.CompanyName, 1, validation.MaxCompanyNameLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("должность", in.Designation, 0, validation.MaxDesignationLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("отдел", in.Department, 0, validation.MaxDepartmentLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if err := s.flows.ConsumeVerified(ctx, sessionID, FlowHRRegistration, in.Email); err != nil {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(passHash),
		Role:         models.RoleHR,
	}
	profile := &models.HRProfile{
		CompanyName: in.CompanyName,
		Designation: in.Designation,
		Department:  in.Department,
	}

	if err := s.approvals.RegisterPending(ctx, user, profile); err != nil {
		if errors.Is(err, repocommon.ErrAlreadyExists) {
			return nil, apperror.ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

// CompletePasswordReset меняет пароль после подтверждённого сброса.
func (s *AuthService) CompletePasswordReset(ctx context.Context, sessionID, email, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if err := s.flows.ConsumeVerified(ctx, sessionID, FlowPasswordReset, email); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Сценарий сброса для незарегистрированного email доходит сюда,
		// только если кода не было; состояние verified для него недостижимо.
		return apperror.ErrFlowState
	}
	if err != nil {
		return err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	return s.users.UpdatePassword(ctx, user.ID, string(passHash))
}

// Login проверяет учётные данные и возвращает токены. Вход рекрутера
// дополнительно требует одобренного аккаунта.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if user.Role == models.RoleHR {
		status, err := s.approvals.StatusFor(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		switch status {
		case models.ApprovalApproved:
			// вход разрешён
		case models.ApprovalPending:
			return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт ожидает одобрения администратора")
		default:
			return nil, apperror.New(apperror.ErrCodeForbidden, "доступ к HR-кабинету не одобрен")
		}
	}

	if err := s.users.UpdateLastLoginAt(ctx, user.ID, s.clock.Now()); err != nil {
		// Не прерываем вход, только фиксируем проблему.
		if logger.Log != nil {
			logger.Log.WithField("user_id", user.ID).WithError(err).Warn("auth service: не удалось обновить last_login_at")
		}
	}

	tokenPair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// CurrentUser возвращает пользователя по идентификатору из токена.
func (s *AuthService) CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// HRApprovalStatus возвращает статус одобрения HR-аккаунта.
func (s *AuthService) HRApprovalStatus(ctx context.Context, id uuid.UUID) (string, error) {
	status, err := s.approvals.StatusFor(ctx, id)
	if errors.Is(err, repository.ErrApprovalNotFound) {
		return "", apperror.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return status, nil
}
