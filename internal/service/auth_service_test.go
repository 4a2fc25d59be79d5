package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusgate/recruitment-backend/internal/clock"
	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/pkg/apperror"
	"github.com/campusgate/recruitment-backend/internal/repository"
	"github.com/campusgate/recruitment-backend/internal/session"
)

// mockUserRepository реализует AuthRepository и FlowAccounts для тестов.
type mockUserRepository struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		byEmail: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.IsActive = true
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.byEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.byID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if user, ok := m.byID[id]; ok {
		user.PasswordHash = passwordHash
		return nil
	}
	return repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdateLastLoginAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	if user, ok := m.byID[id]; ok {
		user.LastLoginAt = &at
	}
	return nil
}

type authFixture struct {
	auth      *AuthService
	flows     *FlowService
	approvals *ApprovalService
	users     *mockUserRepository
	hrStore   *mockApprovalStore
	notifier  *mockNotifier
	clk       *clock.Fake
}

func newAuthFixture() *authFixture {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	users := newMockUserRepository()
	notifier := newMockNotifier()
	otp := NewOTPService(newMockOTPStore(), clk, DefaultOTPConfig())
	limiter := NewRateLimitService(newMockRateLimitStore(), clk, DefaultRateLimitConfig())
	sessions := session.NewMemoryStore(30*time.Minute, clk)
	flows := NewFlowService(otp, limiter, sessions, users, notifier)
	hrStore := newMockApprovalStore()
	approvals := NewApprovalService(hrStore, hrStore, notifier, clk, "admin@college.edu")
	tokens := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	return &authFixture{
		auth:      NewAuthService(users, approvals, flows, tokens, clk),
		flows:     flows,
		approvals: approvals,
		users:     users,
		hrStore:   hrStore,
		notifier:  notifier,
		clk:       clk,
	}
}

// passFlow проводит сессию через выдачу и проверку кода до состояния verified.
func passFlow(t *testing.T, f *authFixture, kind FlowKind, sessionID, email string) {
	t.Helper()
	ctx := context.Background()
	if err := f.flows.Start(ctx, sessionID, kind, email, "10.0.0.1"); err != nil {
		t.Fatalf("start вернул ошибку: %v", err)
	}
	res, err := f.flows.Submit(ctx, sessionID, kind, f.notifier.codes[email], "10.0.0.1")
	if err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}
	if res.Outcome != VerifySuccess {
		t.Fatalf("код должен пройти проверку, получили %s", res.Outcome)
	}
}

func TestAuthService_CompleteRegistrationRequiresVerification(t *testing.T) {
	f := newAuthFixture()

	_, err := f.auth.CompleteRegistration(context.Background(), "sess-1", RegisterInput{
		Email:     "student@example.com",
		Password:  "Passw0rd123",
		FirstName: "Иван",
		LastName:  "Петров",
	})
	if !errors.Is(err, apperror.ErrFlowState) {
		t.Fatalf("без подтверждённой сессии регистрация должна отклоняться, получили %v", err)
	}
}

func TestAuthService_RegistrationRoundtrip(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	passFlow(t, f, FlowRegistration, "sess-1", "student@example.com")

	res, err := f.auth.CompleteRegistration(ctx, "sess-1", RegisterInput{
		Email:     "student@example.com",
		Password:  "Passw0rd123",
		FirstName: "Иван",
		LastName:  "Петров",
	})
	if err != nil {
		t.Fatalf("complete вернул ошибку: %v", err)
	}
	if res.User.Role != models.RoleStudent {
		t.Fatalf("ожидалась роль student, получили %s", res.User.Role)
	}
	if res.TokenPair == nil || res.TokenPair.AccessToken == "" {
		t.Fatalf("студент должен получить токены сразу")
	}

	login, err := f.auth.Login(ctx, "student@example.com", "Passw0rd123")
	if err != nil {
		t.Fatalf("login вернул ошибку: %v", err)
	}
	if login.User.ID != res.User.ID {
		t.Fatalf("login должен вернуть того же пользователя")
	}
}

func TestAuthService_HRLoginGatedByApproval(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	passFlow(t, f, FlowHRRegistration, "sess-1", "hr@acme.com")

	user, err := f.auth.CompleteHRRegistration(ctx, "sess-1", HRRegisterInput{
		Email:       "hr@acme.com",
		Password:    "Passw0rd123",
		FirstName:   "Анна",
		LastName:    "Смирнова",
		CompanyName: "Acme",
	})
	if err != nil {
		t.Fatalf("complete вернул ошибку: %v", err)
	}
	if user.Role != models.RoleHR {
		t.Fatalf("ожидалась роль hr, получили %s", user.Role)
	}

	// Профиль создаётся в HR-хранилище; пользователь виден в общем.
	f.users.byEmail[user.Email] = user
	f.users.byID[user.ID] = user

	// До одобрения вход запрещён.
	_, err = f.auth.Login(ctx, "hr@acme.com", "Passw0rd123")
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.ErrCodeForbidden {
		t.Fatalf("вход pending-рекрутера должен быть запрещён, получили %v", err)
	}

	token := f.hrStore.profiles[user.ID].ApprovalToken
	if _, err := f.approvals.Approve(ctx, token, "admin"); err != nil {
		t.Fatalf("approve вернул ошибку: %v", err)
	}

	res, err := f.auth.Login(ctx, "hr@acme.com", "Passw0rd123")
	if err != nil {
		t.Fatalf("вход одобренного рекрутера вернул ошибку: %v", err)
	}
	if res.TokenPair == nil || res.TokenPair.AccessToken == "" {
		t.Fatalf("одобренный рекрутер должен получить токены")
	}
}

func TestAuthService_PasswordResetRoundtrip(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	oldHash, _ := bcrypt.GenerateFromPassword([]byte("OldPassw0rd"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "student@example.com",
		PasswordHash: string(oldHash),
		Role:         models.RoleStudent,
		IsActive:     true,
	}
	f.users.byEmail[user.Email] = user
	f.users.byID[user.ID] = user

	passFlow(t, f, FlowPasswordReset, "sess-1", "student@example.com")

	err := f.auth.CompletePasswordReset(ctx, "sess-1", "student@example.com", "NewPassw0rd1")
	if err != nil {
		t.Fatalf("reset вернул ошибку: %v", err)
	}

	if _, err := f.auth.Login(ctx, "student@example.com", "OldPassw0rd"); err == nil {
		t.Fatalf("старый пароль больше не должен подходить")
	}
	if _, err := f.auth.Login(ctx, "student@example.com", "NewPassw0rd1"); err != nil {
		t.Fatalf("новый пароль должен подходить: %v", err)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Passw0rd123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "student@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		IsActive:     true,
	}
	f.users.byEmail[user.Email] = user
	f.users.byID[user.ID] = user

	_, err := f.auth.Login(ctx, "student@example.com", "wrong-password")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("неверный пароль должен давать отказ в аутентификации, получили %v", err)
	}

	_, err = f.auth.Login(ctx, "ghost@example.com", "Passw0rd123")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("неизвестный email должен давать тот же отказ, получили %v", err)
	}
}

func TestAuthService_HRApprovalStatus(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	passFlow(t, f, FlowHRRegistration, "sess-1", "hr@acme.com")

	user, err := f.auth.CompleteHRRegistration(ctx, "sess-1", HRRegisterInput{
		Email:       "hr@acme.com",
		Password:    "Passw0rd123",
		FirstName:   "Анна",
		LastName:    "Смирнова",
		CompanyName: "Acme",
	})
	if err != nil {
		t.Fatalf("complete вернул ошибку: %v", err)
	}

	status, err := f.auth.HRApprovalStatus(ctx, user.ID)
	if err != nil {
		t.Fatalf("статус вернул ошибку: %v", err)
	}
	if status != models.ApprovalPending {
		t.Fatalf("ожидался статус pending, получили %s", status)
	}

	token := f.hrStore.profiles[user.ID].ApprovalToken
	if _, err := f.approvals.Approve(ctx, token, "admin"); err != nil {
		t.Fatalf("approve вернул ошибку: %v", err)
	}

	status, err = f.auth.HRApprovalStatus(ctx, user.ID)
	if err != nil {
		t.Fatalf("статус после одобрения вернул ошибку: %v", err)
	}
	if status != models.ApprovalApproved {
		t.Fatalf("ожидался статус approved, получили %s", status)
	}

	// Для аккаунта без HR-профиля статус не существует.
	if _, err := f.auth.HRApprovalStatus(ctx, uuid.New()); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Fatalf("ожидался отказ для неизвестного аккаунта, получили %v", err)
	}
}
