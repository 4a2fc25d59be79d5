package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campusgate/recruitment-backend/internal/clock"
	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/pkg/apperror"
	"github.com/campusgate/recruitment-backend/internal/repository"
	"github.com/campusgate/recruitment-backend/internal/session"
)

// mockAccounts реализует FlowAccounts поверх map.
type mockAccounts struct {
	users map[string]*models.User
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{users: make(map[string]*models.User)}
}

func (m *mockAccounts) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.users[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

// mockNotifier записывает отправленные уведомления.
type mockNotifier struct {
	codes     map[string]string
	approvals int
	decisions []bool
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{codes: make(map[string]string)}
}

func (m *mockNotifier) SendVerificationCode(email, code string) {
	m.codes[email] = code
}

func (m *mockNotifier) SendApprovalRequest(adminEmail, hrEmail, companyName, token string) {
	m.approvals++
}

func (m *mockNotifier) SendApprovalDecision(email string, approved bool, reason string) {
	m.decisions = append(m.decisions, approved)
}

type flowFixture struct {
	flows    *FlowService
	notifier *mockNotifier
	accounts *mockAccounts
	sessions *session.MemoryStore
	clk      *clock.Fake
}

func newFlowFixture() *flowFixture {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	otp := NewOTPService(newMockOTPStore(), clk, DefaultOTPConfig())
	limiter := NewRateLimitService(newMockRateLimitStore(), clk, DefaultRateLimitConfig())
	sessions := session.NewMemoryStore(30*time.Minute, clk)
	accounts := newMockAccounts()
	notifier := newMockNotifier()
	return &flowFixture{
		flows:    NewFlowService(otp, limiter, sessions, accounts, notifier),
		notifier: notifier,
		accounts: accounts,
		sessions: sessions,
		clk:      clk,
	}
}

func TestFlowService_RegistrationRoundtrip(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	err := f.flows.Start(ctx, "sess-1", FlowRegistration, "student@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("start вернул ошибку: %v", err)
	}

	code, ok := f.notifier.codes["student@example.com"]
	if !ok {
		t.Fatalf("код должен быть отправлен на email")
	}

	res, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, code, "10.0.0.1")
	if err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}
	if res.Outcome != VerifySuccess {
		t.Fatalf("ожидался success, получили %s", res.Outcome)
	}

	// Регистр email при завершении не важен.
	if err := f.flows.ConsumeVerified(ctx, "sess-1", FlowRegistration, "Student@Example.COM"); err != nil {
		t.Fatalf("consume вернул ошибку: %v", err)
	}

	// Потребление одноразовое.
	err = f.flows.ConsumeVerified(ctx, "sess-1", FlowRegistration, "student@example.com")
	if !errors.Is(err, apperror.ErrFlowState) {
		t.Fatalf("повторное потребление должно отклоняться, получили %v", err)
	}
}

func TestFlowService_RegistrationRejectsTakenEmail(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()
	f.accounts.users["taken@example.com"] = &models.User{Email: "taken@example.com"}

	err := f.flows.Start(ctx, "sess-1", FlowRegistration, "taken@example.com", "10.0.0.1")
	if !errors.Is(err, apperror.ErrEmailTaken) {
		t.Fatalf("ожидался отказ по занятому email, получили %v", err)
	}
}

func TestFlowService_PasswordResetDoesNotLeakAccounts(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	// Незарегистрированный адрес: ответ как при успехе, но код не уходит.
	err := f.flows.Start(ctx, "sess-1", FlowPasswordReset, "ghost@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("start для неизвестного email должен выглядеть успешным, получили %v", err)
	}
	if _, ok := f.notifier.codes["ghost@example.com"]; ok {
		t.Fatalf("код не должен отправляться несуществующему аккаунту")
	}

	// Любой код на таком адресе упирается в not_found.
	res, err := f.flows.Submit(ctx, "sess-1", FlowPasswordReset, "123456", "10.0.0.1")
	if err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}
	if res.Outcome != VerifyNotFound {
		t.Fatalf("ожидался not_found, получили %s", res.Outcome)
	}
}

func TestFlowService_ConsumeRequiresSameEmail(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	if err := f.flows.Start(ctx, "sess-1", FlowRegistration, "alice@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("start вернул ошибку: %v", err)
	}
	code := f.notifier.codes["alice@example.com"]
	if _, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, code, "10.0.0.1"); err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}

	// Подтверждённая сессия адреса A не завершает шаг для адреса B.
	err := f.flows.ConsumeVerified(ctx, "sess-1", FlowRegistration, "bob@example.com")
	if !errors.Is(err, apperror.ErrFlowState) {
		t.Fatalf("ожидался отказ по несовпадению email, получили %v", err)
	}
}

func TestFlowService_ConsumeRequiresSameKind(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	if err := f.flows.Start(ctx, "sess-1", FlowRegistration, "alice@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("start вернул ошибку: %v", err)
	}
	code := f.notifier.codes["alice@example.com"]
	if _, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, code, "10.0.0.1"); err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}

	// Сессия, подтверждённая для регистрации, не годится для сброса пароля.
	err := f.flows.ConsumeVerified(ctx, "sess-1", FlowPasswordReset, "alice@example.com")
	if !errors.Is(err, apperror.ErrFlowState) {
		t.Fatalf("ожидался отказ по несовпадению сценария, получили %v", err)
	}
}

func TestFlowService_SubmitWithoutStart(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	_, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, "123456", "10.0.0.1")
	if err == nil {
		t.Fatalf("submit без start должен отклоняться")
	}
}

func TestFlowService_ExpiredCodeRevertsSession(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	if err := f.flows.Start(ctx, "sess-1", FlowRegistration, "alice@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("start вернул ошибку: %v", err)
	}
	code := f.notifier.codes["alice@example.com"]

	f.clk.Advance(11 * time.Minute)
	res, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, code, "10.0.0.1")
	if err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}
	if res.Outcome != VerifyExpired {
		t.Fatalf("ожидался expired, получили %s", res.Outcome)
	}

	// Сессия вернулась к вводу email: повторный submit отклоняется.
	if _, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, code, "10.0.0.1"); err == nil {
		t.Fatalf("после истечения кода сценарий должен начинаться заново")
	}
}

func TestFlowService_SourceLimiterBlocksVerify(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	if err := f.flows.Start(ctx, "sess-1", FlowRegistration, "alice@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("start вернул ошибку: %v", err)
	}
	code := f.notifier.codes["alice@example.com"]

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 3; i++ {
		if _, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, wrong, "10.0.0.1"); err != nil {
			t.Fatalf("попытка %d вернула ошибку: %v", i+1, err)
		}
	}

	// Четвёртая попытка с того же источника блокируется лимитером,
	// даже с правильным кодом.
	_, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, code, "10.0.0.1")
	if !apperror.IsRateLimited(err) {
		t.Fatalf("ожидалась блокировка источника, получили %v", err)
	}
}

func TestFlowService_ConcurrentConsumeSingleWinner(t *testing.T) {
	f := newFlowFixture()
	ctx := context.Background()

	if err := f.flows.Start(ctx, "sess-1", FlowRegistration, "alice@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("start вернул ошибку: %v", err)
	}
	code := f.notifier.codes["alice@example.com"]
	if _, err := f.flows.Submit(ctx, "sess-1", FlowRegistration, code, "10.0.0.1"); err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}

	// Два конкурентных завершающих шага не должны оба увидеть verified:
	// сессию потребляет ровно один.
	const workers = 8
	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.flows.ConsumeVerified(ctx, "sess-1", FlowRegistration, "alice@example.com"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("подтверждённую сессию должен потребить ровно один вызов, потребили %d", wins)
	}
}
