// Package session хранит состояние многошаговых проверочных сценариев между
// запросами одного клиента. Хранилище непрозрачное для ядра: сервисам важен
// только контракт Get/Put/Delete по ключу сессии.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/campusgate/recruitment-backend/internal/clock"
)

// State — текущий шаг сценария подтверждения для одной сессии.
type State struct {
	Kind  string // какой сценарий идёт: регистрация, HR, сброс пароля
	Stage string // awaiting_email / awaiting_code / verified
	Email string // email, который подтверждается
}

// Store — контракт хранилища состояний сессий.
type Store interface {
	Get(id string) (State, bool)
	Put(id string, state State)
	Delete(id string)
	// TakeIf атомарно потребляет запись: если она жива и pred вернул true,
	// запись удаляется и возвращается вызвавшему. Из конкурентных вызовов
	// для одного id состояние достаётся ровно одному.
	TakeIf(id string, pred func(State) bool) (State, bool)
}

// MemoryStore — потокобезопасное хранилище в памяти с TTL. Записи истекают
// лениво при чтении; непотреблённый флаг verified просто исчезает вместе
// с сессией и никакого доступа не даёт.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[string]entry
}

type entry struct {
	state     State
	expiresAt time.Time
}

// NewMemoryStore создаёт хранилище с заданным сроком жизни записей.
func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]entry),
	}
}

func (s *MemoryStore) Get(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return State{}, false
	}
	if s.clock.Now().After(e.expiresAt) {
		delete(s.entries, id)
		return State{}, false
	}
	return e.state, true
}

func (s *MemoryStore) Put(id string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = entry{
		state:     state,
		expiresAt: s.clock.Now().Add(s.ttl),
	}
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// TakeIf проверяет и удаляет запись под одной блокировкой.
func (s *MemoryStore) TakeIf(id string, pred func(State) bool) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return State{}, false
	}
	if s.clock.Now().After(e.expiresAt) {
		delete(s.entries, id)
		return State{}, false
	}
	if !pred(e.state) {
		return State{}, false
	}
	delete(s.entries, id)
	return e.state, true
}

// NewToken возвращает случайный идентификатор сессии.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
