package clock

import (
	"sync"
	"time"
)

// Clock отдаёт текущее время. Все расчёты истечения и окон в сервисах идут
// через этот интерфейс, чтобы в тестах время можно было проматывать.
type Clock interface {
	Now() time.Time
}

// System возвращает реальное время системы.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fake — управляемые часы для тестов.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake создаёт часы, остановленные на заданном моменте.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance проматывает время вперёд.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
