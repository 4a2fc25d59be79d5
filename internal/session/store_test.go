package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campusgate/recruitment-backend/internal/clock"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(30*time.Minute, clk)

	store.Put("sess-1", State{Kind: "register", Stage: "awaiting_code", Email: "a@b.c"})

	st, ok := store.Get("sess-1")
	if !ok {
		t.Fatalf("запись должна находиться")
	}
	if st.Email != "a@b.c" || st.Stage != "awaiting_code" {
		t.Fatalf("состояние должно сохраняться как есть, получили %+v", st)
	}

	store.Delete("sess-1")
	if _, ok := store.Get("sess-1"); ok {
		t.Fatalf("удалённая запись не должна находиться")
	}
}

func TestMemoryStore_ExpiresLazily(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(30*time.Minute, clk)

	store.Put("sess-1", State{Kind: "register", Stage: "verified", Email: "a@b.c"})

	clk.Advance(31 * time.Minute)
	if _, ok := store.Get("sess-1"); ok {
		t.Fatalf("истёкшая сессия не должна возвращаться")
	}
}

func TestMemoryStore_PutRefreshesTTL(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(30*time.Minute, clk)

	store.Put("sess-1", State{Kind: "register", Stage: "awaiting_email"})
	clk.Advance(20 * time.Minute)
	store.Put("sess-1", State{Kind: "register", Stage: "awaiting_code", Email: "a@b.c"})
	clk.Advance(20 * time.Minute)

	// Запись переиздана на 20-й минуте, поэтому на 40-й ещё жива.
	if _, ok := store.Get("sess-1"); !ok {
		t.Fatalf("переизданная сессия должна быть жива")
	}
}

func TestNewToken_Unique(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("не удалось выдать токен: %v", err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("не удалось выдать токен: %v", err)
	}
	if a == b {
		t.Fatalf("токены сессий должны различаться")
	}
	if len(a) != 64 {
		t.Fatalf("ожидался hex от 32 байт, длина %d", len(a))
	}
}

func TestMemoryStore_TakeIfConsumesOnce(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(30*time.Minute, clk)

	store.Put("sess-1", State{Kind: "register", Stage: "verified", Email: "a@b.c"})

	st, ok := store.TakeIf("sess-1", func(st State) bool { return st.Stage == "verified" })
	if !ok || st.Email != "a@b.c" {
		t.Fatalf("первое потребление должно вернуть состояние, получили %+v, %v", st, ok)
	}
	if _, ok := store.TakeIf("sess-1", func(State) bool { return true }); ok {
		t.Fatalf("повторное потребление не должно находить запись")
	}
}

func TestMemoryStore_TakeIfKeepsEntryOnFalse(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(30*time.Minute, clk)

	store.Put("sess-1", State{Kind: "register", Stage: "awaiting_code", Email: "a@b.c"})

	if _, ok := store.TakeIf("sess-1", func(st State) bool { return st.Stage == "verified" }); ok {
		t.Fatalf("несработавший предикат не должен потреблять запись")
	}
	if _, ok := store.Get("sess-1"); !ok {
		t.Fatalf("запись должна остаться после несработавшего предиката")
	}
}

func TestMemoryStore_TakeIfSkipsExpired(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(30*time.Minute, clk)

	store.Put("sess-1", State{Kind: "register", Stage: "verified", Email: "a@b.c"})

	clk.Advance(31 * time.Minute)
	if _, ok := store.TakeIf("sess-1", func(State) bool { return true }); ok {
		t.Fatalf("истёкшая запись не должна потребляться")
	}
}

func TestMemoryStore_TakeIfSingleWinner(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(30*time.Minute, clk)

	store.Put("sess-1", State{Kind: "register", Stage: "verified", Email: "a@b.c"})

	const workers = 16
	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := store.TakeIf("sess-1", func(st State) bool { return st.Stage == "verified" }); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("сессию должен потребить ровно один вызов, потребили %d", wins)
	}
}
