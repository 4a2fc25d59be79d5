package goroutine

import (
	"runtime/debug"

	"github.com/campusgate/recruitment-backend/internal/logger"
)

// SafeGo запускает горутину с обработкой panic. Используется для
// fire-and-forget задач вроде отправки писем: паника в них не должна
// ронять процесс.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		if logger.Log != nil {
			logger.Log.WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				Error("goroutine: panic в фоновой задаче")
		}
	}
}
