// Package notify доставляет уведомления по email. Отправка асинхронная и
// best-effort: сбой доставки логируется и никогда не влияет на исход
// операции, которая её запросила.
package notify

import (
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"github.com/campusgate/recruitment-backend/internal/goroutine"
	"github.com/campusgate/recruitment-backend/internal/logger"
)

// EmailNotifier шлёт письма через SMTP. Реализует service.Notifier.
type EmailNotifier struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string // внешний адрес портала для ссылок в письмах
}

// NewEmailNotifier создаёт отправителя писем.
func NewEmailNotifier(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail, baseURL string) *EmailNotifier {
	return &EmailNotifier{
		dialer:  gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:    fromEmail,
		baseURL: baseURL,
	}
}

// SendVerificationCode отправляет код подтверждения email.
func (n *EmailNotifier) SendVerificationCode(email, code string) {
	body := fmt.Sprintf(`
		<h3>Подтверждение email</h3>
		<p>Ваш код подтверждения: <strong>%s</strong></p>
		<p>Код действует 10 минут. Если вы не запрашивали код, просто проигнорируйте это письмо.</p>
	`, code)
	n.send(email, "Код подтверждения", body)
}

// SendApprovalRequest уведомляет администратора о новой заявке рекрутера.
func (n *EmailNotifier) SendApprovalRequest(adminEmail, hrEmail, companyName, token string) {
	n.send(adminEmail, "Заявка на HR-доступ", approvalRequestBody(n.baseURL, hrEmail, companyName, token))
}

// SendApprovalDecision сообщает рекрутеру решение по его заявке.
func (n *EmailNotifier) SendApprovalDecision(email string, approved bool, reason string) {
	subject, body := approvalDecisionBody(approved, reason)
	n.send(email, subject, body)
}

// approvalRequestBody собирает письмо администратору. Email, название
// компании и прочий пользовательский ввод экранируются: письмо - HTML,
// и заявка не должна уметь дорисовывать в него собственные ссылки.
func approvalRequestBody(baseURL, hrEmail, companyName, token string) string {
	return fmt.Sprintf(`
		<h3>Новая заявка на HR-доступ</h3>
		<p>Рекрутер %s (компания: %s) запросил доступ к порталу.</p>
		<p><a href="%s/api/hr/approve/%s">Одобрить</a> &nbsp; <a href="%s/api/hr/reject/%s">Отклонить</a></p>
	`, html.EscapeString(hrEmail), html.EscapeString(companyName),
		baseURL, token, baseURL, token)
}

// approvalDecisionBody собирает письмо рекрутеру с решением по заявке.
func approvalDecisionBody(approved bool, reason string) (subject, body string) {
	if approved {
		return "HR-доступ одобрен", `
			<h3>Ваша заявка одобрена</h3>
			<p>Доступ к HR-кабинету открыт, можете войти в систему.</p>
		`
	}
	body = "<h3>Ваша заявка отклонена</h3>"
	if reason != "" {
		body += fmt.Sprintf("<p>Причина: %s</p>", html.EscapeString(reason))
	}
	return "Заявка на HR-доступ отклонена", body
}

// send отправляет письмо в отдельной горутине. Содержимое письма в логи
// не попадает, только адресат и тема.
func (n *EmailNotifier) send(to, subject, body string) {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	goroutine.SafeGo(func() {
		if err := n.dialer.DialAndSend(m); err != nil {
			if logger.Log != nil {
				logger.Log.WithField("to", to).WithField("subject", subject).
					WithError(err).Warn("notify: не удалось отправить письмо")
			}
		}
	})
}
