package service

// Notifier доставляет письма. Доставка асинхронная и best-effort: ошибка
// доставки не считается ошибкой операции, не возвращается вызывающему
// и логируется самим отправителем. Коды и токены в логи не попадают.
type Notifier interface {
	SendVerificationCode(email, code string)
	SendApprovalRequest(adminEmail, hrEmail, companyName, token string)
	SendApprovalDecision(email string, approved bool, reason string)
}
