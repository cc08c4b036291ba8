package services

import (
	"context"
	"fmt"
	"time"

	"bankcards/config"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Sender отправляет готовое письмо. Реализуется *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService отправляет уведомления службе безопасности
type EmailService struct {
	sender Sender
	from   string
	to     string
	now    func() time.Time
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)
	return NewEmailServiceWithSender(dialer, cfg.SMTP.From, cfg.SecurityNotifyEmail)
}

// NewEmailServiceWithSender создает EmailService с произвольным способом отправки
func NewEmailServiceWithSender(sender Sender, from, to string) *EmailService {
	return &EmailService{
		sender: sender,
		from:   from,
		to:     to,
		now:    time.Now,
	}
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %w", err)
	}
	return nil
}

// NotifyCardBlocked сообщает о блокировке карты владельцем.
// Номер карты в письмо не попадает.
func (s *EmailService) NotifyCardBlocked(ctx context.Context, cardID, userID uuid.UUID) error {
	subject := "Карта заблокирована владельцем"
	body := fmt.Sprintf(`
		<h2>Блокировка карты</h2>
		<p>Карта: %s</p>
		<p>Пользователь: %s</p>
		<p>Дата: %s</p>
	`, cardID, userID, s.now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(ctx, subject, body)
}
