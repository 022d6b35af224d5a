// Package sender отправляет письма пользователям по сообщениям из брокера.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/smtp"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Service читает уведомления биллинга и рассылает письма через SMTP транспорт.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, transport smtp.TransportInterface) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// HandleNotification разбирает сообщение из очереди и отправляет письмо,
// соответствующее виду уведомления. Сообщения неизвестного вида подтверждаются
// без отправки, чтобы не зациклить очередь.
func (s *Service) HandleNotification(body []byte) error {
	var message models.Notification
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if message.Email == "" {
		s.log.Warn("notification without email, skipping",
			slog.String("kind", string(message.Kind)),
			slog.String("user_uid", message.UserUID))
		return nil
	}

	switch message.Kind {
	case models.NotifyCancelScheduled:
		return s.sendCancelScheduled(message)
	case models.NotifySubscriptionEnded:
		return s.sendSubscriptionEnded(message)
	case models.NotifyTrialExpiringSoon:
		return s.sendTrialExpiringSoon(message)
	default:
		s.log.Warn("unknown notification kind, skipping", slog.String("kind", string(message.Kind)))
		return nil
	}
}

func (s *Service) sendCancelScheduled(message models.Notification) error {
	subject := "Автопродление Pro-доступа отключено"
	bodyText := "Здравствуйте!\n\nАвтопродление вашего Pro-доступа отключено."
	if message.EndsAt != nil {
		bodyText = fmt.Sprintf(
			"Здравствуйте!\n\nАвтопродление вашего Pro-доступа отключено.\nДоступ сохранится до %s, после чего подписка завершится.",
			message.EndsAt.Format("02.01.2006"))
	}
	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

func (s *Service) sendSubscriptionEnded(message models.Notification) error {
	subject := "Ваш Pro-доступ завершился"
	bodyText := "Здравствуйте!\n\nВаша подписка завершилась, и Pro-доступ отключен.\nЧтобы вернуть Pro-доступ, оформите подписку заново."
	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

func (s *Service) sendTrialExpiringSoon(message models.Notification) error {
	subject := "Пробный период скоро закончится"
	bodyText := "Здравствуйте!\n\nВаш пробный период скоро закончится."
	if message.EndsAt != nil {
		bodyText = fmt.Sprintf(
			"Здравствуйте!\n\nВаш пробный период закончится %s.\nЧтобы сохранить Pro-доступ, оформите подписку до этой даты.",
			message.EndsAt.Format("02.01.2006"))
	}
	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.From(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			s.log.Debug("failed to close SMTP client", sl.Err(closeErr))
		}
	}()

	if err := client.Mail(s.transport.From()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.From()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to open DATA writer", sl.Err(err))
		return err
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err := wc.Close(); err != nil {
		s.log.Error("failed to close DATA writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
