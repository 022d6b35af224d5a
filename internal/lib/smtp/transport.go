package smtp

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"

	"github.com/magabrotheeeer/entitlement-engine/internal/config"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
)

// Transport открывает аутентифицированные SMTP-сессии по настройкам конфигурации.
type Transport struct {
	cfg *config.Config
	log *slog.Logger
}

// NewTransport создает Transport.
func NewTransport(cfg *config.Config, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// session адаптирует *smtp.Client к интерфейсу Session.
type session struct {
	client *smtp.Client
}

func (s *session) Mail(from string) error { return s.client.Mail(from) }
func (s *session) Rcpt(to string) error { return s.client.Rcpt(to) }
func (s *session) Data() (io.WriteCloser, error) { return s.client.Data() }
func (s *session) Quit() error { return s.client.Quit() }
func (s *session) Close() error { return s.client.Close() }

// Connect устанавливает соединение с SMTP-сервером, поднимает STARTTLS
// и проходит аутентификацию. Сервера без STARTTLS отклоняются.
func (t *Transport) Connect() (Session, error) {
	const op = "smtp.Connect"

	addr := net.JoinHostPort(t.cfg.SMTPHost, strconv.Itoa(t.cfg.SMTPPort))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.log.Error("failed to dial SMTP server", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		t.log.Error("failed to create SMTP client", sl.Err(err))
		t.closeQuietly(conn)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		t.log.Error("SMTP server does not support STARTTLS")
		t.closeQuietly(client)
		return nil, fmt.Errorf("%s: server does not support STARTTLS", op)
	}
	tlsConfig := &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		t.log.Error("failed to start TLS", sl.Err(err))
		t.closeQuietly(client)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPassword, t.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		t.log.Error("smtp auth failed", sl.Err(err))
		t.closeQuietly(client)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &session{client: client}, nil
}

// From возвращает адрес отправителя писем.
func (t *Transport) From() string {
	return t.cfg.SMTPUser
}

func (t *Transport) closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		t.log.Error("failed to close SMTP resource", sl.Err(err))
	}
}
