// Package smtp отправляет письма биллинговых уведомлений через SMTP
// с обязательным STARTTLS.
package smtp

import "io"

// Session — открытая SMTP-сессия. Повторяет методы *smtp.Client,
// используемые отправителем, и позволяет подменять сессию в тестах.
type Session interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает SMTP-сессии и сообщает адрес отправителя.
type TransportInterface interface {
	Connect() (Session, error)
	From() string
}
