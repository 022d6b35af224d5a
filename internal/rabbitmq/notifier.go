package rabbitmq

import (
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Notifier публикует уведомления биллинга в exchange уведомлений.
type Notifier struct {
	ch         *amqp.Channel
	routingKey string
}

// NewNotifier создает новый экземпляр Notifier.
func NewNotifier(ch *amqp.Channel, routingKey string) *Notifier {
	return &Notifier{ch: ch, routingKey: routingKey}
}

// PublishNotification отправляет уведомление в брокер.
func (n *Notifier) PublishNotification(msg models.Notification) error {
	return PublishMessage(n.ch, NotificationExchange, n.routingKey, msg)
}
