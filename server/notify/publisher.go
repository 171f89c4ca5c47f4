package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tenantdesk/server/domain"
)

const alertsExchange = "maintenance.alerts"

// AlertEvent is published for every emergency intake so on-call
// property managers can be paged by a downstream consumer.
type AlertEvent struct {
	MessageID    int            `json:"messageId"`
	TenantID     int            `json:"tenantId"`
	TenantName   string         `json:"tenantName,omitempty"`
	PropertyName string         `json:"propertyName,omitempty"`
	UnitNumber   string         `json:"unitNumber,omitempty"`
	Channel      domain.Channel `json:"channel"`
	Urgency      domain.Urgency `json:"urgency"`
	Summary      string         `json:"summary,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AlertPublisher writes alert events to a topic exchange, routing key
// "message.<urgency>".
type AlertPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAlertPublisher(url string) (*AlertPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(alertsExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AlertPublisher{conn: conn, channel: ch}, nil
}

func (p *AlertPublisher) PublishAlert(ctx context.Context, msg domain.Message) error {
	event := AlertEvent{
		MessageID:    msg.ID,
		TenantID:     msg.TenantID,
		TenantName:   msg.Metadata.TenantName,
		PropertyName: msg.Metadata.PropertyName,
		UnitNumber:   msg.Metadata.UnitNumber,
		Channel:      msg.Channel,
		Urgency:      msg.Urgency,
		Summary:      msg.AISummary,
		CreatedAt:    msg.CreatedAt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, alertsExchange, "message."+string(msg.Urgency), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
}

func (p *AlertPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
