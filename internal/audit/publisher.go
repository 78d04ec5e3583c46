package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"asha-portal/internal/client"
	"asha-portal/internal/util"
)

// Security event types emitted by the auth flow.
const (
	EventLoginFailed   = "login_failed"
	EventAccountLocked = "account_locked"
	EventOTPIssued     = "otp_issued"
	EventOTPFailed     = "otp_failed"
	EventOTPVerified   = "otp_verified"
	EventLogout        = "logout"
)

// Event is the record published for each security-relevant action.
type Event struct {
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	EventType string    `json:"event_type"`
	EventTime time.Time `json:"event_time"`
	IPAddress string    `json:"ip_address,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Publisher records security events. Publishing is fire-and-forget: a failed
// publish is logged, never surfaced to the auth flow.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// KafkaPublisher writes events to the security events topic.
type KafkaPublisher struct {
	producer *client.KafkaProducer
	topic    string
}

func NewKafkaPublisher(producer *client.KafkaProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to marshal security event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return
	}

	if err := p.producer.Publish(ctx, p.topic, []byte(event.UserID), payload); err != nil {
		util.Error("Failed to publish security event",
			zap.String("event_type", event.EventType),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}

	util.Debug("Security event published",
		zap.String("event_type", event.EventType),
		zap.String("user_id", event.UserID))
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) {}
