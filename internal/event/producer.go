package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	pkgkafka "github.com/satrioramadhan/scansek-api/pkg/kafka"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
)

// Kafka topics for account domain events.
var (
	TopicAccountRegistered     = pkgkafka.Topic("account", "registered")
	TopicAccountVerified       = pkgkafka.Topic("account", "verified")
	TopicAccountPasswordReset  = pkgkafka.Topic("account", "password_reset")
	TopicAccountProfileUpdated = pkgkafka.Topic("account", "profile_updated")
)

// AggregateTypeAccount is the aggregate type of every account event.
const AggregateTypeAccount = "account"

// SourceAPI identifies events originating from this service.
const SourceAPI = "scansek-api"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Method   string `json:"method"`
}

// Registration methods carried in AccountRegisteredData.
const (
	MethodPassword = "password"
	MethodGoogle   = "google"
)

// AccountVerifiedData is the payload for an account.verified event.
type AccountVerifiedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AccountPasswordResetData is the payload for an account.password_reset event.
type AccountPasswordResetData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AccountProfileUpdatedData is the payload for an account.profile_updated event.
type AccountProfileUpdatedData struct {
	ID     string   `json:"id"`
	Email  string   `json:"email"`
	Fields []string `json:"fields"`
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes account domain events to Kafka. A Producer built
// without a Kafka producer drops every event.
type Producer struct {
	kafka  eventPublisher
	logger *slog.Logger
}

// NewProducer creates a new account event producer. k may be nil when Kafka
// is not configured.
func NewProducer(k *pkgkafka.Producer, l *slog.Logger) *Producer {
	p := &Producer{logger: l}
	if k != nil {
		p.kafka = k
	}
	return p
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, a *domain.Account, method string) error {
	return p.publish(ctx, TopicAccountRegistered, a, AccountRegisteredData{
		ID:       a.ID,
		Email:    a.Email,
		Username: a.Username,
		Method:   method,
	})
}

// PublishAccountVerified publishes an account.verified event.
func (p *Producer) PublishAccountVerified(ctx context.Context, a *domain.Account) error {
	return p.publish(ctx, TopicAccountVerified, a, AccountVerifiedData{ID: a.ID, Email: a.Email})
}

// PublishPasswordReset publishes an account.password_reset event.
func (p *Producer) PublishPasswordReset(ctx context.Context, a *domain.Account) error {
	return p.publish(ctx, TopicAccountPasswordReset, a, AccountPasswordResetData{ID: a.ID, Email: a.Email})
}

// PublishProfileUpdated publishes an account.profile_updated event naming
// the changed fields. Password changes are reported by name only.
func (p *Producer) PublishProfileUpdated(ctx context.Context, a *domain.Account, fields []string) error {
	return p.publish(ctx, TopicAccountProfileUpdated, a, AccountProfileUpdatedData{
		ID:     a.ID,
		Email:  a.Email,
		Fields: fields,
	})
}

func (p *Producer) publish(ctx context.Context, topic string, a *domain.Account, data any) error {
	if p.kafka == nil {
		return nil
	}

	ev, err := pkgkafka.NewEvent(topic, a.ID, AggregateTypeAccount, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	ev.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published account event",
		slog.String("topic", topic),
		slog.String("account_id", a.ID),
	)

	return nil
}
