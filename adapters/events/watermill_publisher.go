package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

const (
	// TopicGrantIssued carries one event per minted download grant.
	TopicGrantIssued = "ez.grant.issued"

	// TopicGrantRedeemed carries one event per consumed download grant.
	TopicGrantRedeemed = "ez.grant.redeemed"
)

// GrantEvent is the payload published on grant lifecycle topics.
type GrantEvent struct {
	SubjectID  string `json:"subject_id"`
	ResourceID string `json:"resource_id"`
	Nonce      string `json:"nonce"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishGrantIssued publishes a grant-issued event.
func (p *WatermillPublisher) PublishGrantIssued(ctx context.Context, subjectID, resourceID, nonce string) error {
	return p.publish(TopicGrantIssued, subjectID, resourceID, nonce)
}

// PublishGrantRedeemed publishes a grant-redeemed event.
func (p *WatermillPublisher) PublishGrantRedeemed(ctx context.Context, subjectID, resourceID, nonce string) error {
	return p.publish(TopicGrantRedeemed, subjectID, resourceID, nonce)
}

func (p *WatermillPublisher) publish(topic, subjectID, resourceID, nonce string) error {
	payload, err := json.Marshal(GrantEvent{
		SubjectID:  subjectID,
		ResourceID: resourceID,
		Nonce:      nonce,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(nonce, payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishGrantIssued(ctx context.Context, subjectID, resourceID, nonce string) error {
	return nil
}

func (NopPublisher) PublishGrantRedeemed(ctx context.Context, subjectID, resourceID, nonce string) error {
	return nil
}

var _ ports.EventPublisher = NopPublisher{}
