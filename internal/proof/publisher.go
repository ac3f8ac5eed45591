package proof

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// TopicProofRecorded is the default topic for recorded proof events
const TopicProofRecorded = "chainauth.proof.recorded"

// RecordedEvent is published once a proof is mined
type RecordedEvent struct {
	ProofID     string    `json:"proof_id"`
	Identity    string    `json:"identity"`
	Address     string    `json:"address"`
	BindingHash string    `json:"binding_hash"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Publisher emits proof events
type Publisher interface {
	PublishRecorded(ctx context.Context, event RecordedEvent) error
}

// WatermillPublisher implements Publisher on any watermill transport
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

var _ Publisher = (*WatermillPublisher)(nil)

// NewWatermillPublisher creates a publisher; an empty topic means TopicProofRecorded
func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	if topic == "" {
		topic = TopicProofRecorded
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

func (p *WatermillPublisher) PublishRecorded(ctx context.Context, event RecordedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("proof_id", event.ProofID)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
