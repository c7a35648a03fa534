package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Publisher is the subset of the message queue used to hand codes to the
// mailer worker.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// CodeMessage is the payload placed on the delivery queue.
type CodeMessage struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Code     string `json:"code"`
}

// QueueDeliverer enqueues codes for asynchronous sending. Delivery counts as
// successful once the broker accepts the message.
type QueueDeliverer struct {
	publisher Publisher
	channel   string
}

func NewQueueDeliverer(publisher Publisher, channel string) *QueueDeliverer {
	return &QueueDeliverer{publisher: publisher, channel: channel}
}

func (d *QueueDeliverer) Deliver(ctx context.Context, address, code, username string) error {
	data, err := json.Marshal(CodeMessage{Address: address, Username: username, Code: code})
	if err != nil {
		return err
	}
	if _, err := d.publisher.Publish(ctx, d.channel, data, map[string]string{"type": "otp.code"}); err != nil {
		return fmt.Errorf("enqueue code: %w", err)
	}
	return nil
}

// DecodeCodeMessage parses a delivery queue payload.
func DecodeCodeMessage(data []byte) (CodeMessage, error) {
	var msg CodeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return CodeMessage{}, err
	}
	if msg.Address == "" || msg.Code == "" {
		return CodeMessage{}, errors.New("incomplete code message")
	}
	return msg, nil
}
