package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// NewMessageTaskType is the queue task name consumed by the push-notification
// worker fleet.
const NewMessageTaskType = "notification:new_message"

// NewMessagePayload is the JSON payload transported via the queue.
type NewMessagePayload struct {
	RecipientID       int    `json:"recipient_id"`
	SenderID          int    `json:"sender_id"`
	SenderDisplayName string `json:"sender_display_name"`
}

// Notifier hands new-message notifications to the external notification
// collaborator. Callers treat it as fire-and-forget.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, recipientID, senderID int, senderDisplayName string) error
	Close() error
}

// New builds an asynq-backed notifier, or a noop notifier when the redis URL
// is empty or unparseable.
func New(redisURL string) Notifier {
	if redisURL == "" {
		log.Printf("notifier disabled, using noop: empty redis url")
		return noopNotifier{}
	}

	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		log.Printf("notifier disabled, using noop: %v", err)
		return noopNotifier{}
	}

	log.Printf("notifier connected")
	return &asynqNotifier{client: asynq.NewClient(opt)}
}

type asynqNotifier struct {
	client *asynq.Client
}

func (n *asynqNotifier) NotifyNewMessage(ctx context.Context, recipientID, senderID int, senderDisplayName string) error {
	payload, err := json.Marshal(NewMessagePayload{
		RecipientID:       recipientID,
		SenderID:          senderID,
		SenderDisplayName: senderDisplayName,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(NewMessageTaskType, payload)
	_, err = n.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	return err
}

func (n *asynqNotifier) Close() error {
	return n.client.Close()
}

type noopNotifier struct{}

func (noopNotifier) NotifyNewMessage(ctx context.Context, recipientID, senderID int, senderDisplayName string) error {
	log.Printf("notifier noop: new message recipient=%d sender=%d", recipientID, senderID)
	return nil
}

func (noopNotifier) Close() error { return nil }
