package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
)

// SequencingQueue carries sequencing signals from the autopilot sweep.
const SequencingQueue = "autopilot.sequencing"

const followUpQueuePrefix = "followups."

// ErrPoison marks a delivery that can never be processed. The consumer dead-letters it
// instead of requeueing.
var ErrPoison = errors.New("poison message")

// Message is a broker payload.
type Message interface {
	Validate() error
	MessageID() string
}

// Publisher publishes messages to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg Message) error
	Close() error
}

// MessageHandler handles a raw delivery body. Returning an error wrapping ErrPoison
// dead-letters the delivery, any other error requeues it.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer consumes messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// FollowUpQueueName returns the delivery queue for a channel, e.g. followups.letter.
func FollowUpQueueName(channel domain.Channel) string {
	return followUpQueuePrefix + strings.ToLower(channel.String())
}

// DLQName returns the dead-letter queue of a work queue, e.g. dlq.followups.letter.
func DLQName(queue string) string {
	return "dlq." + queue
}

// WorkQueueNames returns every work queue: one per delivery channel plus sequencing.
func WorkQueueNames() []string {
	channels := domain.Channels()
	queues := make([]string, 0, len(channels)+1)
	for _, channel := range channels {
		queues = append(queues, FollowUpQueueName(channel))
	}
	return append(queues, SequencingQueue)
}

func DLQNames() []string {
	work := WorkQueueNames()
	queues := make([]string, 0, len(work))
	for _, q := range work {
		queues = append(queues, DLQName(q))
	}
	return queues
}
