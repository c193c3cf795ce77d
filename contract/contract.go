//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"huddle-chat/domain/event"
)

// EventSink consumes domain events flushed from a conversation's outbox
// after a successful save. Sinks must tolerate being called from the
// service goroutine and return quickly.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}
