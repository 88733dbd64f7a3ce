package event

import (
	"github.com/erp/warehouse/internal/domain/inventory"
)

// RegisterAllEvents registers every event type written to the outbox so the
// relay can decode them
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(inventory.EventTypeDamageRecorded, &inventory.DamageRecordedEvent{})
	serializer.Register(inventory.EventTypeReturnOrderRequested, &inventory.ReturnOrderRequestedEvent{})
}
