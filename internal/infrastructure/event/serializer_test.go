package event

import (
	"testing"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer(t *testing.T) {
	t.Run("restores a registered event with its identity", func(t *testing.T) {
		s := NewEventSerializer()
		s.Register("test.created", &testEvent{})
		original := newTestEvent("test.created")
		original.Data = "payload"

		data, err := s.Serialize(original)
		require.NoError(t, err)

		restored, err := s.Deserialize("test.created", data)
		require.NoError(t, err)
		got, ok := restored.(*testEvent)
		require.True(t, ok)
		assert.Equal(t, original.EventID(), got.EventID())
		assert.Equal(t, "payload", got.Data)
		assert.Equal(t, "1", got.AggregateID())
	})

	t.Run("rejects unknown event types", func(t *testing.T) {
		s := NewEventSerializer()

		_, err := s.Deserialize("nope", []byte(`{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event type")
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		s := NewEventSerializer()
		s.Register("test.created", &testEvent{})

		_, err := s.Deserialize("test.created", []byte(`{`))
		require.Error(t, err)
	})
}

func TestRegisterAllEvents(t *testing.T) {
	s := NewEventSerializer()
	RegisterAllEvents(s)

	assert.Equal(t, []string{
		inventory.EventTypeDamageRecorded,
		inventory.EventTypeReturnOrderRequested,
	}, s.RegisteredTypes())

	partner := int64(4)
	rec, err := inventory.NewDamageRecord(9, &partner, nil, decimal.RequireFromString("2.5"),
		"crushed", inventory.DamageSourceStockTake, 3, "auditor")
	require.NoError(t, err)
	rec.ID = 17

	data, err := s.Serialize(inventory.NewDamageRecordedEvent(rec))
	require.NoError(t, err)
	restored, err := s.Deserialize(inventory.EventTypeDamageRecorded, data)
	require.NoError(t, err)

	got, ok := restored.(*inventory.DamageRecordedEvent)
	require.True(t, ok)
	assert.True(t, got.Quantity.Equal(decimal.RequireFromString("2.5")))
	require.NotNil(t, got.PartnerID)
	assert.Equal(t, int64(4), *got.PartnerID)
}
