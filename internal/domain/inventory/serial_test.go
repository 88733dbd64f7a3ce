package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialLifecycle(t *testing.T) {
	lot := createTestLot(5, 3, 2, 10, day1)

	t.Run("new serial is in stock and bound to the lot product", func(t *testing.T) {
		s, err := NewSerial("  SN-1 ", lot)
		require.NoError(t, err)
		assert.Equal(t, "SN-1", s.SerialNumber)
		assert.Equal(t, int64(3), s.ProductID)
		assert.Equal(t, int64(5), s.LotID)
		assert.Equal(t, SerialStatusInStock, s.Status)
	})

	t.Run("pick then release clears the binding", func(t *testing.T) {
		s, err := NewSerial("SN-2", lot)
		require.NoError(t, err)

		require.NoError(t, s.Pick(42, time.Now()))
		assert.Equal(t, SerialStatusPicked, s.Status)
		require.NotNil(t, s.PickingDetailID)
		assert.Equal(t, int64(42), *s.PickingDetailID)
		assert.NotNil(t, s.PickedAt)

		require.NoError(t, s.Release())
		assert.Equal(t, SerialStatusInStock, s.Status)
		assert.Nil(t, s.PickingDetailID)
		assert.Nil(t, s.PickedAt)
	})

	t.Run("picked serial cannot be picked again", func(t *testing.T) {
		s, err := NewSerial("SN-3", lot)
		require.NoError(t, err)
		require.NoError(t, s.Pick(1, time.Now()))

		var snErr *SerialNotAvailableError
		assert.True(t, errors.As(s.Pick(2, time.Now()), &snErr))
		assert.Equal(t, "SN-3", snErr.SerialNumber)
	})

	t.Run("damaged and lost are terminal", func(t *testing.T) {
		s, err := NewSerial("SN-4", lot)
		require.NoError(t, err)
		require.NoError(t, s.MarkIssue(SerialStatusDamaged))

		assert.Error(t, s.Pick(1, time.Now()))
		assert.Error(t, s.MarkIssue(SerialStatusLost))
		assert.Error(t, s.Release())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := NewSerial("", lot)
		assert.Error(t, err)
		_, err = NewSerial("SN", &Lot{ProductID: 3, QuantityIn: decimal.NewFromInt(1)})
		assert.Error(t, err)

		s, err := NewSerial("SN-5", lot)
		require.NoError(t, err)
		assert.Error(t, s.MarkIssue(SerialStatusPicked))
	})
}
