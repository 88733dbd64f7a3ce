package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReference(t *testing.T) {
	t.Run("zero value is NONE", func(t *testing.T) {
		var r Reference
		assert.True(t, r.IsNone())
		assert.Equal(t, ReferenceNone, r.Kind())
		_, ok := r.ID()
		assert.False(t, ok)
		assert.True(t, r.Equal(NoReference()))
	})

	t.Run("document references carry their id", func(t *testing.T) {
		r := StockTakeReference(4)
		id, ok := r.ID()
		assert.True(t, ok)
		assert.Equal(t, int64(4), id)
		assert.Equal(t, "STOCK_TAKE:4", r.String())
		assert.False(t, r.Equal(PickingReference(4)))
	})

	t.Run("parse round trips stored columns", func(t *testing.T) {
		id := int64(9)
		r, err := ParseReference("PICKING", &id)
		require.NoError(t, err)
		assert.True(t, r.Equal(PickingReference(9)))

		none, err := ParseReference("NONE", nil)
		require.NoError(t, err)
		assert.True(t, none.IsNone())
	})

	t.Run("parse rejects invalid combinations", func(t *testing.T) {
		id := int64(9)
		_, err := ParseReference("NONE", &id)
		assert.Error(t, err)
		_, err = ParseReference("RECEIVING", nil)
		assert.Error(t, err)
		_, err = ParseReference("INVOICE", &id)
		assert.Error(t, err)
	})

	t.Run("json shape", func(t *testing.T) {
		data, err := json.Marshal(struct {
			Ref  Reference `json:"ref"`
			None Reference `json:"none"`
		}{Ref: ReceivingReference(2)})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ref":{"kind":"RECEIVING","id":2},"none":null}`, string(data))
	})
}
