package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quantityLine struct {
	ProductID int64           `json:"product_id" binding:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required,decimal_gt=0"`
	Price     decimal.Decimal `json:"unit_price" binding:"decimal_gte=0"`
}

type quantityRequest struct {
	Note  string         `json:"note" binding:"max=5"`
	Lines []quantityLine `json:"lines" binding:"required,min=1,dive"`
}

func TestSetupValidator_DecimalRules(t *testing.T) {
	SetupValidator()

	t.Run("accepts positive quantity and zero price", func(t *testing.T) {
		req := quantityRequest{Lines: []quantityLine{{ProductID: 1, Quantity: decimal.NewFromInt(3)}}}
		assert.NoError(t, binding.Validator.ValidateStruct(&req))
	})

	t.Run("rejects zero quantity and negative price", func(t *testing.T) {
		req := quantityRequest{Lines: []quantityLine{{
			ProductID: 1,
			Quantity:  decimal.Zero,
			Price:     decimal.NewFromInt(-1),
		}}}
		err := binding.Validator.ValidateStruct(&req)
		require.Error(t, err)

		details, ok := ValidationDetails(err)
		require.True(t, ok)
		require.Len(t, details, 2)
		assert.Equal(t, "lines[0].quantity", details[0].Field)
		assert.Equal(t, "Must be greater than 0", details[0].Message)
		assert.Equal(t, "lines[0].unit_price", details[1].Field)
		assert.Equal(t, "Must be greater than or equal to 0", details[1].Message)
	})

	t.Run("reports json field names", func(t *testing.T) {
		req := quantityRequest{Note: "too long"}
		details, ok := ValidationDetails(binding.Validator.ValidateStruct(&req))
		require.True(t, ok)
		fields := make([]string, len(details))
		for i, d := range details {
			fields[i] = d.Field
		}
		assert.ElementsMatch(t, []string{"note", "lines"}, fields)
	})
}

func TestValidationDetails_IgnoresOtherErrors(t *testing.T) {
	_, ok := ValidationDetails(assert.AnError)
	assert.False(t, ok)
}
