package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePartner(t *testing.T) {
	tests := []struct {
		name    string
		partner *Partner
		wantErr error
	}{
		{
			name:    "valid partner",
			partner: &Partner{Name: "Acme", Description: Text("widgets")},
		},
		{
			name:    "nil partner",
			partner: nil,
			wantErr: ErrValidation,
		},
		{
			name:    "blank name",
			partner: &Partner{Name: "   "},
			wantErr: ErrEmptyName,
		},
		{
			name:    "invalid utf8 in description",
			partner: &Partner{Name: "Acme", Description: Text("bad \xff")},
			wantErr: ErrInvalidText,
		},
		{
			name:    "empty attribute key",
			partner: &Partner{Name: "Acme", AdditionalData: Attributes{{Key: "", Value: NullValue()}}},
			wantErr: ErrEmptyAttributeKey,
		},
		{
			name: "duplicate attribute key",
			partner: &Partner{Name: "Acme", AdditionalData: Attributes{
				{Key: "a", Value: NullValue()},
				{Key: "a", Value: BoolValue(true)},
			}},
			wantErr: ErrDuplicateAttributeKey,
		},
		{
			name: "nested duplicate key",
			partner: &Partner{Name: "Acme", AdditionalData: Attributes{
				{Key: "o", Value: ObjectValue(Attributes{{Key: "x", Value: NullValue()}, {Key: "x", Value: NullValue()}})},
			}},
			wantErr: ErrDuplicateAttributeKey,
		},
		{
			name:    "NaN attribute",
			partner: &Partner{Name: "Acme", AdditionalData: Attributes{{Key: "score", Value: NumberValue(math.NaN())}}},
			wantErr: ErrNonFiniteNumber,
		},
		{
			name:    "infinite attribute",
			partner: &Partner{Name: "Acme", AdditionalData: Attributes{{Key: "score", Value: NumberValue(math.Inf(1))}}},
			wantErr: ErrNonFiniteNumber,
		},
		{
			name: "negative infinity inside a list",
			partner: &Partner{Name: "Acme", AdditionalData: Attributes{
				{Key: "scores", Value: ListValue(NumberValue(1), NumberValue(math.Inf(-1)))},
			}},
			wantErr: ErrNonFiniteNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePartner(tt.partner)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, ValidateQuery("fintech", 5))
	assert.NoError(t, ValidateQuery("", 1))
	for _, n := range []int{0, -1} {
		err := ValidateQuery("fintech", n)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, ErrInvalidTopN)
	}
	assert.ErrorIs(t, ValidateQuery("\xff", 5), ErrInvalidText)
}

func TestValidateEmbedding(t *testing.T) {
	assert.NoError(t, ValidateEmbedding(make([]float32, EmbeddingDimensions), EmbeddingDimensions))

	err := ValidateEmbedding(make([]float32, 384), EmbeddingDimensions)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
