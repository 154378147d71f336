package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

func TestValidateQuantity(t *testing.T) {
	require.NoError(t, ValidateQuantity(1, false))
	require.NoError(t, ValidateQuantity(0, true))
	assert.True(t, dErrors.HasCode(ValidateQuantity(0, false), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(ValidateQuantity(-1, true), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(ValidateQuantity(MaxQuantity+1, true), dErrors.CodeValidation))
}

func TestAddItemRequest(t *testing.T) {
	productID := id.NewProductID()
	req := &AddItemRequest{ProductID: productID.String()}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, 1, req.Quantity)
	assert.Equal(t, productID, req.Product())

	bad := &AddItemRequest{ProductID: "nope", Quantity: 1}
	assert.True(t, dErrors.HasCode(bad.Validate(), dErrors.CodeInvalidInput))
}

func TestViewHelpers(t *testing.T) {
	a, b := id.NewProductID(), id.NewProductID()
	v := &View{Items: []Line{{ProductID: a, Quantity: 2, InStock: true}, {ProductID: b, Quantity: 1, InStock: false}}}
	assert.False(t, v.Empty())
	assert.False(t, v.Purchasable())
	assert.Equal(t, map[id.ProductID]int{a: 2, b: 1}, v.Quantities())
	assert.True(t, (&View{}).Empty())
}
