package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItemLineTotal(t *testing.T) {
	item := CartItem{Quantity: 3, Product: &Product{Price: decimal.RequireFromString("19.99")}}
	assert.True(t, item.LineTotal().Equal(decimal.RequireFromString("59.97")))

	assert.True(t, CartItem{Quantity: 3}.LineTotal().IsZero())
}

func TestAddressScanValue(t *testing.T) {
	line2 := "Apt 4"
	in := Address{
		Name: "Jane Doe", Address1: "1 Court St", Address2: &line2,
		City: "Boston", State: "MA", PostalCode: "02108", Country: "US",
	}

	v, err := in.Value()
	require.NoError(t, err)

	var out Address
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(`{"name":"x","city":"y"}`))
	assert.Equal(t, "x", out.Name)

	assert.Error(t, out.Scan(42))
}
