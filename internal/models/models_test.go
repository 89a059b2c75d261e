package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderConfirmed, OrderProcessing, true},
		{OrderProcessing, OrderDelivered, true},
		{OrderConfirmed, OrderCancelled, true},
		{OrderProcessing, OrderCancelled, true},
		{OrderDelivered, OrderCancelled, false},
		{OrderDelivered, OrderProcessing, false},
		{OrderProcessing, OrderConfirmed, false},
		{OrderConfirmed, OrderDelivered, false},
		{OrderCancelled, OrderConfirmed, false},
		{OrderCancelled, OrderProcessing, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestAddressComplete(t *testing.T) {
	assert.True(t, Address{Street: "1 Oak St", City: "Accra", Phone: "0200000000"}.Complete())
	assert.False(t, Address{Street: "1 Oak St", City: "Accra"}.Complete())
	assert.False(t, Address{}.Complete())
}
