package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanafox/tiny-cart/internal/apperr"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("seller")
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, r)
	assert.True(t, r.CanSell())

	r, err = ParseRole("buyer")
	require.NoError(t, err)
	assert.False(t, r.CanSell())

	_, err = ParseRole("admin")
	assert.Error(t, err)
	assert.False(t, Role("").CanSell())
}

func TestProduct_CheckAvailability(t *testing.T) {
	p := &Product{Name: "Lamp", NumberInStock: 2}
	p.SyncStockFlag()

	assert.NoError(t, p.CheckAvailability(2))
	assert.ErrorIs(t, p.CheckAvailability(3), apperr.ErrInsufficientStock)
	assert.ErrorIs(t, p.CheckAvailability(0), apperr.ErrInvalidInput)

	p.NumberInStock = 0
	p.SyncStockFlag()
	err := p.CheckAvailability(1)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "Product Lamp is out of stock", err.Error())
}

func TestProduct_ReserveKeepsStockFlagConsistent(t *testing.T) {
	p := &Product{Name: "Lamp", NumberInStock: 5}
	p.SyncStockFlag()

	require.NoError(t, p.Reserve(3))
	assert.Equal(t, 2, p.NumberInStock)
	assert.True(t, p.InStock)

	require.NoError(t, p.Reserve(2))
	assert.Equal(t, 0, p.NumberInStock)
	assert.False(t, p.InStock)

	err := p.Reserve(1)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 0, p.NumberInStock)
}

func TestProduct_BeforeCreate(t *testing.T) {
	p := &Product{NumberInStock: 4, InStock: false}
	require.NoError(t, p.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.True(t, p.InStock)

	id := uuid.New()
	u := &User{ID: id}
	require.NoError(t, u.BeforeCreate(nil))
	assert.Equal(t, id, u.ID)
}
