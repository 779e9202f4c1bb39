package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem is one product and quantity requested by a buyer.
type OrderItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// Order is a single order line: one product bought in some quantity by one buyer.
// A purchase of several products produces one Order per product.
type Order struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID uuid.UUID `json:"product_id" gorm:"type:varchar(36);not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Quantity  int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	Product   *Product  `json:"product,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Buyer     *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a fresh ID when none was set.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// All lists every model in migration order.
func All() []any {
	return []any{&User{}, &Product{}, &Image{}, &Order{}}
}
