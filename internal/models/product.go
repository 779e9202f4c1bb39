package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nanafox/tiny-cart/internal/apperr"
)

// Product is a sellable item listed by a seller.
//
// InStock is derived: every write path keeps InStock == (NumberInStock > 0).
type Product struct {
	ID            uuid.UUID       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name          string          `json:"name" gorm:"type:varchar(255);not null"`
	Description   string          `json:"description" gorm:"type:text"`
	UnitPrice     decimal.Decimal `json:"unit_price" gorm:"type:numeric(10,2);not null"`
	InStock       bool            `json:"in_stock" gorm:"not null"`
	NumberInStock int             `json:"number_in_stock" gorm:"not null;check:number_in_stock >= 0"`
	OwnerID       uuid.UUID       `json:"owner_id" gorm:"type:varchar(36);not null;index"`
	Owner         *User           `json:"owner,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Images        []Image         `json:"images,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BeforeCreate assigns a fresh ID and normalises the stock flag.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.SyncStockFlag()
	return nil
}

// SyncStockFlag derives InStock from NumberInStock.
func (p *Product) SyncStockFlag() {
	p.InStock = p.NumberInStock > 0
}

// CheckAvailability reports whether qty units can be taken from the product.
func (p *Product) CheckAvailability(qty int) error {
	if qty <= 0 {
		return apperr.New(apperr.InvalidInput, "quantity must be a positive number, got %d", qty)
	}
	if !p.InStock {
		return apperr.New(apperr.Conflict, "Product %s is out of stock", p.Name)
	}
	if p.NumberInStock < qty {
		return apperr.New(apperr.InsufficientStock, "Product %s has only %d items left", p.Name, p.NumberInStock)
	}
	return nil
}

// Reserve takes qty units off the in-memory stock count.
func (p *Product) Reserve(qty int) error {
	if err := p.CheckAvailability(qty); err != nil {
		return err
	}
	p.NumberInStock -= qty
	p.SyncStockFlag()
	return nil
}

// Image references an uploaded blob attached to a product.
type Image struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FilePath  string    `json:"file_path" gorm:"type:varchar(255);not null"`
	ProductID uuid.UUID `json:"product_id" gorm:"type:varchar(36);not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a fresh ID when none was set.
func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
