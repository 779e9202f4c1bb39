package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ParseRole converts s into a Role, rejecting anything outside the known set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q, expected buyer or seller", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller:
		return true
	}
	return false
}

// CanSell reports whether users with this role may list products.
func (r Role) CanSell() bool {
	switch r {
	case RoleSeller:
		return true
	case RoleBuyer:
		return false
	}
	return false
}

// User represents a buyer or seller account.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(30);not null"`
	Role      Role      `json:"role" gorm:"type:varchar(16);not null;default:'buyer'"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never plaintext
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a fresh ID when none was set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
