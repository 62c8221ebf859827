package address

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CreateRequest is the payload for saving a new address.
type CreateRequest struct {
	FullName   string  `json:"full_name" validate:"required,max=255"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Line1      string  `json:"line1" validate:"required,max=255"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=255"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postal_code" validate:"required,max=20"`
	Country    string  `json:"country,omitempty" validate:"omitempty,len=2"`
	IsDefault  bool    `json:"is_default"`
}

func (r CreateRequest) shipping() types.ShippingAddress {
	return types.ShippingAddress{
		FullName:   r.FullName,
		Phone:      r.Phone,
		Line1:      r.Line1,
		Line2:      r.Line2,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

// Address is the API view of a saved address.
type Address struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Phone      *string   `json:"phone,omitempty"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

// Shipping converts the saved address into the order snapshot shape.
func (a Address) Shipping() types.ShippingAddress {
	return types.ShippingAddress{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func fromModel(m models.Address) Address {
	return Address{
		ID:         m.ID,
		FullName:   m.FullName,
		Phone:      m.Phone,
		Line1:      m.Line1,
		Line2:      m.Line2,
		City:       m.City,
		State:      m.State,
		PostalCode: m.PostalCode,
		Country:    m.Country,
		IsDefault:  m.IsDefault,
		CreatedAt:  m.CreatedAt,
	}
}
