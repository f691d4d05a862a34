package db_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferStatusApproved OfferStatus = "approved"
	OfferStatusPaid     OfferStatus = "paid"
	OfferStatusSettled  OfferStatus = "settled"
	OfferStatusCanceled OfferStatus = "canceled"
)

// Offer is the booking-side collaborator supplying the parties and the
// agreed price. The engine reads it and only flips Status to keep its own
// consistency checks; offer CRUD lives in the booking layer.
type Offer struct {
	BaseModel
	ClientID   uuid.UUID `gorm:"type:uuid;index"`
	ProviderID uuid.UUID `gorm:"type:uuid;index"`
	ServiceID  uuid.UUID `gorm:"type:uuid;index"`

	Price    decimal.Decimal `gorm:"type:numeric(14,2)"`
	Currency string          `gorm:"size:3"`
	Status   OfferStatus     `gorm:"type:varchar(20);index"`
}
