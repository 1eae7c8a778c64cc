package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing provenance tags.
const (
	SourceManual = "manual"
	SourceCSV    = "csv"
	SourceAPI    = "api"
)

// Listing is a persisted property listing. DistressScore is always derived
// by the scoring engine.
type Listing struct {
	ID            int64
	Title         string
	Description   string
	Location      string
	Price         decimal.Decimal
	DistressScore float64
	Source        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListingFilter narrows ListListings. Zero values disable a filter; Limit 0
// returns every row.
type ListingFilter struct {
	Location string
	MinScore *float64
	Limit    int
	ByScore  bool
}

// NotificationPreference holds a user's alert channel opt-ins.
type NotificationPreference struct {
	UserID       string
	Email        string
	EmailEnabled bool
	SMSEnabled   bool
	PhoneNumber  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeliveryRecord captures one (user, channel) delivery attempt of an alert.
type DeliveryRecord struct {
	ID        int64
	EventID   uuid.UUID
	ListingID int64
	UserID    string
	Channel   string
	Message   string
	Sent      bool
	Error     *string
	CreatedAt time.Time
}
