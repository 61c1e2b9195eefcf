package models

import (
	"time"

	"github.com/google/uuid"
)

// Merchant is the business entity that publishes group deals.
type Merchant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Wallet    string    `gorm:"column:wallet;type:text;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
