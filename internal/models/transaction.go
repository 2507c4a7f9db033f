package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionDB represents a single income or expense record in the database.
// A positive amount is income, a negative amount is an expense; zero counts
// as neither when summaries are computed.
type TransactionDB struct {
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"` // Server-generated identifier
	OwnerID       uuid.UUID `json:"owner_id" db:"owner_id"`             // Identifier of the user that created the record
	Text          string    `json:"text" db:"text"`                     // Display label, never empty
	Amount        float64   `json:"amount" db:"amount"`                 // Signed amount
	FileURL       *string   `json:"file_url,omitempty" db:"file_url"`   // Optional attachment direct-download URL
	CreatedAt     time.Time `json:"created_at" db:"created_at"`         // Creation timestamp
}
