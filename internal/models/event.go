package models

// TransactionEvent is published to Kafka after every successful mutation.
type TransactionEvent struct {
	EventID       string  `json:"event_id"`       // Unique identifier of the event
	Operation     string  `json:"operation"`      // One of "add", "edit", "delete"
	TransactionID string  `json:"transaction_id"` // Affected transaction
	OwnerID       string  `json:"owner_id"`       // Owner of the affected transaction
	Amount        float64 `json:"amount"`         // Amount after the mutation
	Timestamp     int64   `json:"timestamp"`      // Unix timestamp (seconds) of the mutation
}
