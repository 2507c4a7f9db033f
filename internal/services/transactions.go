package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/dkotenko/finance-tracker/internal/logger"
	"github.com/dkotenko/finance-tracker/internal/models"
	"github.com/dkotenko/finance-tracker/internal/repositories"
)

var (
	// ErrEmptyText is returned when a transaction label is missing.
	ErrEmptyText = errors.New("transaction text must not be empty")
	// ErrInvalidAmount is returned when the amount does not parse as a number.
	ErrInvalidAmount = errors.New("transaction amount must be a valid number")
	// ErrTransactionNotFound is returned when an edit or delete targets an
	// unknown transaction.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// TransactionReader defines read operations against the document store.
type TransactionReader interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.TransactionDB, error) // Returns all of an owner's transactions, most recent first
}

// TransactionWriter defines write operations against the document store.
type TransactionWriter interface {
	Save(ctx context.Context, ownerID uuid.UUID, text string, amount float64, fileURL *string) (*models.TransactionDB, error) // Persists a new transaction and returns it with its generated id
	Update(ctx context.Context, ownerID, transactionID uuid.UUID, text string, amount float64) (int64, error)                 // Updates text/amount, returns affected rows
	Delete(ctx context.Context, ownerID, transactionID uuid.UUID) (int64, error)                                              // Deletes a transaction, returns affected rows
}

// SummaryCache caches per-owner balance summaries.
type SummaryCache interface {
	GetSummary(ctx context.Context, ownerID uuid.UUID) (*models.Summary, error)         // Returns the cached summary
	SetSummary(ctx context.Context, ownerID uuid.UUID, summary models.Summary) error    // Caches a summary
	InvalidateSummary(ctx context.Context, ownerID uuid.UUID) error                     // Drops the cached summary after a mutation
}

// AttachmentUploader uploads a file and returns a direct-download URL.
type AttachmentUploader interface {
	Upload(ctx context.Context, file io.Reader, filename string) (string, error)
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// TransactionService is the transaction store: an in-memory, per-owner view
// of the document store, mutated only through Load/Add/Edit/Remove. Local
// state is updated strictly after remote success, so the snapshot never shows
// a record the store did not accept. When the write runs inside an enclosing
// database transaction, snapshot updates, events and cache invalidation are
// deferred through afterCommit until that transaction has committed.
type TransactionService struct {
	reader      TransactionReader
	writer      TransactionWriter
	cache       SummaryCache
	uploader    AttachmentUploader
	kafkaWriter KafkaWriter
	afterCommit func(ctx context.Context, fn func())

	mu        sync.Mutex
	snapshots map[uuid.UUID][]models.TransactionDB
	loaded    map[uuid.UUID]bool
	loadSeq   map[uuid.UUID]uint64
}

// NewTransactionService creates a new TransactionService. afterCommit
// schedules a side effect to run once the request's database transaction has
// committed; nil runs side effects immediately.
func NewTransactionService(
	reader TransactionReader,
	writer TransactionWriter,
	cache SummaryCache,
	uploader AttachmentUploader,
	kafkaWriter KafkaWriter,
	afterCommit func(ctx context.Context, fn func()),
) *TransactionService {
	return &TransactionService{
		reader:      reader,
		writer:      writer,
		cache:       cache,
		uploader:    uploader,
		kafkaWriter: kafkaWriter,
		afterCommit: afterCommit,
		snapshots:   make(map[uuid.UUID][]models.TransactionDB),
		loaded:      make(map[uuid.UUID]bool),
		loadSeq:     make(map[uuid.UUID]uint64),
	}
}

// deferToCommit runs fn after the enclosing database transaction commits, or
// immediately when there is none.
func (s *TransactionService) deferToCommit(ctx context.Context, fn func()) {
	if s.afterCommit == nil {
		fn()
		return
	}
	s.afterCommit(ctx, fn)
}

// validate enforces the write gate: both fields are required and the amount
// must parse as a finite number. Runs before any collaborator call.
func validate(text, amount string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidAmount
	}
	return value, nil
}

// Load replaces the owner's in-memory snapshot with the document store's
// current contents. Each call takes a new generation number; a result whose
// generation has been superseded by a later Load is discarded, so a stale
// response can never clobber a newer one. Loading the nil owner clears all
// snapshots (session ended).
func (s *TransactionService) Load(ctx context.Context, ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		s.mu.Lock()
		s.snapshots = make(map[uuid.UUID][]models.TransactionDB)
		s.loaded = make(map[uuid.UUID]bool)
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.loadSeq[ownerID]++
	seq := s.loadSeq[ownerID]
	s.mu.Unlock()

	transactions, err := s.reader.ListByOwner(ctx, ownerID)
	if err != nil {
		logger.Log.Errorw("failed to load transactions", "ownerID", ownerID, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadSeq[ownerID] != seq {
		logger.Log.Warnw("discarding stale load result", "ownerID", ownerID, "generation", seq, "latest", s.loadSeq[ownerID])
		return nil
	}
	s.snapshots[ownerID] = transactions
	s.loaded[ownerID] = true
	return nil
}

// Add validates the input, uploads the optional attachment, persists the
// transaction and prepends it to the snapshot. Any failure leaves both the
// document store and the snapshot untouched.
func (s *TransactionService) Add(ctx context.Context, ownerID uuid.UUID, text, amount string, file io.Reader, filename string) (*models.TransactionDB, error) {
	value, err := validate(text, amount)
	if err != nil {
		logger.Log.Warnw("add rejected", "ownerID", ownerID, "text", text, "amount", amount, "error", err)
		return nil, err
	}

	var fileURL *string
	if file != nil {
		url, err := s.uploader.Upload(ctx, file, filename)
		if err != nil {
			return nil, err
		}
		fileURL = &url
	}

	saved, err := s.writer.Save(ctx, ownerID, text, value, fileURL)
	if err != nil {
		logger.Log.Errorw("failed to save transaction", "ownerID", ownerID, "error", err)
		return nil, err
	}

	s.deferToCommit(ctx, func() {
		s.mu.Lock()
		if s.loaded[ownerID] {
			s.snapshots[ownerID] = append([]models.TransactionDB{*saved}, s.snapshots[ownerID]...)
		}
		s.mu.Unlock()

		s.publishEvent(ctx, "add", saved)
		s.invalidateSummary(ctx, ownerID)
	})

	return saved, nil
}

// Edit updates text and amount of an existing transaction. The attachment
// URL is never touched. Editing an unknown id returns ErrTransactionNotFound.
func (s *TransactionService) Edit(ctx context.Context, ownerID, transactionID uuid.UUID, text, amount string) error {
	value, err := validate(text, amount)
	if err != nil {
		logger.Log.Warnw("edit rejected", "ownerID", ownerID, "transactionID", transactionID, "error", err)
		return err
	}

	rows, err := s.writer.Update(ctx, ownerID, transactionID, text, value)
	if err != nil {
		logger.Log.Errorw("failed to update transaction", "ownerID", ownerID, "transactionID", transactionID, "error", err)
		return err
	}
	if rows == 0 {
		return ErrTransactionNotFound
	}

	s.deferToCommit(ctx, func() {
		var updated *models.TransactionDB
		s.mu.Lock()
		for i := range s.snapshots[ownerID] {
			if s.snapshots[ownerID][i].TransactionID == transactionID {
				s.snapshots[ownerID][i].Text = text
				s.snapshots[ownerID][i].Amount = value
				tx := s.snapshots[ownerID][i]
				updated = &tx
				break
			}
		}
		s.mu.Unlock()

		if updated == nil {
			updated = &models.TransactionDB{TransactionID: transactionID, OwnerID: ownerID, Text: text, Amount: value}
		}
		s.publishEvent(ctx, "edit", updated)
		s.invalidateSummary(ctx, ownerID)
	})

	return nil
}

// Remove deletes a transaction remotely, then drops it from the snapshot.
// Callers reach Remove only through a confirmed confirmation: the HTTP layer
// binds it as the confirmation action and exposes no direct delete route.
func (s *TransactionService) Remove(ctx context.Context, ownerID, transactionID uuid.UUID) error {
	rows, err := s.writer.Delete(ctx, ownerID, transactionID)
	if err != nil {
		logger.Log.Errorw("failed to delete transaction", "ownerID", ownerID, "transactionID", transactionID, "error", err)
		return err
	}
	if rows == 0 {
		return ErrTransactionNotFound
	}

	s.deferToCommit(ctx, func() {
		var removed *models.TransactionDB
		s.mu.Lock()
		snapshot := s.snapshots[ownerID]
		for i := range snapshot {
			if snapshot[i].TransactionID == transactionID {
				tx := snapshot[i]
				removed = &tx
				s.snapshots[ownerID] = append(snapshot[:i:i], snapshot[i+1:]...)
				break
			}
		}
		s.mu.Unlock()

		if removed == nil {
			removed = &models.TransactionDB{TransactionID: transactionID, OwnerID: ownerID}
		}
		s.publishEvent(ctx, "delete", removed)
		s.invalidateSummary(ctx, ownerID)
	})

	return nil
}

// List returns the owner's transactions, most recent first, loading the
// snapshot from the document store when it has not been loaded yet.
func (s *TransactionService) List(ctx context.Context, ownerID uuid.UUID) ([]models.TransactionDB, error) {
	s.mu.Lock()
	if s.loaded[ownerID] {
		snapshot := make([]models.TransactionDB, len(s.snapshots[ownerID]))
		copy(snapshot, s.snapshots[ownerID])
		s.mu.Unlock()
		return snapshot, nil
	}
	s.mu.Unlock()

	if err := s.Load(ctx, ownerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]models.TransactionDB, len(s.snapshots[ownerID]))
	copy(snapshot, s.snapshots[ownerID])
	return snapshot, nil
}

// Aggregates returns {income, expense, balance} for the owner. Income sums
// positive amounts, expense sums negative amounts keeping their sign, and a
// zero amount counts as neither. Served read-through from the summary cache.
func (s *TransactionService) Aggregates(ctx context.Context, ownerID uuid.UUID) (*models.Summary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx, ownerID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repositories.ErrSummaryNotCached) {
			logger.Log.Errorw("failed to read summary cache", "ownerID", ownerID, "error", err)
		}
	}

	transactions, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary := computeSummary(transactions)

	if s.cache != nil {
		if err := s.cache.SetSummary(ctx, ownerID, summary); err != nil {
			logger.Log.Errorw("failed to cache summary", "ownerID", ownerID, "error", err)
		}
	}

	return &summary, nil
}

func computeSummary(transactions []models.TransactionDB) models.Summary {
	var summary models.Summary
	for _, tx := range transactions {
		switch {
		case tx.Amount > 0:
			summary.Income += tx.Amount
		case tx.Amount < 0:
			summary.Expense += tx.Amount
		}
	}
	summary.Balance = summary.Income + summary.Expense
	return summary
}

func (s *TransactionService) invalidateSummary(ctx context.Context, ownerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSummary(ctx, ownerID); err != nil {
		logger.Log.Errorw("failed to invalidate summary cache", "ownerID", ownerID, "error", err)
	}
}

// publishEvent publishes a transaction mutation to Kafka.
func (s *TransactionService) publishEvent(ctx context.Context, operation string, tx *models.TransactionDB) {
	if s.kafkaWriter == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping publishing", "transaction_id", tx.TransactionID)
		return
	}

	event := models.TransactionEvent{
		EventID:       uuid.NewString(),
		Operation:     operation,
		TransactionID: tx.TransactionID.String(),
		OwnerID:       tx.OwnerID.String(),
		Amount:        tx.Amount,
		Timestamp:     time.Now().Unix(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("failed to marshal transaction event", "transaction_id", tx.TransactionID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(tx.TransactionID.String()),
		Value: data,
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("failed to publish transaction event", "transaction_id", tx.TransactionID, "error", err)
	} else {
		logger.Log.Infow("transaction event published", "transaction_id", tx.TransactionID, "operation", operation)
	}
}
