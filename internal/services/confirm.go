package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/dkotenko/finance-tracker/internal/logger"
)

// ErrNoPendingConfirmation is returned when a confirm or cancel targets a
// confirmation that is not the owner's current pending one.
var ErrNoPendingConfirmation = errors.New("no pending confirmation")

// Confirmation identifies a pending two-step action shown to the user.
type Confirmation struct {
	ID      uuid.UUID `json:"confirmation_id"` // Identifier to confirm or cancel with
	Message string    `json:"message"`         // Human-readable prompt
}

type pendingAction struct {
	id      uuid.UUID
	message string
	action  func(ctx context.Context) error
}

// ConfirmationService gates destructive actions behind an explicit
// request/confirm step. Each owner has a single slot: a new request
// overwrites any prior pending action (last request wins, no queue), and a
// pending action stays pending indefinitely until confirmed or cancelled.
type ConfirmationService struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*pendingAction
}

// NewConfirmationService creates a new ConfirmationService.
func NewConfirmationService() *ConfirmationService {
	return &ConfirmationService{
		pending: make(map[uuid.UUID]*pendingAction),
	}
}

// Request registers a pending action for the owner and returns the
// confirmation to present. Any previously pending action is discarded
// without being executed.
func (s *ConfirmationService) Request(ctx context.Context, ownerID uuid.UUID, message string, action func(ctx context.Context) error) Confirmation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.pending[ownerID]; ok {
		logger.Log.Warnw("replacing pending confirmation", "ownerID", ownerID, "replaced", prior.id)
	}

	p := &pendingAction{
		id:      uuid.New(),
		message: message,
		action:  action,
	}
	s.pending[ownerID] = p

	return Confirmation{ID: p.id, Message: p.message}
}

// Confirm executes the bound action of the owner's pending confirmation.
// The entry is cleared only when the action succeeds; on failure it stays
// pending so the caller can retry or cancel.
func (s *ConfirmationService) Confirm(ctx context.Context, ownerID, confirmationID uuid.UUID) error {
	s.mu.Lock()
	p, ok := s.pending[ownerID]
	if !ok || p.id != confirmationID {
		s.mu.Unlock()
		return ErrNoPendingConfirmation
	}
	s.mu.Unlock()

	// The action may hit the network; run it outside the lock.
	if err := p.action(ctx); err != nil {
		logger.Log.Errorw("confirmed action failed", "ownerID", ownerID, "confirmationID", confirmationID, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A newer request may have taken the slot while the action ran.
	if current, ok := s.pending[ownerID]; ok && current.id == confirmationID {
		delete(s.pending, ownerID)
	}
	return nil
}

// Cancel discards the owner's pending confirmation without executing it.
func (s *ConfirmationService) Cancel(ctx context.Context, ownerID, confirmationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[ownerID]
	if !ok || p.id != confirmationID {
		return ErrNoPendingConfirmation
	}

	delete(s.pending, ownerID)
	logger.Log.Infow("confirmation cancelled", "ownerID", ownerID, "confirmationID", confirmationID)
	return nil
}
