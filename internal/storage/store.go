// Package storage provides abstractions for wizard session storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/3tharva/split-the-tab-ai/internal/models"
)

var (
	// ErrNotFound is returned when a session does not exist (or has expired).
	ErrNotFound = errors.New("session not found")

	// ErrInvalidStep is returned when a session carries an unknown wizard step.
	ErrInvalidStep = errors.New("invalid wizard step")
)

// Store defines the interface for session storage operations.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	// CreateSession persists a new session.
	// The session.ID, CreatedAt and UpdatedAt fields are populated by the store when empty.
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSession retrieves a session by its ID, with the bill's people and
	// items in their original order.
	// Returns ErrNotFound if the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// UpdateSession replaces the stored step, receipt name and bill of an
	// existing session and bumps UpdatedAt.
	// Returns ErrNotFound if the session does not exist.
	UpdateSession(ctx context.Context, session *models.Session) error

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// PruneSessions removes sessions not updated since before and reports how many went.
	PruneSessions(ctx context.Context, before time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
