package service

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"valera/events"
	"valera/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByTelegramID retrieves a user by their Telegram ID
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// Create creates a new user with the initial balance. Idempotent against
	// the unique id: an existing user is returned unchanged.
	Create(ctx context.Context, telegramID int64, name string, username *string, referrerID *int64, initialBalance int64) (*models.User, error)

	// AdjustBalance changes a user's balance by delta atomically; delta may be negative
	AdjustBalance(ctx context.Context, telegramID int64, delta int64) error

	// MarkGenerated flips has_generated false->true and reports whether this
	// caller won the flip
	MarkGenerated(ctx context.Context, telegramID int64) (bool, error)

	// GetReferrer returns the referrer id for a user, or nil
	GetReferrer(ctx context.Context, telegramID int64) (*int64, error)

	// SetReferrer sets referrer_id if it is currently unset; a user's
	// referrer never changes once assigned
	SetReferrer(ctx context.Context, telegramID, referrerID int64) error
}

// ReferralRepository defines the interface for referral edge data access
type ReferralRepository interface {
	// Create inserts an inviter->invitee edge, rejecting self-referrals,
	// invitees that already participate in an edge on either side, and
	// inviters that are themselves someone's invitee
	Create(ctx context.Context, inviterID, inviteeID int64) error

	// GetByParticipant returns an edge in which the user appears on either
	// side, or nil
	GetByParticipant(ctx context.Context, telegramID int64) (*models.Referral, error)

	// CountByInviter returns how many users an inviter has referred
	CountByInviter(ctx context.Context, inviterID int64) (int64, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns the most recent balance history entries for a user
	GetByUser(ctx context.Context, telegramID int64, limit int) ([]*models.BalanceHistory, error)
}

// PaymentRepository defines the interface for settled payment records
type PaymentRepository interface {
	// Record inserts a settled payment; a duplicate charge id returns
	// ErrDuplicatePayment
	Record(ctx context.Context, payment *models.Payment) error
}

// UserService defines the interface for user and referral operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates a new one with the
	// start bonus and the optional referrer
	GetOrCreateUser(ctx context.Context, telegramID int64, name string, username *string, referrerID *int64) (*models.User, error)

	// RegisterReferral records an inviter->invitee edge for an existing invitee
	RegisterReferral(ctx context.Context, inviterID, inviteeID int64) error

	// GetBalance returns the current token balance for a user
	GetBalance(ctx context.Context, telegramID int64) (int64, error)
}

// GenerationService is the billing controller: it debits before invoking the
// completion model, refunds on failure, and distributes the one-time referral
// bonus on a user's first successful generation.
type GenerationService interface {
	// HandleGeneration runs the Debit -> Invoke -> {Settle, Refund} sequence
	// for an already admitted request and returns the reply text
	HandleGeneration(ctx context.Context, telegramID int64, action models.ActionKind, request []*schema.Message) (string, error)
}

// PaymentService settles confirmed payment events
type PaymentService interface {
	// Settle credits the purchased tokens for a confirmed charge. The charge
	// id deduplicates double deliveries.
	Settle(ctx context.Context, telegramID int64, chargeID, payload string) (*models.Payment, error)
}

// GateService runs the admission checks for one inbound message
type GateService interface {
	// Check runs the full chain: allow-list, subscription, quota, cooldown.
	// The cooldown clock is advanced only when the message is admitted.
	Check(ctx context.Context, telegramID int64) (Decision, error)

	// CheckSubscription runs only the channel-membership check
	CheckSubscription(ctx context.Context, telegramID int64) (bool, error)
}

// ActionStateService tracks the single-slot pending mode per user
type ActionStateService interface {
	// Set overwrites the pending mode for a user (last-write-wins)
	Set(ctx context.Context, telegramID int64, kind models.ActionKind) error

	// Consume returns the pending mode and atomically clears the slot
	Consume(ctx context.Context, telegramID int64) (models.ActionKind, error)
}

// Completer wraps exactly one completion call. Any error, timeout or empty
// reply surfaces as an error; retries are a caller policy and none exist here.
type Completer interface {
	Complete(ctx context.Context, request []*schema.Message) (string, error)
}

// SubscriptionChecker looks up channel membership on the platform
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, telegramID int64) (bool, error)
}

// StateStore is the ephemeral key-value capability backing the cooldown clock
// and the pending-action slot. Implementations may be in-process or an
// external cache; this state may be lost on restart.
type StateStore interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key; a zero ttl means no expiry
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDelete returns the value for key and atomically removes it
	GetDelete(ctx context.Context, key string) (string, bool, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	ReferralRepository() ReferralRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	PaymentRepository() PaymentRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
