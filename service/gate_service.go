package service

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DenialReason identifies which admission check rejected a message
type DenialReason string

const (
	DenialForbidden     DenialReason = "forbidden"
	DenialNotSubscribed DenialReason = "not_subscribed"
	DenialNoTokens      DenialReason = "no_tokens"
	DenialCooldown      DenialReason = "cooldown"
)

// Decision is the outcome of the gate chain for one inbound message
type Decision struct {
	Admitted   bool
	Reason     DenialReason
	RetryAfter time.Duration // set for cooldown denials
}

// GateConfig holds the tunables of the admission checks
type GateConfig struct {
	AllowedUserIDs []int64
	GenerateCost   int64
	Cooldown       time.Duration
}

type gateService struct {
	cfg        GateConfig
	allowed    map[int64]struct{}
	uowFactory UnitOfWorkFactory
	subs       SubscriptionChecker
	store      StateStore
	now        func() time.Time
}

// NewGateService creates a new gate service
func NewGateService(cfg GateConfig, uowFactory UnitOfWorkFactory, subs SubscriptionChecker, store StateStore) GateService {
	allowed := make(map[int64]struct{}, len(cfg.AllowedUserIDs))
	for _, id := range cfg.AllowedUserIDs {
		allowed[id] = struct{}{}
	}
	return &gateService{
		cfg:        cfg,
		allowed:    allowed,
		uowFactory: uowFactory,
		subs:       subs,
		store:      store,
		now:        time.Now,
	}
}

func cooldownKey(telegramID int64) string {
	return fmt.Sprintf("cooldown:%d", telegramID)
}

// Check runs the admission chain in fixed order: allow-list, subscription,
// quota, cooldown. The first failing check short-circuits. The only side
// effect is advancing the cooldown clock, and that happens only on admit.
func (s *gateService) Check(ctx context.Context, telegramID int64) (Decision, error) {
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[telegramID]; !ok {
			return Decision{Reason: DenialForbidden}, nil
		}
	}

	subscribed, err := s.subs.IsSubscribed(ctx, telegramID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check subscription for user %d: %w", telegramID, err)
	}
	if !subscribed {
		return Decision{Reason: DenialNotSubscribed}, nil
	}

	balance, err := s.currentBalance(ctx, telegramID)
	if err != nil {
		return Decision{}, err
	}
	if balance < s.cfg.GenerateCost {
		return Decision{Reason: DenialNoTokens}, nil
	}

	now := s.now()
	value, ok, err := s.store.Get(ctx, cooldownKey(telegramID))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read cooldown for user %d: %w", telegramID, err)
	}
	if ok {
		lastNanos, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr == nil {
			elapsed := now.Sub(time.Unix(0, lastNanos))
			if elapsed < s.cfg.Cooldown {
				remaining := s.cfg.Cooldown - elapsed
				return Decision{Reason: DenialCooldown, RetryAfter: remaining}, nil
			}
		}
	}

	if err := s.store.Set(ctx, cooldownKey(telegramID), strconv.FormatInt(now.UnixNano(), 10), s.cfg.Cooldown); err != nil {
		return Decision{}, fmt.Errorf("failed to advance cooldown for user %d: %w", telegramID, err)
	}

	return Decision{Admitted: true}, nil
}

// CheckSubscription runs only the channel-membership check
func (s *gateService) CheckSubscription(ctx context.Context, telegramID int64) (bool, error) {
	return s.subs.IsSubscribed(ctx, telegramID)
}

func (s *gateService) currentBalance(ctx context.Context, telegramID int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, nil
	}
	return user.Balance, nil
}

// RetrySeconds reports the user-visible "wait N seconds" value, rounded up so
// a remainder of 4.001s reads as 5.
func (d Decision) RetrySeconds() int64 {
	secs := int64(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second > 0 {
		secs++
	}
	return secs
}
