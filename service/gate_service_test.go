package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valera/models"
)

func gateFixture(cfg GateConfig) (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockUserRepository, *MockSubscriptionChecker, *MockStateStore, *gateService) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockSubs := new(MockSubscriptionChecker)
	mockStore := new(MockStateStore)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, nil)

	svc := NewGateService(cfg, mockFactory, mockSubs, mockStore).(*gateService)

	return mockUoW, mockFactory, mockUserRepo, mockSubs, mockStore, svc
}

func TestGateService_Check_Forbidden(t *testing.T) {
	ctx := context.Background()
	_, _, _, mockSubs, mockStore, svc := gateFixture(GateConfig{
		AllowedUserIDs: []int64{111, 222},
		GenerateCost:   1,
		Cooldown:       5 * time.Second,
	})

	decision, err := svc.Check(ctx, 999)

	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, DenialForbidden, decision.Reason)

	// A denied check never reaches the later stages
	mockSubs.AssertNotCalled(t, "IsSubscribed", ctx, int64(999))
	mockStore.AssertNotCalled(t, "Set", ctx, "cooldown:999", "", time.Duration(0))
}

func TestGateService_Check_EmptyAllowListAdmitsEveryone(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockSubs, mockStore, svc := gateFixture(GateConfig{
		GenerateCost: 1,
		Cooldown:     5 * time.Second,
	})

	fixed := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return fixed }

	mockSubs.On("IsSubscribed", ctx, int64(999)).Return(true, nil)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByTelegramID", ctx, int64(999)).Return(&models.User{TelegramID: 999, Balance: 3}, nil)

	mockStore.On("Get", ctx, "cooldown:999").Return("", false, nil)
	mockStore.On("Set", ctx, "cooldown:999", strconv.FormatInt(fixed.UnixNano(), 10), 5*time.Second).Return(nil)

	decision, err := svc.Check(ctx, 999)

	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	mockStore.AssertExpectations(t)
}

func TestGateService_Check_NotSubscribed(t *testing.T) {
	ctx := context.Background()
	_, _, _, mockSubs, mockStore, svc := gateFixture(GateConfig{
		GenerateCost: 1,
		Cooldown:     5 * time.Second,
	})

	mockSubs.On("IsSubscribed", ctx, int64(123)).Return(false, nil)

	decision, err := svc.Check(ctx, 123)

	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, DenialNotSubscribed, decision.Reason)

	mockStore.AssertNotCalled(t, "Get", ctx, "cooldown:123")
}

func TestGateService_Check_NoTokens(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockSubs, mockStore, svc := gateFixture(GateConfig{
		GenerateCost: 1,
		Cooldown:     5 * time.Second,
	})

	mockSubs.On("IsSubscribed", ctx, int64(123)).Return(true, nil)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByTelegramID", ctx, int64(123)).Return(&models.User{TelegramID: 123, Balance: 0}, nil)

	decision, err := svc.Check(ctx, 123)

	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, DenialNoTokens, decision.Reason)

	// The cooldown clock must not advance on a denial
	mockStore.AssertNotCalled(t, "Set", ctx, "cooldown:123", "", 5*time.Second)
}

func TestGateService_Check_CooldownBoundary(t *testing.T) {
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)

	cases := []struct {
		name      string
		elapsed   time.Duration
		admitted  bool
		retrySecs int64
	}{
		{name: "just inside window", elapsed: 4999 * time.Millisecond, admitted: false, retrySecs: 1},
		{name: "exactly at window", elapsed: 5 * time.Second, admitted: true},
		{name: "well inside window", elapsed: 1 * time.Second, admitted: false, retrySecs: 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockUoW, mockFactory, mockUserRepo, mockSubs, mockStore, svc := gateFixture(GateConfig{
				GenerateCost: 1,
				Cooldown:     5 * time.Second,
			})

			now := base.Add(tc.elapsed)
			svc.now = func() time.Time { return now }

			mockSubs.On("IsSubscribed", ctx, int64(123)).Return(true, nil)
			mockFactory.On("Create").Return(mockUoW)
			mockUoW.On("Begin", ctx).Return(nil)
			mockUoW.On("Rollback").Return(nil)
			mockUserRepo.On("GetByTelegramID", ctx, int64(123)).Return(&models.User{TelegramID: 123, Balance: 5}, nil)

			mockStore.On("Get", ctx, "cooldown:123").
				Return(strconv.FormatInt(base.UnixNano(), 10), true, nil)
			if tc.admitted {
				mockStore.On("Set", ctx, "cooldown:123", strconv.FormatInt(now.UnixNano(), 10), 5*time.Second).Return(nil)
			}

			decision, err := svc.Check(ctx, 123)

			require.NoError(t, err)
			assert.Equal(t, tc.admitted, decision.Admitted)
			if !tc.admitted {
				assert.Equal(t, DenialCooldown, decision.Reason)
				assert.Equal(t, tc.retrySecs, decision.RetrySeconds())
				mockStore.AssertNotCalled(t, "Set", ctx, "cooldown:123",
					strconv.FormatInt(now.UnixNano(), 10), 5*time.Second)
			}
			mockStore.AssertExpectations(t)
		})
	}
}

func TestGateService_Check_UnknownUserHasNoTokens(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockSubs, _, svc := gateFixture(GateConfig{
		GenerateCost: 1,
		Cooldown:     5 * time.Second,
	})

	mockSubs.On("IsSubscribed", ctx, int64(123)).Return(true, nil)
	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByTelegramID", ctx, int64(123)).Return(nil, nil)

	decision, err := svc.Check(ctx, 123)

	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, DenialNoTokens, decision.Reason)
}

func TestDecision_RetrySeconds_RoundsUp(t *testing.T) {
	assert.Equal(t, int64(5), Decision{RetryAfter: 4001 * time.Millisecond}.RetrySeconds())
	assert.Equal(t, int64(4), Decision{RetryAfter: 4 * time.Second}.RetrySeconds())
	assert.Equal(t, int64(0), Decision{}.RetrySeconds())
}
