package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/infra/logger"
)

const day = 24 * time.Hour

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newEngine(store Store) *Engine {
	return New(store,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger.Discard()),
	)
}

func at(t time.Time) *time.Time { return &t }

func TestActivateOrExtend_StacksOnFutureEnd(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(5*day)), true)

	end, err := newEngine(store).ActivateOrExtend(context.Background(), accounts.Profile{UserID: 1}, 10, plans.UnitDays)
	require.NoError(t, err)

	assert.Equal(t, fixedNow.Add(15*day), end)
	row := store.row(1)
	assert.True(t, row.IsActive)
	assert.Equal(t, fixedNow.Add(15*day), *row.SubscriptionEnd)
}

func TestActivateOrExtend_RestartsAfterExpiry(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(-day)), false)

	end, err := newEngine(store).ActivateOrExtend(context.Background(), accounts.Profile{UserID: 1}, 10, plans.UnitDays)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(10*day), end)
}

func TestActivateOrExtend_NewAccount(t *testing.T) {
	store := newMemStore()
	name := "newbie"

	end, err := newEngine(store).ActivateOrExtend(context.Background(), accounts.Profile{UserID: 3, Username: &name}, 30, plans.UnitSeconds)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(30*time.Second), end)
	assert.Equal(t, "newbie", *store.row(3).Username)
}

func TestActivateOrExtend_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = errStorage

	_, err := newEngine(store).ActivateOrExtend(context.Background(), accounts.Profile{UserID: 1}, 1, plans.UnitDays)
	assert.ErrorIs(t, err, errStorage)
}

func TestActivateOrExtend_ConcurrentCallsDoNotLoseUpdates(t *testing.T) {
	store := newMemStore()
	e := newEngine(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ActivateOrExtend(context.Background(), accounts.Profile{UserID: 1}, 1, plans.UnitDays)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, fixedNow.Add(20*day), *store.row(1).SubscriptionEnd)
}

func TestActivateForRequest_MarksRequestAtomically(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(5*day)), true)
	store.marks[42] = nil
	e := newEngine(store)

	end, err := e.ActivateForRequest(context.Background(), accounts.Profile{UserID: 1}, 42, 10, plans.UnitDays)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(15*day), end)
	require.NotNil(t, store.marks[42])
	assert.Equal(t, end, *store.marks[42])

	// заявки нет: окно не продлевается
	_, err = e.ActivateForRequest(context.Background(), accounts.Profile{UserID: 1}, 404, 10, plans.UnitDays)
	require.ErrorIs(t, err, accounts.ErrRequestNotFound)
	assert.Equal(t, end, *store.row(1).SubscriptionEnd)
}

func TestUnitDuration(t *testing.T) {
	cases := []struct {
		unit plans.Unit
		want time.Duration
	}{
		{plans.UnitMonths, 60 * day},
		{plans.UnitMinutes, 2 * time.Minute},
		{plans.UnitSeconds, 2 * time.Second},
		{plans.UnitDays, 2 * day},
		{"bogus", 2 * day},
		{"month", 60 * day},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, UnitDuration(2, c.unit), string(c.unit))
		assert.Equal(t, fixedNow.Add(c.want), NextEnd(nil, fixedNow, 2, c.unit), string(c.unit))
	}
}

func TestSweepExpired_Idempotent(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(-time.Minute)), true)
	store.put(2, at(fixedNow.Add(-day)), true)
	store.put(3, at(fixedNow.Add(day)), true)
	store.put(4, at(fixedNow.Add(-day)), false)
	e := newEngine(store)

	first, err := e.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, first)

	second, err := e.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.True(t, store.row(3).IsActive)
}

func TestNextCheckDelay_Clamping(t *testing.T) {
	cases := []struct {
		name string
		ends []time.Duration
		want time.Duration
	}{
		{"floor", []time.Duration{5 * time.Second}, 30 * time.Second},
		{"ceiling", []time.Duration{10000 * time.Second}, 3600 * time.Second},
		{"soonest wins", []time.Duration{2 * time.Hour, 10 * time.Minute}, 10 * time.Minute},
		{"none active", nil, 3600 * time.Second},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := newMemStore()
			for i, d := range c.ends {
				store.put(int64(i+1), at(fixedNow.Add(d)), true)
			}
			// истёкшие и неактивные не учитываются
			store.put(100, at(fixedNow.Add(-time.Second)), true)
			store.put(101, at(fixedNow.Add(time.Second)), false)

			got, err := newEngine(store).NextCheckDelay(context.Background())
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestNextCheckDelay_CustomBoundsAndError(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(time.Second)), true)
	e := New(store,
		WithClock(func() time.Time { return fixedNow }),
		WithDelayBounds(10*time.Second, time.Minute),
		WithLogger(logger.Discard()),
	)

	got, err := e.NextCheckDelay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, got)

	store.err = errStorage
	got, err = e.NextCheckDelay(context.Background())
	assert.ErrorIs(t, err, errStorage)
	assert.Equal(t, time.Minute, got)
}

func TestClampDelay(t *testing.T) {
	assert.Equal(t, time.Second, ClampDelay(0, time.Second, time.Minute))
	assert.Equal(t, 5*time.Second, ClampDelay(5*time.Second, time.Second, time.Minute))
	assert.Equal(t, time.Minute, ClampDelay(time.Hour, time.Second, time.Minute))
}

func TestSubscription_ReconcilesStaleFlag(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(-time.Hour)), true)
	e := newEngine(store)

	active, err := e.IsEffectivelyActive(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, active)
	assert.False(t, store.row(1).IsActive)

	st, err := e.Subscription(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, st.Reconciled)
}

func TestSubscription_States(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(time.Hour)), true)
	store.put(2, nil, true)
	store.put(3, at(fixedNow.Add(time.Hour)), false)
	e := newEngine(store)

	st, err := e.Subscription(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, time.Hour, st.Remaining)

	// активен без даты окончания: считается неактивным и сбрасывается
	st, err = e.Subscription(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.True(t, st.Reconciled)

	active, err := e.IsEffectivelyActive(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = e.IsEffectivelyActive(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestDeactivate_TruncatesWindow(t *testing.T) {
	store := newMemStore()
	store.put(1, at(fixedNow.Add(10*day)), true)
	e := newEngine(store)

	require.NoError(t, e.Deactivate(context.Background(), 1))
	row := store.row(1)
	assert.False(t, row.IsActive)
	assert.Equal(t, fixedNow, *row.SubscriptionEnd)

	// новая покупка начинается с now, а не со старого конца
	end, err := e.ActivateOrExtend(context.Background(), accounts.Profile{UserID: 1}, 1, plans.UnitDays)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(day), end)

	assert.ErrorIs(t, e.Deactivate(context.Background(), 404), accounts.ErrNotFound)
}
