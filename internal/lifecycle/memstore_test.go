package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
)

// memStore хранилище в памяти с теми же условиями, что и SQL в accounts.Repo.
type memStore struct {
	mu   sync.Mutex
	rows map[int64]*accounts.Account
	err  error
	// marks заявка -> activated_until; отсутствующий ключ значит, что заявки нет
	marks map[int64]*time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]*accounts.Account{}, marks: map[int64]*time.Time{}}
}

func (m *memStore) put(userID int64, end *time.Time, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = &accounts.Account{UserID: userID, SubscriptionEnd: end, IsActive: active}
}

func (m *memStore) row(userID int64) accounts.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[userID]
}

func (m *memStore) Get(_ context.Context, userID int64) (*accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) Extend(_ context.Context, p accounts.Profile, next func(*time.Time) time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extendLocked(p, next)
}

func (m *memStore) ExtendForRequest(_ context.Context, p accounts.Profile, requestID int64, next func(*time.Time) time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.marks[requestID]; !ok {
		return time.Time{}, accounts.ErrRequestNotFound
	}
	end, err := m.extendLocked(p, next)
	if err != nil {
		return time.Time{}, err
	}
	m.marks[requestID] = &end
	return end, nil
}

func (m *memStore) extendLocked(p accounts.Profile, next func(*time.Time) time.Time) (time.Time, error) {
	if m.err != nil {
		return time.Time{}, m.err
	}
	a, ok := m.rows[p.UserID]
	if !ok {
		a = &accounts.Account{UserID: p.UserID}
		m.rows[p.UserID] = a
	}
	if p.Username != nil {
		a.Username = p.Username
	}
	end := next(a.SubscriptionEnd)
	a.SubscriptionEnd = &end
	a.IsActive = true
	return end, nil
}

func (m *memStore) DeactivateIfExpired(_ context.Context, userID int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[userID]
	if !ok || !a.IsActive {
		return false, nil
	}
	if a.SubscriptionEnd != nil && a.SubscriptionEnd.After(now) {
		return false, nil
	}
	a.IsActive = false
	return true, nil
}

func (m *memStore) DeactivateExpired(_ context.Context, now time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []int64
	for id, a := range m.rows {
		if a.IsActive && a.SubscriptionEnd != nil && a.SubscriptionEnd.Before(now) {
			a.IsActive = false
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memStore) NextExpiry(_ context.Context, now time.Time) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var best *time.Time
	for _, a := range m.rows {
		if !a.IsActive || a.SubscriptionEnd == nil || !a.SubscriptionEnd.After(now) {
			continue
		}
		if best == nil || a.SubscriptionEnd.Before(*best) {
			t := *a.SubscriptionEnd
			best = &t
		}
	}
	return best, nil
}

func (m *memStore) Cancel(_ context.Context, userID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[userID]
	if !ok {
		return accounts.ErrNotFound
	}
	a.IsActive = false
	if a.SubscriptionEnd == nil || a.SubscriptionEnd.After(now) {
		t := now
		a.SubscriptionEnd = &t
	}
	return nil
}

var errStorage = errors.New("storage down")
