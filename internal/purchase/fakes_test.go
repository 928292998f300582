package purchase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/domain/purchases"
)

// fakeAccounts в памяти; подходит и как lifecycle.Store для настоящего движка.
type fakeAccounts struct {
	mu   sync.Mutex
	rows map[int64]*accounts.Account
	// requests получает activated_until вместе с продлением
	requests *fakeRequests
	// extendErr роняет всю транзакцию продления
	extendErr error
}

func newFakeAccounts() *fakeAccounts { return &fakeAccounts{rows: map[int64]*accounts.Account{}} }

func (f *fakeAccounts) UpsertProfile(_ context.Context, p accounts.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[p.UserID]
	if !ok {
		a = &accounts.Account{UserID: p.UserID}
		f.rows[p.UserID] = a
	}
	if p.Username != nil {
		a.Username = p.Username
	}
	if p.Phone != nil {
		a.Phone = p.Phone
	}
	if p.PhotoFileID != nil {
		a.PhotoFileID = p.PhotoFileID
	}
	return nil
}

func (f *fakeAccounts) Get(_ context.Context, userID int64) (*accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) MarkAddedToChannel(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[userID]
	if !ok {
		return accounts.ErrNotFound
	}
	a.AddedToChannel = true
	return nil
}

func (f *fakeAccounts) Extend(ctx context.Context, p accounts.Profile, next func(*time.Time) time.Time) (time.Time, error) {
	_ = f.UpsertProfile(ctx, p)
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.rows[p.UserID]
	end := next(a.SubscriptionEnd)
	a.SubscriptionEnd = &end
	a.IsActive = true
	return end, nil
}

func (f *fakeAccounts) ExtendForRequest(ctx context.Context, p accounts.Profile, requestID int64, next func(*time.Time) time.Time) (time.Time, error) {
	if f.extendErr != nil {
		return time.Time{}, f.extendErr
	}
	if !f.requests.exists(requestID) {
		return time.Time{}, accounts.ErrRequestNotFound
	}
	end, err := f.Extend(ctx, p, next)
	if err != nil {
		return time.Time{}, err
	}
	f.requests.markActivated(requestID, end)
	return end, nil
}

func (f *fakeAccounts) set(userID int64, fn func(a *accounts.Account)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.rows[userID])
}

func (f *fakeAccounts) DeactivateIfExpired(_ context.Context, userID int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[userID]
	if !ok || !a.IsActive || (a.SubscriptionEnd != nil && a.SubscriptionEnd.After(now)) {
		return false, nil
	}
	a.IsActive = false
	return true, nil
}

func (f *fakeAccounts) DeactivateExpired(context.Context, time.Time) ([]int64, error) {
	return nil, nil
}

func (f *fakeAccounts) NextExpiry(context.Context, time.Time) (*time.Time, error) {
	return nil, nil
}

func (f *fakeAccounts) Cancel(context.Context, int64, time.Time) error { return nil }

type fakePlans map[int64]plans.Plan

func (f fakePlans) Get(_ context.Context, id int64) (*plans.Plan, error) {
	p, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeRequests struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*purchases.Request
}

func newFakeRequests() *fakeRequests { return &fakeRequests{rows: map[int64]*purchases.Request{}} }

func (f *fakeRequests) Create(_ context.Context, req purchases.Request) (*purchases.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	req.ID = f.nextID
	req.CreatedAt = time.Now()
	f.rows[req.ID] = &req
	cp := req
	return &cp, nil
}

func (f *fakeRequests) Get(_ context.Context, id int64) (*purchases.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequests) markActivated(id int64, until time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok {
		r.ActivatedUntil = &until
	}
}

func (f *fakeRequests) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return purchases.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRequests) exists(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[id]
	return ok
}

type MockAccess struct {
	mock.Mock
}

func (m *MockAccess) Notify(ctx context.Context, userID int64, n channel.Notice) error {
	return m.Called(ctx, userID, n).Error(0)
}

func (m *MockAccess) Revoke(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockAccess) Grant(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type MockAnnouncer struct {
	mock.Mock
}

func (m *MockAnnouncer) AnnounceRequest(ctx context.Context, req purchases.Request, plan plans.Plan, photo *string) error {
	return m.Called(ctx, req, plan, photo).Error(0)
}

type MockActivator struct {
	mock.Mock
}

func (m *MockActivator) ActivateForRequest(ctx context.Context, p accounts.Profile, requestID int64, value int, unit plans.Unit) (time.Time, error) {
	args := m.Called(ctx, p, requestID, value, unit)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockActivator) IsEffectivelyActive(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
