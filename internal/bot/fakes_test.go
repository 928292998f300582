package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/domain/purchases"
	"github.com/Spok95/subaccess-bot/internal/infra/telegram"
	"github.com/Spok95/subaccess-bot/internal/infra/telegram/tgtest"
	"github.com/Spok95/subaccess-bot/internal/lifecycle"
	"github.com/Spok95/subaccess-bot/internal/purchase"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAPI(t *testing.T) (*tgbotapi.BotAPI, *tgtest.Server) {
	t.Helper()
	srv := tgtest.New(t, 1)
	api, err := telegram.NewAPI("token", srv.Endpoint(), 5*time.Second, 0)
	require.NoError(t, err)
	return api, srv
}

/*** апдейты ***/

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: "user"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID, UserName: "user"},
		Message: &tgbotapi.Message{
			MessageID: 77,
			Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		},
		Data: data,
	}}
}

// lastText текст последнего вызова метода.
func lastText(t *testing.T, srv *tgtest.Server, method string) string {
	t.Helper()
	calls := srv.Calls(method)
	require.NotEmpty(t, calls, "no %s calls", method)
	c := calls[len(calls)-1]
	if v := c.Params.Get("text"); v != "" {
		return v
	}
	return c.Params.Get("caption")
}

/*** состояния ***/

type memStates struct {
	mu    sync.Mutex
	items map[int64]*dialog.Item
	langs map[int64]string
}

func newMemStates() *memStates {
	return &memStates{items: map[int64]*dialog.Item{}, langs: map[int64]string{}}
}

func (m *memStates) Get(_ context.Context, chatID int64) (*dialog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[chatID]
	if !ok {
		return &dialog.Item{ChatID: chatID, State: dialog.StateIdle, Payload: dialog.Payload{}}, nil
	}
	p := dialog.Payload{}
	for k, v := range it.Payload {
		p[k] = v
	}
	return &dialog.Item{ChatID: chatID, State: it.State, Payload: p}, nil
}

func (m *memStates) Set(_ context.Context, chatID int64, state dialog.State, payload dialog.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payload == nil {
		payload = dialog.Payload{}
	}
	m.items[chatID] = &dialog.Item{ChatID: chatID, State: state, Payload: payload}
	return nil
}

func (m *memStates) Reset(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, chatID)
	return nil
}

func (m *memStates) GetLang(_ context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.langs[userID], nil
}

func (m *memStates) SetLang(_ context.Context, userID int64, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.langs[userID] = lang
	return nil
}

func (m *memStates) state(chatID int64) dialog.State {
	it, _ := m.Get(context.Background(), chatID)
	return it.State
}

/*** аккаунты ***/

type fakeAccounts struct {
	mu      sync.Mutex
	byID    map[int64]*accounts.Account
	order   []int64
	removed []int64
}

func newFakeAccounts(list ...accounts.Account) *fakeAccounts {
	f := &fakeAccounts{byID: map[int64]*accounts.Account{}}
	for i := range list {
		a := list[i]
		f.byID[a.UserID] = &a
		f.order = append(f.order, a.UserID)
	}
	return f
}

func (f *fakeAccounts) UpsertProfile(_ context.Context, p accounts.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[p.UserID]
	if !ok {
		a = &accounts.Account{UserID: p.UserID, CreatedAt: testNow}
		f.byID[p.UserID] = a
		f.order = append(f.order, p.UserID)
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
	a, ok := f.byID[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) List(_ context.Context, offset, limit int) ([]accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []accounts.Account
	for i := offset; i < len(f.order) && len(out) < limit; i++ {
		out = append(out, *f.byID[f.order[i]])
	}
	return out, nil
}

func (f *fakeAccounts) ListAll(ctx context.Context) ([]accounts.Account, error) {
	return f.List(ctx, 0, len(f.order))
}

func (f *fakeAccounts) Search(_ context.Context, q string, limit int) ([]accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []accounts.Account
	for _, id := range f.order {
		a := f.byID[id]
		if a.Username != nil && strings.Contains(*a.Username, q) && len(out) < limit {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) ListIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.order...), nil
}

func (f *fakeAccounts) Stats(_ context.Context, now time.Time) (accounts.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := accounts.Stats{Total: len(f.byID)}
	for _, a := range f.byID {
		if a.IsActive && a.SubscriptionEnd != nil && a.SubscriptionEnd.After(now) {
			s.Active++
		}
	}
	return s, nil
}

func (f *fakeAccounts) Delete(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[userID]; !ok {
		return accounts.ErrNotFound
	}
	delete(f.byID, userID)
	for i, id := range f.order {
		if id == userID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAccounts) MarkRemovedFromChannel(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, userID)
	return nil
}

/*** тарифы ***/

type fakePlans struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*plans.Plan
}

func newFakePlans(list ...plans.Plan) *fakePlans {
	f := &fakePlans{byID: map[int64]*plans.Plan{}}
	for i := range list {
		p := list[i]
		f.byID[p.ID] = &p
		if p.ID > f.nextID {
			f.nextID = p.ID
		}
	}
	return f
}

func (f *fakePlans) Create(_ context.Context, p plans.Plan) (int64, error) {
	p.DurationUnit = plans.NormalizeUnit(string(p.DurationUnit))
	if err := p.Validate(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.byID[p.ID] = &p
	return p.ID, nil
}

func (f *fakePlans) Get(_ context.Context, id int64) (*plans.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlans) List(_ context.Context) ([]plans.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []plans.Plan
	for id := int64(1); id <= f.nextID; id++ {
		if p, ok := f.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePlans) modify(id int64, fn func(p *plans.Plan)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return plans.ErrNotFound
	}
	cp := *p
	fn(&cp)
	if err := cp.Validate(); err != nil {
		return err
	}
	*p = cp
	return nil
}

func (f *fakePlans) Rename(_ context.Context, id int64, name string) error {
	return f.modify(id, func(p *plans.Plan) { p.Name = name })
}

func (f *fakePlans) SetPrice(_ context.Context, id int64, price float64) error {
	return f.modify(id, func(p *plans.Plan) { p.Price = price })
}

func (f *fakePlans) SetDuration(_ context.Context, id int64, value int, unit plans.Unit) error {
	return f.modify(id, func(p *plans.Plan) {
		p.DurationValue = value
		p.DurationUnit = unit
	})
}

func (f *fakePlans) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return plans.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

/*** подписки ***/

type fakeSubs struct {
	mu          sync.Mutex
	status      lifecycle.Status
	err         error
	deactivated []int64
	deactErr    error
}

func (f *fakeSubs) Now() time.Time { return testNow }

func (f *fakeSubs) Subscription(_ context.Context, _ int64) (lifecycle.Status, error) {
	return f.status, f.err
}

func (f *fakeSubs) Deactivate(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deactErr != nil {
		return f.deactErr
	}
	f.deactivated = append(f.deactivated, userID)
	return nil
}

/*** прочее ***/

type MockAccess struct{ mock.Mock }

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

type MockPurchases struct{ mock.Mock }

func (m *MockPurchases) Submit(ctx context.Context, p accounts.Profile, planID int64) (*purchases.Request, error) {
	args := m.Called(ctx, p, planID)
	req, _ := args.Get(0).(*purchases.Request)
	return req, args.Error(1)
}

type MockDecisions struct{ mock.Mock }

func (m *MockDecisions) Approve(ctx context.Context, id int64) (*purchase.Approval, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*purchase.Approval)
	return res, args.Error(1)
}

func (m *MockDecisions) Reject(ctx context.Context, id int64) (*purchases.Request, error) {
	args := m.Called(ctx, id)
	req, _ := args.Get(0).(*purchases.Request)
	return req, args.Error(1)
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (f *fakeSettings) Get(_ context.Context, key, def string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

type noPhotos struct{}

func (noPhotos) ProfilePhoto(context.Context, int64) (*string, error) { return nil, nil }

type sentText struct {
	UserID int64
	Text   string
	Silent bool
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentText
	fail map[int64]error
}

func (f *fakeMessenger) SendText(_ context.Context, userID int64, text string, silent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[userID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentText{UserID: userID, Text: text, Silent: silent})
	return nil
}

type fakeDiag struct {
	d   telegram.Diagnostics
	err error
}

func (f fakeDiag) Diagnose(context.Context) (telegram.Diagnostics, error) { return f.d, f.err }
