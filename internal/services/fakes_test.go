package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/securebank/backoffice/internal/store"
	"github.com/securebank/backoffice/types"
)

type fakeUsers struct {
	mu         sync.Mutex
	users      map[string]types.User
	lookupErr  error
	updateErr  error
	lastLogins map[int64]time.Time
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{users: map[string]types.User{}, lastLogins: map[int64]time.Time{}}
	for _, u := range users {
		f.users[u.Username] = u
	}
	return f
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return types.User{}, f.lookupErr
	}
	u, ok := f.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.lastLogins[id] = at
	return nil
}

type delivery struct {
	address  string
	code     string
	username string
}

type fakeDeliverer struct {
	mu    sync.Mutex
	sent  []delivery
	err   error
	block bool
}

func (d *fakeDeliverer) Deliver(ctx context.Context, address, code, username string) error {
	if d.block {
		<-ctx.Done()
		return ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, delivery{address: address, code: code, username: username})
	return nil
}

func (d *fakeDeliverer) last() delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		return delivery{}
	}
	return d.sent[len(d.sent)-1]
}

// fakeLedger applies transfers under one lock so balance checks and updates
// are atomic, like the SQL repository's locked transaction.
type fakeLedger struct {
	mu        sync.Mutex
	accounts  map[int64]types.Account
	transfers []types.Transfer
	nextID    int64

	getErr   error
	applyErr error
	listErr  error
	limits   []int
}

func newFakeLedger(accounts ...types.Account) *fakeLedger {
	f := &fakeLedger{accounts: map[int64]types.Account{}, nextID: 1}
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeLedger) GetAccount(_ context.Context, id int64) (types.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return types.Account{}, f.getErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeLedger) ListActiveAccounts(_ context.Context) ([]types.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []types.Account
	for _, a := range f.accounts {
		if a.IsActive() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLedger) ListTransfers(_ context.Context, limit int) ([]types.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []types.Transfer
	for i := len(f.transfers) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.transfers[i])
	}
	return out, nil
}

func (f *fakeLedger) ApplyTransfer(_ context.Context, t types.Transfer) (types.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return types.Transfer{}, f.applyErr
	}
	src, ok := f.accounts[t.SourceAccountID]
	if !ok || !src.IsActive() {
		return types.Transfer{}, store.ErrSourceUnavailable
	}
	dst, ok := f.accounts[t.DestinationAccountID]
	if !ok || !dst.IsActive() {
		return types.Transfer{}, store.ErrDestinationUnavailable
	}
	if src.Balance < t.Amount {
		return types.Transfer{}, store.ErrInsufficientFunds
	}
	src.Balance -= t.Amount
	dst.Balance += t.Amount
	f.accounts[src.ID] = src
	f.accounts[dst.ID] = dst

	t.ID = f.nextID
	f.nextID++
	f.transfers = append(f.transfers, t)
	return t, nil
}

func (f *fakeLedger) balance(id int64) types.Amount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id].Balance
}

func (f *fakeLedger) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.msgs = append(p.msgs, published{channel: channel, data: data, attrs: attrs})
	return "id", nil
}

// clock is a settable time source shared by the registry, sessions and services.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func adminSession() *types.Session {
	return &types.Session{ID: "s-admin", Username: "alice", Role: types.RoleAdmin, UserID: 1}
}

func tellerSession() *types.Session {
	return &types.Session{ID: "s-teller", Username: "bob", Role: "teller", UserID: 2}
}
