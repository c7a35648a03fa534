package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/securebank/backoffice/internal/store"
	"github.com/securebank/backoffice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeAccount(id int64, number string, balance types.Amount) types.Account {
	return types.Account{ID: id, Number: number, Type: "courant", Balance: balance, Currency: "EUR", Status: types.AccountStatusActive}
}

func newLedgerFixture(pub Publisher) (*LedgerService, *fakeLedger) {
	repo := newFakeLedger(
		activeAccount(1, "FR001", 50000),
		activeAccount(2, "FR002", 5000),
		types.Account{ID: 3, Number: "FR003", Balance: 10000, Status: "bloque"},
	)
	c := newClock()
	svc := NewLedgerService(repo, nil, LedgerOptions{
		Events:        pub,
		EventsChannel: "ledger-events",
		Now:           c.Now,
	})
	return svc, repo
}

func TestTransfer_MovesFunds(t *testing.T) {
	pub := &fakePublisher{}
	svc, repo := newLedgerFixture(pub)

	transfer, err := svc.Transfer(context.Background(), adminSession(), TransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               "100.00",
		Description:          " payroll ",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), transfer.ID)
	assert.Equal(t, types.Amount(10000), transfer.Amount)
	assert.Equal(t, "payroll", transfer.Description)
	assert.Equal(t, "alice", transfer.Operator)
	assert.Equal(t, types.TransferStatusCompleted, transfer.Status)
	assert.Equal(t, types.TransferTypeTransfer, transfer.Type)

	assert.Equal(t, types.Amount(40000), repo.balance(1))
	assert.Equal(t, types.Amount(15000), repo.balance(2))
	assert.Equal(t, 1, repo.recordCount())

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "ledger-events", pub.msgs[0].channel)
	assert.Equal(t, EventTransferCompleted, pub.msgs[0].attrs["event"])
	assert.Equal(t, "1", pub.msgs[0].attrs["transfer_id"])

	var event transferEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &event))
	assert.Equal(t, types.Amount(10000), event.Transfer.Amount)
}

func TestTransfer_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		session *types.Session
		req     TransferRequest
		want    Kind
	}{
		{"no session", nil, TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: "10"}, KindUnauthenticated},
		{"non admin", tellerSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: "10"}, KindForbidden},
		{"missing source", adminSession(), TransferRequest{DestinationAccountID: 2, Amount: "10"}, KindMissingFields},
		{"missing destination", adminSession(), TransferRequest{SourceAccountID: 1, Amount: "10"}, KindMissingFields},
		{"missing amount", adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: " "}, KindMissingFields},
		{"negative amount", adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: "-5"}, KindInvalidAmount},
		{"zero amount", adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: "0.00"}, KindInvalidAmount},
		{"garbage amount", adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: "ten"}, KindInvalidAmount},
		{"same account", adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 1, Amount: "10"}, KindSameAccount},
		{"unknown source", adminSession(), TransferRequest{SourceAccountID: 9, DestinationAccountID: 2, Amount: "10"}, KindSourceNotFound},
		{"inactive source", adminSession(), TransferRequest{SourceAccountID: 3, DestinationAccountID: 2, Amount: "10"}, KindSourceNotFound},
		{"insufficient funds", adminSession(), TransferRequest{SourceAccountID: 2, DestinationAccountID: 1, Amount: "50.01"}, KindInsufficientFunds},
		{"unknown destination", adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 9, Amount: "10"}, KindDestinationNotFound},
		{"inactive destination", adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 3, Amount: "10"}, KindDestinationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			svc, repo := newLedgerFixture(pub)

			_, err := svc.Transfer(context.Background(), tt.session, tt.req)
			assert.Equal(t, tt.want, KindOf(err))

			assert.Equal(t, types.Amount(50000), repo.balance(1))
			assert.Equal(t, types.Amount(5000), repo.balance(2))
			assert.Equal(t, types.Amount(10000), repo.balance(3))
			assert.Zero(t, repo.recordCount())
			assert.Empty(t, pub.msgs)
		})
	}
}

func TestTransfer_StoreFailures(t *testing.T) {
	ctx := context.Background()
	req := TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: "10"}

	t.Run("source lookup fails", func(t *testing.T) {
		svc, repo := newLedgerFixture(nil)
		repo.getErr = errors.New("connection reset")
		_, err := svc.Transfer(ctx, adminSession(), req)
		assert.Equal(t, KindStoreUnavailable, KindOf(err))
	})

	t.Run("transaction aborts", func(t *testing.T) {
		svc, repo := newLedgerFixture(nil)
		repo.applyErr = errors.New("deadlock detected")
		_, err := svc.Transfer(ctx, adminSession(), req)
		assert.Equal(t, KindTransactionFailed, KindOf(err))
		assert.Equal(t, types.Amount(50000), repo.balance(1))
	})

	t.Run("balance drained inside transaction", func(t *testing.T) {
		svc, repo := newLedgerFixture(nil)
		repo.applyErr = store.ErrInsufficientFunds
		_, err := svc.Transfer(ctx, adminSession(), req)
		assert.Equal(t, KindInsufficientFunds, KindOf(err))
	})

	t.Run("source deactivated inside transaction", func(t *testing.T) {
		svc, repo := newLedgerFixture(nil)
		repo.applyErr = store.ErrSourceUnavailable
		_, err := svc.Transfer(ctx, adminSession(), req)
		assert.Equal(t, KindSourceNotFound, KindOf(err))
	})
}

func TestTransfer_PublishFailureIsNotFatal(t *testing.T) {
	svc, repo := newLedgerFixture(&fakePublisher{err: errors.New("broker down")})

	_, err := svc.Transfer(context.Background(), adminSession(), TransferRequest{
		SourceAccountID: 1, DestinationAccountID: 2, Amount: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.recordCount())
}

func TestTransfer_ConcurrentNeverOverdraws(t *testing.T) {
	svc, repo := newLedgerFixture(nil)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), adminSession(), TransferRequest{
				SourceAccountID: 2, DestinationAccountID: 1, Amount: "10.00",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, types.Amount(0), repo.balance(2))
	assert.Equal(t, types.Amount(55000), repo.balance(1))
	assert.Equal(t, 5, repo.recordCount())
}

func TestListAccounts(t *testing.T) {
	svc, repo := newLedgerFixture(nil)
	ctx := context.Background()

	accounts, err := svc.ListAccounts(ctx, adminSession())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "FR001", accounts[0].Number)

	_, err = svc.ListAccounts(ctx, tellerSession())
	assert.Equal(t, KindForbidden, KindOf(err))
	_, err = svc.ListAccounts(ctx, nil)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	repo.listErr = errors.New("down")
	_, err = svc.ListAccounts(ctx, adminSession())
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
}

func TestListTransfers_Limits(t *testing.T) {
	svc, repo := newLedgerFixture(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Transfer(ctx, adminSession(), TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: "1"})
		require.NoError(t, err)
	}

	transfers, err := svc.ListTransfers(ctx, adminSession(), 2)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, int64(3), transfers[0].ID)
	assert.Equal(t, int64(2), transfers[1].ID)

	_, err = svc.ListTransfers(ctx, adminSession(), 0)
	require.NoError(t, err)
	_, err = svc.ListTransfers(ctx, adminSession(), 10000)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 50, 500}, repo.limits)

	_, err = svc.ListTransfers(ctx, tellerSession(), 10)
	assert.Equal(t, KindForbidden, KindOf(err))
}
