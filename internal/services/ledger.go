package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/securebank/backoffice/internal/logging"
	"github.com/securebank/backoffice/internal/store"
	"github.com/securebank/backoffice/types"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// EventTransferCompleted is published after a transfer commits.
	EventTransferCompleted = "transfer.completed"
)

// LedgerRepository defines persistence operations for accounts and transfers.
// ApplyTransfer must be atomic: either the debit, the credit and the record
// all land, or none of them do.
type LedgerRepository interface {
	GetAccount(ctx context.Context, id int64) (types.Account, error)
	ListActiveAccounts(ctx context.Context) ([]types.Account, error)
	ListTransfers(ctx context.Context, limit int) ([]types.Transfer, error)
	ApplyTransfer(ctx context.Context, transfer types.Transfer) (types.Transfer, error)
}

// Publisher sends ledger events to a message channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// LedgerOptions tunes LedgerService. Zero values select defaults.
type LedgerOptions struct {
	DefaultHistoryLimit int
	MaxHistoryLimit     int
	// Events and EventsChannel enable transfer events; Events may be nil.
	Events        Publisher
	EventsChannel string
	Now           func() time.Time
}

// LedgerService executes transfers and serves ledger listings to
// privileged sessions.
type LedgerService struct {
	repo          LedgerRepository
	log           logging.Logger
	defaultLimit  int
	maxLimit      int
	events        Publisher
	eventsChannel string
	now           func() time.Time
}

func NewLedgerService(repo LedgerRepository, log logging.Logger, opts LedgerOptions) *LedgerService {
	if opts.DefaultHistoryLimit <= 0 {
		opts.DefaultHistoryLimit = defaultHistoryLimit
	}
	if opts.MaxHistoryLimit <= 0 {
		opts.MaxHistoryLimit = maxHistoryLimit
	}
	if opts.DefaultHistoryLimit > opts.MaxHistoryLimit {
		opts.DefaultHistoryLimit = opts.MaxHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &LedgerService{
		repo:          repo,
		log:           log,
		defaultLimit:  opts.DefaultHistoryLimit,
		maxLimit:      opts.MaxHistoryLimit,
		events:        opts.Events,
		eventsChannel: opts.EventsChannel,
		now:           opts.Now,
	}
}

// TransferRequest carries unvalidated transfer input. Zero account ids and an
// empty amount count as missing.
type TransferRequest struct {
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               string
	Description          string
}

func authorize(session *types.Session) error {
	if session == nil {
		return newError(KindUnauthenticated, nil)
	}
	if !session.IsAdmin() {
		return newError(KindForbidden, nil)
	}
	return nil
}

// Transfer moves funds between two active accounts and records the movement.
func (s *LedgerService) Transfer(ctx context.Context, session *types.Session, req TransferRequest) (types.Transfer, error) {
	if err := authorize(session); err != nil {
		return types.Transfer{}, err
	}

	rawAmount := strings.TrimSpace(req.Amount)
	if req.SourceAccountID <= 0 || req.DestinationAccountID <= 0 || rawAmount == "" {
		return types.Transfer{}, newError(KindMissingFields, nil)
	}
	amount, err := types.ParseAmount(rawAmount)
	if err != nil || amount <= 0 {
		return types.Transfer{}, newError(KindInvalidAmount, err)
	}
	if req.SourceAccountID == req.DestinationAccountID {
		return types.Transfer{}, newError(KindSameAccount, nil)
	}

	log := s.log.With(
		"operator", session.Username,
		"source", req.SourceAccountID,
		"destination", req.DestinationAccountID,
		"amount", amount.String(),
	)

	source, err := s.repo.GetAccount(ctx, req.SourceAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Transfer{}, newError(KindSourceNotFound, nil)
		}
		log.Error(ctx, "transfer: loading source failed", "error", err)
		return types.Transfer{}, newError(KindStoreUnavailable, err)
	}
	if !source.IsActive() {
		return types.Transfer{}, newError(KindSourceNotFound, nil)
	}
	if source.Balance < amount {
		log.Warn(ctx, "transfer rejected: insufficient funds")
		return types.Transfer{}, newError(KindInsufficientFunds, nil)
	}

	transfer, err := s.repo.ApplyTransfer(ctx, types.Transfer{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               amount,
		Type:                 types.TransferTypeTransfer,
		Description:          strings.TrimSpace(req.Description),
		Operator:             session.Username,
		CreatedAt:            s.now(),
		Status:               types.TransferStatusCompleted,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientFunds):
			log.Warn(ctx, "transfer rejected: insufficient funds")
			return types.Transfer{}, newError(KindInsufficientFunds, nil)
		case errors.Is(err, store.ErrSourceUnavailable):
			return types.Transfer{}, newError(KindSourceNotFound, nil)
		case errors.Is(err, store.ErrDestinationUnavailable):
			return types.Transfer{}, newError(KindDestinationNotFound, nil)
		default:
			log.Error(ctx, "transfer: transaction aborted", "error", err)
			return types.Transfer{}, newError(KindTransactionFailed, err)
		}
	}

	log.Info(ctx, "transfer committed", "transfer_id", transfer.ID)
	s.publishCompleted(ctx, transfer)
	return transfer, nil
}

type transferEvent struct {
	Event    string         `json:"event"`
	Transfer types.Transfer `json:"transfer"`
}

func (s *LedgerService) publishCompleted(ctx context.Context, transfer types.Transfer) {
	if s.events == nil || s.eventsChannel == "" {
		return
	}
	data, err := json.Marshal(transferEvent{Event: EventTransferCompleted, Transfer: transfer})
	if err != nil {
		s.log.Error(ctx, "transfer event: encoding failed", "transfer_id", transfer.ID, "error", err)
		return
	}
	attrs := map[string]string{
		"event":       EventTransferCompleted,
		"transfer_id": strconv.FormatInt(transfer.ID, 10),
	}
	if _, err := s.events.Publish(ctx, s.eventsChannel, data, attrs); err != nil {
		s.log.Warn(ctx, "transfer event: publish failed", "transfer_id", transfer.ID, "error", err)
	}
}

// ListAccounts returns the active accounts.
func (s *LedgerService) ListAccounts(ctx context.Context, session *types.Session) ([]types.Account, error) {
	if err := authorize(session); err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListActiveAccounts(ctx)
	if err != nil {
		s.log.Error(ctx, "list accounts failed", "error", err)
		return nil, newError(KindStoreUnavailable, err)
	}
	s.log.Info(ctx, "accounts listed", "operator", session.Username, "count", len(accounts))
	return accounts, nil
}

// ListTransfers returns recent transfers, newest first. A non-positive limit
// selects the default; larger limits are capped.
func (s *LedgerService) ListTransfers(ctx context.Context, session *types.Session, limit int) ([]types.Transfer, error) {
	if err := authorize(session); err != nil {
		return nil, err
	}
	transfers, err := s.recentTransfers(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "transfers listed", "operator", session.Username, "count", len(transfers))
	return transfers, nil
}

func (s *LedgerService) recentTransfers(ctx context.Context, limit int) ([]types.Transfer, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	transfers, err := s.repo.ListTransfers(ctx, limit)
	if err != nil {
		s.log.Error(ctx, "list transfers failed", "error", err)
		return nil, newError(KindStoreUnavailable, err)
	}
	return transfers, nil
}
