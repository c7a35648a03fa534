package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/securebank/backoffice/internal/db"
	"github.com/securebank/backoffice/types"
)

// LedgerRepository handles persistence for accounts and transfer records.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) GetAccount(ctx context.Context, id int64) (types.Account, error) {
	const query = `
		SELECT id, numero_compte, type_compte, solde, devise, statut
		FROM comptes
		WHERE id = $1`
	var account types.Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Number,
		&account.Type,
		&account.Balance,
		&account.Currency,
		&account.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

// ListActiveAccounts returns active accounts with their owners, ordered by
// owner last name then first name.
func (r *LedgerRepository) ListActiveAccounts(ctx context.Context) ([]types.Account, error) {
	const query = `
		SELECT c.id, c.numero_compte, c.type_compte, c.solde, c.devise, c.statut,
		       cl.nom, cl.prenom, cl.email, cl.telephone
		FROM comptes c
		JOIN clients cl ON c.client_id = cl.id
		WHERE c.statut = $1
		ORDER BY cl.nom, cl.prenom`
	rows, err := r.db.QueryContext(ctx, query, types.AccountStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]types.Account, 0)
	for rows.Next() {
		var account types.Account
		var email, phone sql.NullString
		if err := rows.Scan(
			&account.ID,
			&account.Number,
			&account.Type,
			&account.Balance,
			&account.Currency,
			&account.Status,
			&account.OwnerLastName,
			&account.OwnerFirstName,
			&email,
			&phone,
		); err != nil {
			return nil, err
		}
		account.OwnerEmail = email.String
		account.OwnerPhone = phone.String
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListTransfers returns at most limit transfer records, most recent first.
func (r *LedgerRepository) ListTransfers(ctx context.Context, limit int) ([]types.Transfer, error) {
	const query = `
		SELECT t.id, t.compte_source_id, t.compte_dest_id, t.montant, t.type_transaction,
		       t.description, t.date_transaction, t.agent_username, t.statut,
		       cs.numero_compte, cd.numero_compte
		FROM transactions t
		LEFT JOIN comptes cs ON t.compte_source_id = cs.id
		LEFT JOIN comptes cd ON t.compte_dest_id = cd.id
		ORDER BY t.date_transaction DESC, t.id DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]types.Transfer, 0, limit)
	for rows.Next() {
		var transfer types.Transfer
		var sourceID, destID sql.NullInt64
		var sourceNumber, destNumber sql.NullString
		if err := rows.Scan(
			&transfer.ID,
			&sourceID,
			&destID,
			&transfer.Amount,
			&transfer.Type,
			&transfer.Description,
			&transfer.CreatedAt,
			&transfer.Operator,
			&transfer.Status,
			&sourceNumber,
			&destNumber,
		); err != nil {
			return nil, err
		}
		transfer.SourceAccountID = sourceID.Int64
		transfer.DestinationAccountID = destID.Int64
		transfer.SourceNumber = sourceNumber.String
		transfer.DestinationNumber = destNumber.String
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

// ApplyTransfer debits the source, credits the destination and inserts the
// transfer record in one transaction. Both account rows are locked in
// ascending id order before the balance is checked, so concurrent transfers
// over the same accounts serialize without deadlocking. On any error nothing
// is committed.
func (r *LedgerRepository) ApplyTransfer(ctx context.Context, transfer types.Transfer) (types.Transfer, error) {
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}
	if transfer.Type == "" {
		transfer.Type = types.TransferTypeTransfer
	}
	transfer.Status = types.TransferStatusCompleted

	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		locked, err := lockAccounts(ctx, tx, transfer.SourceAccountID, transfer.DestinationAccountID)
		if err != nil {
			return err
		}

		source, ok := locked[transfer.SourceAccountID]
		if !ok || !source.IsActive() {
			return ErrSourceUnavailable
		}
		dest, ok := locked[transfer.DestinationAccountID]
		if !ok || !dest.IsActive() {
			return ErrDestinationUnavailable
		}
		if source.Balance < transfer.Amount {
			return ErrInsufficientFunds
		}

		if err := adjustBalance(ctx, tx, transfer.SourceAccountID, -transfer.Amount); err != nil {
			return err
		}
		if err := adjustBalance(ctx, tx, transfer.DestinationAccountID, transfer.Amount); err != nil {
			return err
		}

		const insert = `
			INSERT INTO transactions (
				compte_source_id, compte_dest_id, montant, type_transaction,
				description, agent_username, date_transaction, statut
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`
		return tx.QueryRowContext(
			ctx,
			insert,
			transfer.SourceAccountID,
			transfer.DestinationAccountID,
			transfer.Amount,
			transfer.Type,
			transfer.Description,
			transfer.Operator,
			transfer.CreatedAt,
			transfer.Status,
		).Scan(&transfer.ID)
	})
	if err != nil {
		return types.Transfer{}, err
	}
	return transfer, nil
}

func lockAccounts(ctx context.Context, tx db.DBTX, sourceID, destID int64) (map[int64]types.Account, error) {
	const query = `
		SELECT id, solde, statut
		FROM comptes
		WHERE id IN ($1, $2)
		ORDER BY id
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, sourceID, destID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[int64]types.Account, 2)
	for rows.Next() {
		var account types.Account
		if err := rows.Scan(&account.ID, &account.Balance, &account.Status); err != nil {
			return nil, err
		}
		locked[account.ID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locked, nil
}

func adjustBalance(ctx context.Context, tx db.DBTX, id int64, delta types.Amount) error {
	const query = `UPDATE comptes SET solde = solde + $1 WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, delta, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrNotFound
	}
	return nil
}
