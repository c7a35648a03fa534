package types

import "time"

const (
	// TransferTypeTransfer marks account-to-account movements.
	TransferTypeTransfer = "virement"

	// TransferStatusCompleted is the only status the ledger writes.
	TransferStatusCompleted = "termine"
)

// Transfer is the audit record of a committed funds movement.
type Transfer struct {
	// ID is assigned by the store when the record is inserted.
	ID int64 `json:"id" db:"id"`

	SourceAccountID      int64 `json:"source_account_id" db:"compte_source_id"`
	DestinationAccountID int64 `json:"destination_account_id" db:"compte_dest_id"`

	// SourceNumber and DestinationNumber are filled in by history listings
	// and are empty if the account row no longer exists.
	SourceNumber      string `json:"source_account,omitempty"`
	DestinationNumber string `json:"destination_account,omitempty"`

	Amount      Amount    `json:"amount" db:"montant"`
	Type        string    `json:"type" db:"type_transaction"`
	Description string    `json:"description" db:"description"`
	Operator    string    `json:"operator" db:"agent_username"`
	CreatedAt   time.Time `json:"created_at" db:"date_transaction"`
	Status      string    `json:"status" db:"statut"`
}
