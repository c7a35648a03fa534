package types

// AccountStatusActive is the only status transfers may touch.
const AccountStatusActive = "actif"

// Account is a customer ledger account.
type Account struct {
	ID      int64  `json:"id" db:"id"`
	Number  string `json:"account_number" db:"numero_compte"`
	Type    string `json:"account_type" db:"type_compte"`
	Balance Amount `json:"balance" db:"solde"`
	// Currency is an ISO code; no conversion is ever performed.
	Currency string `json:"currency" db:"devise"`
	Status   string `json:"status" db:"statut"`

	// Owner fields are joined from the clients table for listings.
	OwnerLastName  string `json:"owner_last_name,omitempty" db:"nom"`
	OwnerFirstName string `json:"owner_first_name,omitempty" db:"prenom"`
	OwnerEmail     string `json:"owner_email,omitempty" db:"email"`
	OwnerPhone     string `json:"owner_phone,omitempty" db:"telephone"`
}

// IsActive reports whether the account may take part in a transfer.
func (a Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
