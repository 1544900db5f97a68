/*
Package ledger contains the core of the personal multi-asset ledger: the
transaction model, the materialized per-asset balance (the "current sheet"),
and the reconciliation engine that keeps the two consistent.

PURPOSE:
  Users record income, payments and transfers against named assets (bank
  accounts, wallets, cash). Every ledger mutation carries a balance
  side-effect, and both are applied inside one atomic unit of work so the
  materialized balance can never drift from the transaction log.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: A ledger record. One physical row shape, three logical
    kinds (Income, Payment, Transfer) discriminated by the Detail payload.
  - Detail: Kind-specific payload (sealed interface). A Payment carries an
    expense, a Transfer carries a destination asset, an Income carries
    nothing extra. Invalid combinations are unrepresentable.
  - CurrentSheet: The materialized running balance, one row per
    (user, asset), with a back-reference to the transaction that last
    touched it.
  - Asset / Contact / Expense: Reference entities a transaction points at.

DESIGN PRINCIPLES:
  1. Precision: amounts and balances are decimal.Decimal end-to-end.
     No float round-trips anywhere in the arithmetic.
  2. Positive magnitudes: Transaction.Amount is always positive; the sign
     of its balance contribution is implied by the kind.
  3. Type safety: distinct id types prevent mixing asset/contact/expense ids.
  4. Ownership: every transaction, sheet and reference entity belongs to
     exactly one user; all lookups are scoped by that user.

SEE ALSO:
  - engine.go: The reconciliation protocol (create/update/delete)
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string
type UserID string
type AssetID string
type ContactID string
type ExpenseID string

// =============================================================================
// KIND - Discriminator for the three transaction flavors
// =============================================================================

// Kind identifies which flavor of transaction a record is. Kinds live in a
// small fixed lookup table; users never create or destroy them.
type Kind string

const (
	KindIncome   Kind = "income"
	KindPayment  Kind = "payment"
	KindTransfer Kind = "transfer"
)

// Kinds lists every known kind, in seeding order.
func Kinds() []Kind {
	return []Kind{KindIncome, KindPayment, KindTransfer}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindPayment, KindTransfer:
		return true
	}
	return false
}

// =============================================================================
// DETAIL - Kind-specific payload (sealed)
// =============================================================================

// Detail carries the fields that only exist for one kind. The persistence
// layer flattens it onto the wide transaction row; the domain layer keeps it
// as a tagged variant so a Payment can never carry a destination asset.
type Detail interface {
	Kind() Kind
}

// IncomeDetail - money arriving at an asset. No extra fields.
type IncomeDetail struct{}

func (IncomeDetail) Kind() Kind { return KindIncome }

// PaymentDetail - money leaving an asset against an expense category.
type PaymentDetail struct {
	ExpenseID ExpenseID
}

func (PaymentDetail) Kind() Kind { return KindPayment }

// TransferDetail - money moving from one asset to another.
type TransferDetail struct {
	DestinationAssetID AssetID
}

func (TransferDetail) Kind() Kind { return KindTransfer }

// =============================================================================
// TRANSACTION - The ledger record
// =============================================================================

type Transaction struct {
	ID      TransactionID
	UserID  UserID
	AssetID AssetID // primary (source) asset, required for all kinds

	// Amount is a positive magnitude; direction is implied by the kind.
	Amount decimal.Decimal

	Detail    Detail
	ContactID *ContactID // optional counterparty, any kind
	Note      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kind returns the discriminator carried by the detail payload.
func (t Transaction) Kind() Kind { return t.Detail.Kind() }

// =============================================================================
// CURRENT SHEET - Materialized balance, one per (user, asset)
// =============================================================================

// CurrentSheet holds the running balance for one asset. Exactly one sheet
// exists per (user, asset) for the lifetime of the asset: it is seeded at
// zero when the asset is created and removed when the asset is deleted.
// Its balance is mutated exclusively by the reconciliation engine.
type CurrentSheet struct {
	ID      string
	UserID  UserID
	AssetID AssetID
	Balance decimal.Decimal

	// LastTransactionID points at the transaction that most recently changed
	// this sheet. Nil after the pointed-at transaction is deleted.
	LastTransactionID *TransactionID

	UpdatedAt time.Time
}

// =============================================================================
// REFERENCE ENTITIES
// =============================================================================

// Asset is a named container of funds (bank account, wallet, cash).
type Asset struct {
	ID        AssetID
	UserID    UserID
	Name      string
	TypeID    string // opaque; asset-type lookup tables live outside the core
	CreatedAt time.Time
}

// Contact is a counterparty a transaction may reference.
type Contact struct {
	ID        ContactID
	UserID    UserID
	Name      string
	TypeID    string
	CreatedAt time.Time
}

// Expense is a spending category a payment references.
type Expense struct {
	ID        ExpenseID
	UserID    UserID
	Name      string
	TypeID    string
	CreatedAt time.Time
}

// =============================================================================
// ENGINE INPUTS
// =============================================================================

// CreateIncomeInput carries the validated fields for a new income record.
type CreateIncomeInput struct {
	AssetID   AssetID
	Amount    decimal.Decimal
	ContactID *ContactID
	Note      string
}

// CreatePaymentInput carries the validated fields for a new payment record.
type CreatePaymentInput struct {
	AssetID   AssetID
	ExpenseID ExpenseID
	Amount    decimal.Decimal
	ContactID *ContactID
	Note      string
}

// CreateTransferInput carries the validated fields for a new transfer record.
type CreateTransferInput struct {
	AssetID            AssetID
	DestinationAssetID AssetID
	Amount             decimal.Decimal
	ContactID          *ContactID
	Note               string
}

// UpdateInput is a partial update: nil means "leave unchanged", never
// "clear". DestinationAssetID is only legal for transfers, ExpenseID only
// for payments; the engine rejects mismatches as invalid input.
type UpdateInput struct {
	Amount             *decimal.Decimal
	AssetID            *AssetID
	DestinationAssetID *AssetID
	ExpenseID          *ExpenseID
	ContactID          *ContactID
	Note               *string
}
