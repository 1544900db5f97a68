/*
store.go - Persistence interfaces for the ledger core

PURPOSE:
  Defines the boundary between the reconciliation engine and the database.
  The engine never talks SQL; it talks to these interfaces, and the store
  decides how the wide transaction row and the sheet row are laid out.

KEY INTERFACES:
  LedgerStore:    Transaction row persistence (insert/get/update/delete/list)
  SheetStore:     Current-sheet persistence (seed/get/save/delete/list)
  AssetStore:     Asset rows (whose lifecycle drives sheet lifecycle)
  ReferenceStore: Read-only existence checks for referential validation
  Stores:         All of the above, bound to one database handle
  TxRunner:       Stores plus WithTx for atomic multi-row units

TRANSACTION CONTRACT:
  WithTx(ctx, fn) runs fn against a Stores view bound to a single database
  transaction. If fn returns an error the transaction is rolled back; if fn
  returns nil it is committed. There is no other way to mutate a sheet and a
  ledger row together, which is what makes partial application structurally
  impossible.

ABSENCE CONVENTION:
  Get* methods return (nil, nil) when the row does not exist. The engine
  turns that into a typed NotFoundError; the store never invents one.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store

SEE ALSO:
  - engine.go: The only consumer of WithTx
  - validate.go: Consumer of ReferenceStore
*/
package ledger

import "context"

// =============================================================================
// LEDGER STORE - Transaction rows
// =============================================================================

type LedgerStore interface {
	// InsertTransaction persists a new transaction row.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// GetTransaction returns the transaction with the given id, scoped to the
	// user and kind. Returns (nil, nil) if no such row exists.
	GetTransaction(ctx context.Context, userID UserID, id TransactionID, kind Kind) (*Transaction, error)

	// UpdateTransaction overwrites the mutable fields of an existing row.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// DeleteTransaction removes the row. Returns ErrNotFound if absent.
	DeleteTransaction(ctx context.Context, userID UserID, id TransactionID) error

	// ListTransactions returns all of a user's transactions of one kind,
	// newest first.
	ListTransactions(ctx context.Context, userID UserID, kind Kind) ([]Transaction, error)
}

// =============================================================================
// SHEET STORE - Materialized balances
// =============================================================================

type SheetStore interface {
	// SeedSheet creates a sheet. Fails with ErrConstraintViolation if one
	// already exists for the (user, asset) pair.
	SeedSheet(ctx context.Context, sheet CurrentSheet) error

	// GetSheet returns the sheet for (user, asset), or (nil, nil) if absent.
	GetSheet(ctx context.Context, userID UserID, assetID AssetID) (*CurrentSheet, error)

	// SaveSheet writes back balance, last-transaction pointer and updated_at.
	SaveSheet(ctx context.Context, sheet CurrentSheet) error

	// DeleteSheet removes the sheet. Returns ErrNotFound if absent.
	DeleteSheet(ctx context.Context, userID UserID, assetID AssetID) error

	// ListSheets returns all sheets for a user.
	ListSheets(ctx context.Context, userID UserID) ([]CurrentSheet, error)

	// ListSheetsByAssets returns the sheets for a set of the user's assets.
	ListSheetsByAssets(ctx context.Context, userID UserID, assetIDs []AssetID) ([]CurrentSheet, error)
}

// =============================================================================
// ASSET STORE
// =============================================================================

type AssetStore interface {
	InsertAsset(ctx context.Context, asset Asset) error
	GetAsset(ctx context.Context, userID UserID, id AssetID) (*Asset, error)
	DeleteAsset(ctx context.Context, userID UserID, id AssetID) error
	ListAssets(ctx context.Context, userID UserID) ([]Asset, error)
}

// =============================================================================
// REFERENCE STORE - Existence checks for referential validation
// =============================================================================

// ReferenceStore resolves foreign ids to "does it exist, owned by this
// user". Read-only; used by validation before any write begins.
type ReferenceStore interface {
	AssetExists(ctx context.Context, userID UserID, id AssetID) (bool, error)
	ContactExists(ctx context.Context, userID UserID, id ContactID) (bool, error)
	ExpenseExists(ctx context.Context, userID UserID, id ExpenseID) (bool, error)
}

// =============================================================================
// BUNDLES
// =============================================================================

// Stores bundles every persistence concern bound to one database handle.
// Inside WithTx the handle is a single database transaction.
type Stores interface {
	LedgerStore
	SheetStore
	AssetStore
	ReferenceStore
}

// TxRunner is what the engine holds: direct reads plus atomic units.
type TxRunner interface {
	Stores

	// WithTx executes fn within one database transaction.
	// If fn returns an error the transaction is rolled back.
	// If fn returns nil it is committed.
	WithTx(ctx context.Context, fn func(Stores) error) error
}
