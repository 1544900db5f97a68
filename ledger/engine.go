/*
engine.go - The balance reconciliation engine

PURPOSE:
  Every ledger mutation (create/update/delete of an income, payment or
  transfer) carries a balance side-effect on one or two current sheets.
  The engine computes that side-effect and applies it inside the same
  database transaction as the ledger mutation, so the materialized balance
  and the transaction log can never disagree.

SIGNED CONTRIBUTIONS PER KIND:
  Income:   +amount on the source asset's sheet
  Payment:  -amount on the source asset's sheet
  Transfer: -amount on the source, +amount on the destination

PROTOCOL (per write operation):
  1. Begin one database transaction (WithTx).
  2. Validate every referenced foreign id (read-only, all before writes).
  3. Write the ledger row (insert/update/delete).
  4. For each affected asset: load its sheet (absence is a fatal invariant
     violation, not an auto-create), apply the signed delta, write back
     balance + last-transaction pointer + updated_at.
  5. Commit. Any failure at any step rolls the whole unit back.

UPDATE DELTAS:
  An update reverts the old record's contribution and applies the new one.
  When the asset is unchanged the two net into a single sheet write; when
  the asset moved, the old sheet gets the full reversal and the new sheet
  the full effect, both inside the same transaction.

CONCURRENCY:
  There is no application-level locking, retry or versioning. The database
  transaction wrapping each unit is the sole concurrency control; two units
  touching the same sheet serialize at the store.

SEE ALSO:
  - validate.go: Referential validation
  - store.go: The WithTx contract
*/
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine owns every mutation of transactions, sheets and assets. Read paths
// go straight to the store; nothing outside the engine may touch a balance.
type Engine struct {
	store TxRunner
	now   func() time.Time
}

// NewEngine creates an engine over the given store.
func NewEngine(store TxRunner) *Engine {
	return &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateIncome records money arriving at an asset and credits its sheet.
func (e *Engine) CreateIncome(ctx context.Context, userID UserID, in CreateIncomeInput) (*Transaction, error) {
	return e.create(ctx, userID, in.AssetID, in.Amount, IncomeDetail{}, in.ContactID, in.Note)
}

// CreatePayment records money leaving an asset and debits its sheet.
func (e *Engine) CreatePayment(ctx context.Context, userID UserID, in CreatePaymentInput) (*Transaction, error) {
	return e.create(ctx, userID, in.AssetID, in.Amount, PaymentDetail{ExpenseID: in.ExpenseID}, in.ContactID, in.Note)
}

// CreateTransfer records money moving between two assets, debiting the
// source sheet and crediting the destination sheet in one unit.
func (e *Engine) CreateTransfer(ctx context.Context, userID UserID, in CreateTransferInput) (*Transaction, error) {
	if in.DestinationAssetID == in.AssetID {
		return nil, &InvalidInputError{Field: "destination_asset_id", Reason: "must differ from asset_id"}
	}
	return e.create(ctx, userID, in.AssetID, in.Amount, TransferDetail{DestinationAssetID: in.DestinationAssetID}, in.ContactID, in.Note)
}

func (e *Engine) create(ctx context.Context, userID UserID, assetID AssetID, amount decimal.Decimal, detail Detail, contactID *ContactID, note string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, &InvalidInputError{Field: "amount", Reason: "must be a positive magnitude"}
	}

	now := e.now()
	tx := Transaction{
		ID:        TransactionID(uuid.NewString()),
		UserID:    userID,
		AssetID:   assetID,
		Amount:    amount,
		Detail:    detail,
		ContactID: contactID,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := e.store.WithTx(ctx, func(s Stores) error {
		if err := validateTransaction(ctx, s, tx); err != nil {
			return err
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return applyDeltas(ctx, s, userID, effects(tx), &tx.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// Update applies a partial update to the transaction with the given id and
// kind, reconciling every affected sheet in the same unit. Nil input fields
// are left untouched.
func (e *Engine) Update(ctx context.Context, userID UserID, kind Kind, id TransactionID, in UpdateInput) (*Transaction, error) {
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, &InvalidInputError{Field: "amount", Reason: "must be a positive magnitude"}
	}

	var updated Transaction
	err := e.store.WithTx(ctx, func(s Stores) error {
		existing, err := s.GetTransaction(ctx, userID, id, kind)
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{Entity: "transaction", Field: "transaction_id", ID: string(id)}
		}

		next := *existing
		if in.Amount != nil {
			next.Amount = *in.Amount
		}
		if in.AssetID != nil {
			next.AssetID = *in.AssetID
		}
		if err := applyDetailUpdate(&next, in); err != nil {
			return err
		}
		if in.ContactID != nil {
			next.ContactID = in.ContactID
		}
		if in.Note != nil {
			next.Note = *in.Note
		}
		next.UpdatedAt = e.now()

		if d, ok := next.Detail.(TransferDetail); ok && d.DestinationAssetID == next.AssetID {
			return &InvalidInputError{Field: "destination_asset_id", Reason: "must differ from asset_id"}
		}

		if err := validateTransaction(ctx, s, next); err != nil {
			return err
		}
		if err := s.UpdateTransaction(ctx, next); err != nil {
			return err
		}

		// Revert the old record's contribution, apply the new one. Same-asset
		// updates net into a single sheet write.
		deltas := mergeDeltas(negate(effects(*existing)), effects(next))
		if err := applyDeltas(ctx, s, userID, deltas, &next.ID, next.UpdatedAt); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// applyDetailUpdate folds kind-specific fields into the variant payload and
// rejects fields that do not belong to the record's kind.
func applyDetailUpdate(tx *Transaction, in UpdateInput) error {
	switch d := tx.Detail.(type) {
	case IncomeDetail:
		if in.ExpenseID != nil {
			return &InvalidInputError{Field: "expense_id", Reason: "not valid for income"}
		}
		if in.DestinationAssetID != nil {
			return &InvalidInputError{Field: "destination_asset_id", Reason: "not valid for income"}
		}
	case PaymentDetail:
		if in.DestinationAssetID != nil {
			return &InvalidInputError{Field: "destination_asset_id", Reason: "not valid for payment"}
		}
		if in.ExpenseID != nil {
			d.ExpenseID = *in.ExpenseID
			tx.Detail = d
		}
	case TransferDetail:
		if in.ExpenseID != nil {
			return &InvalidInputError{Field: "expense_id", Reason: "not valid for transfer"}
		}
		if in.DestinationAssetID != nil {
			d.DestinationAssetID = *in.DestinationAssetID
			tx.Detail = d
		}
	}
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes the transaction and applies the inverse of its original
// contribution to every sheet it touched, in one unit. The sheets'
// last-transaction pointers are cleared since the row no longer exists.
func (e *Engine) Delete(ctx context.Context, userID UserID, kind Kind, id TransactionID) error {
	return e.store.WithTx(ctx, func(s Stores) error {
		existing, err := s.GetTransaction(ctx, userID, id, kind)
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{Entity: "transaction", Field: "transaction_id", ID: string(id)}
		}
		if err := s.DeleteTransaction(ctx, userID, id); err != nil {
			return err
		}
		return applyDeltas(ctx, s, userID, negate(effects(*existing)), nil, e.now())
	})
}

// =============================================================================
// READ PATHS - Never invoke reconciliation
// =============================================================================

// Transaction returns one transaction by (user, id), scoped by kind.
func (e *Engine) Transaction(ctx context.Context, userID UserID, kind Kind, id TransactionID) (*Transaction, error) {
	tx, err := e.store.GetTransaction(ctx, userID, id, kind)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &NotFoundError{Entity: "transaction", Field: "transaction_id", ID: string(id)}
	}
	return tx, nil
}

// Transactions returns all of a user's transactions of one kind.
func (e *Engine) Transactions(ctx context.Context, userID UserID, kind Kind) ([]Transaction, error) {
	return e.store.ListTransactions(ctx, userID, kind)
}

// Sheet returns the current sheet for (user, asset).
func (e *Engine) Sheet(ctx context.Context, userID UserID, assetID AssetID) (*CurrentSheet, error) {
	sheet, err := e.store.GetSheet(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}
	if sheet == nil {
		return nil, &NotFoundError{Entity: "current_sheet", Field: "asset_id", ID: string(assetID)}
	}
	return sheet, nil
}

// Sheets returns all current sheets for a user.
func (e *Engine) Sheets(ctx context.Context, userID UserID) ([]CurrentSheet, error) {
	return e.store.ListSheets(ctx, userID)
}

// SheetsForAssets returns the sheets for a set of the user's assets.
func (e *Engine) SheetsForAssets(ctx context.Context, userID UserID, assetIDs []AssetID) ([]CurrentSheet, error) {
	return e.store.ListSheetsByAssets(ctx, userID, assetIDs)
}

// =============================================================================
// ASSET LIFECYCLE - Drives sheet lifecycle
// =============================================================================

// CreateAsset creates an asset and seeds its sheet at zero atomically.
func (e *Engine) CreateAsset(ctx context.Context, userID UserID, name, typeID string) (*Asset, error) {
	if name == "" {
		return nil, &InvalidInputError{Field: "name", Reason: "must not be empty"}
	}

	now := e.now()
	asset := Asset{
		ID:        AssetID(uuid.NewString()),
		UserID:    userID,
		Name:      name,
		TypeID:    typeID,
		CreatedAt: now,
	}

	err := e.store.WithTx(ctx, func(s Stores) error {
		if err := s.InsertAsset(ctx, asset); err != nil {
			return err
		}
		return s.SeedSheet(ctx, CurrentSheet{
			ID:        uuid.NewString(),
			UserID:    userID,
			AssetID:   asset.ID,
			Balance:   decimal.Zero,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// DeleteAsset removes an asset and its sheet atomically. An already-absent
// sheet is tolerated so the lifecycle hook stays idempotent.
func (e *Engine) DeleteAsset(ctx context.Context, userID UserID, assetID AssetID) error {
	return e.store.WithTx(ctx, func(s Stores) error {
		asset, err := s.GetAsset(ctx, userID, assetID)
		if err != nil {
			return err
		}
		if asset == nil {
			return &NotFoundError{Entity: "asset", Field: "asset_id", ID: string(assetID)}
		}
		if err := s.DeleteSheet(ctx, userID, assetID); err != nil && !IsNotFound(err) {
			return err
		}
		return s.DeleteAsset(ctx, userID, assetID)
	})
}

// Asset returns one asset by (user, id).
func (e *Engine) Asset(ctx context.Context, userID UserID, assetID AssetID) (*Asset, error) {
	asset, err := e.store.GetAsset(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, &NotFoundError{Entity: "asset", Field: "asset_id", ID: string(assetID)}
	}
	return asset, nil
}

// Assets returns all assets for a user.
func (e *Engine) Assets(ctx context.Context, userID UserID) ([]Asset, error) {
	return e.store.ListAssets(ctx, userID)
}

// =============================================================================
// DELTA ARITHMETIC
// =============================================================================

// effects returns the signed per-asset balance contribution of a record.
func effects(tx Transaction) map[AssetID]decimal.Decimal {
	switch d := tx.Detail.(type) {
	case IncomeDetail:
		return map[AssetID]decimal.Decimal{tx.AssetID: tx.Amount}
	case PaymentDetail:
		return map[AssetID]decimal.Decimal{tx.AssetID: tx.Amount.Neg()}
	case TransferDetail:
		return map[AssetID]decimal.Decimal{
			tx.AssetID:           tx.Amount.Neg(),
			d.DestinationAssetID: tx.Amount,
		}
	}
	return nil
}

func negate(deltas map[AssetID]decimal.Decimal) map[AssetID]decimal.Decimal {
	out := make(map[AssetID]decimal.Decimal, len(deltas))
	for id, d := range deltas {
		out[id] = d.Neg()
	}
	return out
}

func mergeDeltas(a, b map[AssetID]decimal.Decimal) map[AssetID]decimal.Decimal {
	out := make(map[AssetID]decimal.Decimal, len(a)+len(b))
	for id, d := range a {
		out[id] = d
	}
	for id, d := range b {
		if cur, ok := out[id]; ok {
			out[id] = cur.Add(d)
		} else {
			out[id] = d
		}
	}
	return out
}

// applyDeltas loads each affected sheet, applies its signed delta and writes
// it back with the new last-transaction pointer. A missing sheet is a fatal
// invariant violation: every asset must have exactly one, so the unit aborts
// rather than auto-creating it.
func applyDeltas(ctx context.Context, s Stores, userID UserID, deltas map[AssetID]decimal.Decimal, last *TransactionID, at time.Time) error {
	ids := make([]AssetID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, assetID := range ids {
		sheet, err := s.GetSheet(ctx, userID, assetID)
		if err != nil {
			return err
		}
		if sheet == nil {
			return &NotFoundError{Entity: "current_sheet", Field: "asset_id", ID: string(assetID)}
		}
		sheet.Balance = sheet.Balance.Add(deltas[assetID])
		sheet.LastTransactionID = last
		sheet.UpdatedAt = at
		if err := s.SaveSheet(ctx, *sheet); err != nil {
			return err
		}
	}
	return nil
}
