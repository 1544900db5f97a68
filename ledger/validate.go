/*
validate.go - Referential validation

PURPOSE:
  Before any transaction write, confirm that every non-null foreign id the
  record carries resolves to an existing row owned by the acting user. The
  check is read-only and runs to completion before the first write of the
  unit of work; on failure it names exactly which field was invalid.

CHECKS PER KIND:
  All kinds:  asset_id, contact_id (when set)
  Payment:    expense_id
  Transfer:   destination_asset_id

  The kind itself is validated structurally: the Detail variant cannot
  express an unknown kind, and the API layer rejects unknown kind strings
  before they reach the core.

SEE ALSO:
  - engine.go: Calls validateTransaction at the top of every write unit
  - errors.go: NotFoundError
*/
package ledger

import "context"

// validateTransaction checks every foreign id carried by tx against the
// reference store. Returns a NotFoundError naming the first unresolved field.
func validateTransaction(ctx context.Context, refs ReferenceStore, tx Transaction) error {
	ok, err := refs.AssetExists(ctx, tx.UserID, tx.AssetID)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Entity: "asset", Field: "asset_id", ID: string(tx.AssetID)}
	}

	switch d := tx.Detail.(type) {
	case PaymentDetail:
		ok, err := refs.ExpenseExists(ctx, tx.UserID, d.ExpenseID)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{Entity: "expense", Field: "expense_id", ID: string(d.ExpenseID)}
		}
	case TransferDetail:
		ok, err := refs.AssetExists(ctx, tx.UserID, d.DestinationAssetID)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{Entity: "asset", Field: "destination_asset_id", ID: string(d.DestinationAssetID)}
		}
	}

	if tx.ContactID != nil {
		ok, err := refs.ContactExists(ctx, tx.UserID, *tx.ContactID)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{Entity: "contact", Field: "contact_id", ID: string(*tx.ContactID)}
		}
	}

	return nil
}
