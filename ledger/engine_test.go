package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbook/ledger-engine/ledger"
	"github.com/finbook/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const user = ledger.UserID("user-1")

func newTestEngine(t *testing.T) (*ledger.Engine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return ledger.NewEngine(store), store
}

func mustAsset(t *testing.T, engine *ledger.Engine, name string) *ledger.Asset {
	t.Helper()
	asset, err := engine.CreateAsset(context.Background(), user, name, "bank")
	require.NoError(t, err)
	return asset
}

func mustExpense(t *testing.T, store *sqlite.Store, name string) ledger.Expense {
	t.Helper()
	e := ledger.Expense{ID: ledger.ExpenseID("exp-" + name), UserID: user, Name: name}
	require.NoError(t, store.SaveExpense(context.Background(), e))
	return e
}

func mustContact(t *testing.T, store *sqlite.Store, name string) ledger.Contact {
	t.Helper()
	c := ledger.Contact{ID: ledger.ContactID("con-" + name), UserID: user, Name: name}
	require.NoError(t, store.SaveContact(context.Background(), c))
	return c
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sheetBalance(t *testing.T, engine *ledger.Engine, assetID ledger.AssetID) decimal.Decimal {
	t.Helper()
	sheet, err := engine.Sheet(context.Background(), user, assetID)
	require.NoError(t, err)
	return sheet.Balance
}

// =============================================================================
// SHEET LIFECYCLE
// =============================================================================

func TestCreateAsset_SeedsSheetAtZero(t *testing.T) {
	// GIVEN: A fresh ledger
	// WHEN: Creating three assets
	// THEN: Each has exactly one sheet, seeded at zero

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, name := range []string{"Checking", "Savings", "Cash"} {
		mustAsset(t, engine, name)
	}

	sheets, err := engine.Sheets(ctx, user)
	require.NoError(t, err)
	require.Len(t, sheets, 3)
	for _, sheet := range sheets {
		assert.True(t, sheet.Balance.IsZero(), "sheet for %s should be seeded at zero", sheet.AssetID)
		assert.Nil(t, sheet.LastTransactionID)
	}
}

func TestDeleteAsset_RemovesSheet(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	asset := mustAsset(t, engine, "Checking")
	require.NoError(t, engine.DeleteAsset(ctx, user, asset.ID))

	_, err := engine.Sheet(ctx, user, asset.ID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestDeleteAsset_ToleratesAbsentSheet(t *testing.T) {
	// GIVEN: An asset whose sheet was already removed out-of-band
	// WHEN: Deleting the asset
	// THEN: The lifecycle hook succeeds anyway (idempotent sheet removal)

	engine, store := newTestEngine(t)
	ctx := context.Background()

	asset := mustAsset(t, engine, "Checking")
	require.NoError(t, store.DeleteSheet(ctx, user, asset.ID))

	assert.NoError(t, engine.DeleteAsset(ctx, user, asset.ID))
}

func TestDeleteSheet_SecondDeleteIsNotFound(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	asset := mustAsset(t, engine, "Checking")

	require.NoError(t, store.DeleteSheet(ctx, user, asset.ID))
	err := store.DeleteSheet(ctx, user, asset.ID)
	assert.True(t, ledger.IsNotFound(err), "second delete should fail with NotFound")
}

// =============================================================================
// PAYMENT RECONCILIATION
// =============================================================================

func TestPayment_CreateUpdateDelete_Scenario(t *testing.T) {
	// GIVEN: Asset "Checking" with a zero sheet
	// WHEN: Create Payment(25.50) -> Update to 10.00 -> Delete
	// THEN: Balance walks -25.50 -> -10.00 -> 0.00

	engine, store := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	groceries := mustExpense(t, store, "groceries")

	tx, err := engine.CreatePayment(ctx, user, ledger.CreatePaymentInput{
		AssetID:   checking.ID,
		ExpenseID: groceries.ID,
		Amount:    dec("25.50"),
	})
	require.NoError(t, err)

	sheet, err := engine.Sheet(ctx, user, checking.ID)
	require.NoError(t, err)
	assert.True(t, sheet.Balance.Equal(dec("-25.50")), "got %s", sheet.Balance)
	require.NotNil(t, sheet.LastTransactionID)
	assert.Equal(t, tx.ID, *sheet.LastTransactionID)

	newAmount := dec("10.00")
	_, err = engine.Update(ctx, user, ledger.KindPayment, tx.ID, ledger.UpdateInput{Amount: &newAmount})
	require.NoError(t, err)
	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("-10.00")))

	require.NoError(t, engine.Delete(ctx, user, ledger.KindPayment, tx.ID))

	sheet, err = engine.Sheet(ctx, user, checking.ID)
	require.NoError(t, err)
	assert.True(t, sheet.Balance.IsZero(), "got %s", sheet.Balance)
	assert.Nil(t, sheet.LastTransactionID, "pointer should clear when the transaction is gone")
}

func TestPayment_UpdateMovesAsset(t *testing.T) {
	// GIVEN: Payment(40.00) on Checking
	// WHEN: Updating its asset to Savings, amount unchanged
	// THEN: Checking returns to 0.00, Savings becomes -40.00

	engine, store := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	savings := mustAsset(t, engine, "Savings")
	rent := mustExpense(t, store, "rent")

	tx, err := engine.CreatePayment(ctx, user, ledger.CreatePaymentInput{
		AssetID:   checking.ID,
		ExpenseID: rent.ID,
		Amount:    dec("40.00"),
	})
	require.NoError(t, err)

	_, err = engine.Update(ctx, user, ledger.KindPayment, tx.ID, ledger.UpdateInput{AssetID: &savings.ID})
	require.NoError(t, err)

	assert.True(t, sheetBalance(t, engine, checking.ID).IsZero())
	assert.True(t, sheetBalance(t, engine, savings.ID).Equal(dec("-40.00")))
}

func TestPayment_BalanceConsistency(t *testing.T) {
	// GIVEN: A sequence of payment creates/updates/deletes on one asset
	// THEN: The balance always equals zero minus the sum of active amounts

	engine, store := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	misc := mustExpense(t, store, "misc")

	pay := func(amount string) *ledger.Transaction {
		tx, err := engine.CreatePayment(ctx, user, ledger.CreatePaymentInput{
			AssetID:   checking.ID,
			ExpenseID: misc.ID,
			Amount:    dec(amount),
		})
		require.NoError(t, err)
		return tx
	}

	a := pay("10.25")
	b := pay("5.75")
	pay("100")
	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("-116")))

	bumped := dec("6.75")
	_, err := engine.Update(ctx, user, ledger.KindPayment, b.ID, ledger.UpdateInput{Amount: &bumped})
	require.NoError(t, err)
	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("-117")))

	require.NoError(t, engine.Delete(ctx, user, ledger.KindPayment, a.ID))
	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("-106.75")))
}

func TestPayment_PartialUpdateLeavesOtherFieldsUntouched(t *testing.T) {
	// GIVEN: A payment with an amount and a note
	// WHEN: Updating only the note
	// THEN: Amount and balance are unchanged; nil means "no change"

	engine, store := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	misc := mustExpense(t, store, "misc")

	tx, err := engine.CreatePayment(ctx, user, ledger.CreatePaymentInput{
		AssetID:   checking.ID,
		ExpenseID: misc.ID,
		Amount:    dec("12.34"),
		Note:      "before",
	})
	require.NoError(t, err)

	note := "after"
	updated, err := engine.Update(ctx, user, ledger.KindPayment, tx.ID, ledger.UpdateInput{Note: &note})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Note)
	assert.True(t, updated.Amount.Equal(dec("12.34")))
	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("-12.34")))
}

// =============================================================================
// INCOME AND TRANSFER RECONCILIATION
// =============================================================================

func TestIncome_CreditsSheet(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	employer := mustContact(t, store, "employer")

	tx, err := engine.CreateIncome(ctx, user, ledger.CreateIncomeInput{
		AssetID:   checking.ID,
		Amount:    dec("1500.00"),
		ContactID: &employer.ID,
	})
	require.NoError(t, err)
	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("1500.00")))

	require.NoError(t, engine.Delete(ctx, user, ledger.KindIncome, tx.ID))
	assert.True(t, sheetBalance(t, engine, checking.ID).IsZero())
}

func TestTransfer_MovesFundsBetweenSheets(t *testing.T) {
	// GIVEN: Checking and Savings, both at zero
	// WHEN: Transferring 200 from Checking to Savings
	// THEN: Checking is -200, Savings is +200, both inside one unit

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	savings := mustAsset(t, engine, "Savings")

	tx, err := engine.CreateTransfer(ctx, user, ledger.CreateTransferInput{
		AssetID:            checking.ID,
		DestinationAssetID: savings.ID,
		Amount:             dec("200"),
	})
	require.NoError(t, err)

	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("-200")))
	assert.True(t, sheetBalance(t, engine, savings.ID).Equal(dec("200")))

	require.NoError(t, engine.Delete(ctx, user, ledger.KindTransfer, tx.ID))
	assert.True(t, sheetBalance(t, engine, checking.ID).IsZero())
	assert.True(t, sheetBalance(t, engine, savings.ID).IsZero())
}

func TestTransfer_UpdateRetargetsDestination(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	savings := mustAsset(t, engine, "Savings")
	cash := mustAsset(t, engine, "Cash")

	tx, err := engine.CreateTransfer(ctx, user, ledger.CreateTransferInput{
		AssetID:            checking.ID,
		DestinationAssetID: savings.ID,
		Amount:             dec("75"),
	})
	require.NoError(t, err)

	_, err = engine.Update(ctx, user, ledger.KindTransfer, tx.ID, ledger.UpdateInput{DestinationAssetID: &cash.ID})
	require.NoError(t, err)

	assert.True(t, sheetBalance(t, engine, checking.ID).Equal(dec("-75")))
	assert.True(t, sheetBalance(t, engine, savings.ID).IsZero())
	assert.True(t, sheetBalance(t, engine, cash.ID).Equal(dec("75")))
}

func TestTransfer_SameSourceAndDestinationRejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")

	_, err := engine.CreateTransfer(ctx, user, ledger.CreateTransferInput{
		AssetID:            checking.ID,
		DestinationAssetID: checking.ID,
		Amount:             dec("5"),
	})
	assert.True(t, ledger.IsInvalidInput(err))
}

// =============================================================================
// REFERENTIAL VALIDATION
// =============================================================================

func TestCreatePayment_UnknownExpense_NamesField(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")

	_, err := engine.CreatePayment(ctx, user, ledger.CreatePaymentInput{
		AssetID:   checking.ID,
		ExpenseID: "nope",
		Amount:    dec("5"),
	})

	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "expense_id", nf.Field)

	// Nothing was written: the unit aborted before any ledger row landed.
	txs, err := engine.Transactions(ctx, user, ledger.KindPayment)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.True(t, sheetBalance(t, engine, checking.ID).IsZero())
}

func TestCreateIncome_UnknownContact_NamesField(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	ghost := ledger.ContactID("ghost")

	_, err := engine.CreateIncome(ctx, user, ledger.CreateIncomeInput{
		AssetID:   checking.ID,
		Amount:    dec("5"),
		ContactID: &ghost,
	})

	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "contact_id", nf.Field)
}

func TestReferences_ScopedToOwner(t *testing.T) {
	// GIVEN: An asset belonging to another user
	// WHEN: This user records an income against it
	// THEN: Validation treats it as nonexistent

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	other, err := engine.CreateAsset(ctx, "user-2", "Their Checking", "bank")
	require.NoError(t, err)

	_, err = engine.CreateIncome(ctx, user, ledger.CreateIncomeInput{
		AssetID: other.ID,
		Amount:  dec("5"),
	})

	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "asset_id", nf.Field)
}

func TestUpdate_WrongKindField_Rejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")

	tx, err := engine.CreateIncome(ctx, user, ledger.CreateIncomeInput{
		AssetID: checking.ID,
		Amount:  dec("5"),
	})
	require.NoError(t, err)

	exp := ledger.ExpenseID("exp")
	_, err = engine.Update(ctx, user, ledger.KindIncome, tx.ID, ledger.UpdateInput{ExpenseID: &exp})
	assert.True(t, ledger.IsInvalidInput(err))
}

// =============================================================================
// ERROR SURFACES
// =============================================================================

func TestCreate_NonPositiveAmount_Rejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")

	for _, amount := range []string{"0", "-3.50"} {
		_, err := engine.CreateIncome(ctx, user, ledger.CreateIncomeInput{
			AssetID: checking.ID,
			Amount:  dec(amount),
		})
		assert.True(t, ledger.IsInvalidInput(err), "amount %s should be rejected", amount)
	}
}

func TestUpdate_UnknownTransaction_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	mustAsset(t, engine, "Checking")

	note := "x"
	_, err := engine.Update(ctx, user, ledger.KindPayment, "missing", ledger.UpdateInput{Note: &note})
	assert.True(t, ledger.IsNotFound(err))
}

func TestDelete_KindScoped(t *testing.T) {
	// GIVEN: An income record
	// WHEN: Deleting its id through the payment path
	// THEN: NotFound - kind scoping isolates the three ledgers

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")

	tx, err := engine.CreateIncome(ctx, user, ledger.CreateIncomeInput{
		AssetID: checking.ID,
		Amount:  dec("5"),
	})
	require.NoError(t, err)

	err = engine.Delete(ctx, user, ledger.KindPayment, tx.ID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestCreate_MissingSheet_AbortsWholeUnit(t *testing.T) {
	// GIVEN: An asset whose sheet is gone (invariant violated out-of-band)
	// WHEN: Creating a payment against it
	// THEN: NotFound, and no ledger row survives - never auto-create a sheet

	engine, store := newTestEngine(t)
	ctx := context.Background()

	checking := mustAsset(t, engine, "Checking")
	misc := mustExpense(t, store, "misc")
	require.NoError(t, store.DeleteSheet(ctx, user, checking.ID))

	_, err := engine.CreatePayment(ctx, user, ledger.CreatePaymentInput{
		AssetID:   checking.ID,
		ExpenseID: misc.ID,
		Amount:    dec("5"),
	})
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))

	txs, err := engine.Transactions(ctx, user, ledger.KindPayment)
	require.NoError(t, err)
	assert.Empty(t, txs, "ledger row must roll back with the failed sheet load")
}

// =============================================================================
// ATOMICITY UNDER SIMULATED FAILURE
// =============================================================================

// sheetFailRunner wraps a real store and forces every sheet write inside a
// unit of work to fail, after the ledger row insert has already happened.
type sheetFailRunner struct {
	ledger.TxRunner
}

func (r *sheetFailRunner) WithTx(ctx context.Context, fn func(ledger.Stores) error) error {
	return r.TxRunner.WithTx(ctx, func(s ledger.Stores) error {
		return fn(&sheetFailStores{Stores: s})
	})
}

type sheetFailStores struct {
	ledger.Stores
}

func (s *sheetFailStores) SaveSheet(ctx context.Context, sheet ledger.CurrentSheet) error {
	return errors.New("simulated sheet write failure")
}

func TestAtomicity_SheetFailureRollsBackLedgerRow(t *testing.T) {
	// GIVEN: A store whose sheet writes fail after the ledger insert
	// WHEN: Creating a payment
	// THEN: The whole unit rolls back - no transaction without its sheet update

	_, store := newTestEngine(t)
	ctx := context.Background()

	healthy := ledger.NewEngine(store)
	checking := mustAsset(t, healthy, "Checking")
	misc := mustExpense(t, store, "misc")

	broken := ledger.NewEngine(&sheetFailRunner{TxRunner: store})
	_, err := broken.CreatePayment(ctx, user, ledger.CreatePaymentInput{
		AssetID:   checking.ID,
		ExpenseID: misc.ID,
		Amount:    dec("25.50"),
	})
	require.Error(t, err)

	txs, err := healthy.Transactions(ctx, user, ledger.KindPayment)
	require.NoError(t, err)
	assert.Empty(t, txs, "inserted ledger row must not survive the failed sheet write")
	assert.True(t, sheetBalance(t, healthy, checking.ID).IsZero())
}
