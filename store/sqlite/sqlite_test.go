package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
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

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedAsset(t *testing.T, store *sqlite.Store, owner ledger.UserID) ledger.AssetID {
	t.Helper()
	ctx := context.Background()
	id := ledger.AssetID(uuid.NewString())
	require.NoError(t, store.InsertAsset(ctx, ledger.Asset{
		ID: id, UserID: owner, Name: "asset-" + string(id[:8]), CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.SeedSheet(ctx, ledger.CurrentSheet{
		ID: uuid.NewString(), UserID: owner, AssetID: id,
		Balance: decimal.Zero, UpdatedAt: time.Now().UTC(),
	}))
	return id
}

func seedExpense(t *testing.T, store *sqlite.Store) ledger.ExpenseID {
	t.Helper()
	id := ledger.ExpenseID(uuid.NewString())
	require.NoError(t, store.SaveExpense(context.Background(), ledger.Expense{
		ID: id, UserID: user, Name: "expense", CreatedAt: time.Now().UTC(),
	}))
	return id
}

func newTx(owner ledger.UserID, assetID ledger.AssetID, amount string, detail ledger.Detail) ledger.Transaction {
	now := time.Now().UTC().Truncate(time.Second)
	return ledger.Transaction{
		ID:        ledger.TransactionID(uuid.NewString()),
		UserID:    owner,
		AssetID:   assetID,
		Amount:    decimal.RequireFromString(amount),
		Detail:    detail,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// TRANSACTION ROWS
// =============================================================================

func TestTransaction_DetailRoundTrip(t *testing.T) {
	// GIVEN: One row of each kind on the wide table
	// WHEN: Reading them back
	// THEN: The variant payload is rebuilt from the populated columns

	store := newTestStore(t)
	ctx := context.Background()

	source := seedAsset(t, store, user)
	dest := seedAsset(t, store, user)
	expense := seedExpense(t, store)

	income := newTx(user, source, "1500.00", ledger.IncomeDetail{})
	payment := newTx(user, source, "25.50", ledger.PaymentDetail{ExpenseID: expense})
	transfer := newTx(user, source, "200", ledger.TransferDetail{DestinationAssetID: dest})

	for _, tx := range []ledger.Transaction{income, payment, transfer} {
		require.NoError(t, store.InsertTransaction(ctx, tx))
	}

	got, err := store.GetTransaction(ctx, user, payment.ID, ledger.KindPayment)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.PaymentDetail{ExpenseID: expense}, got.Detail)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("25.50")))

	got, err = store.GetTransaction(ctx, user, transfer.ID, ledger.KindTransfer)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.TransferDetail{DestinationAssetID: dest}, got.Detail)

	got, err = store.GetTransaction(ctx, user, income.ID, ledger.KindIncome)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.IncomeDetail{}, got.Detail)
}

func TestTransaction_KindScoping(t *testing.T) {
	// GIVEN: An income row
	// WHEN: Looking it up under a different kind
	// THEN: Absence, not a cross-kind hit

	store := newTestStore(t)
	ctx := context.Background()

	asset := seedAsset(t, store, user)
	income := newTx(user, asset, "10", ledger.IncomeDetail{})
	require.NoError(t, store.InsertTransaction(ctx, income))

	got, err := store.GetTransaction(ctx, user, income.ID, ledger.KindPayment)
	require.NoError(t, err)
	assert.Nil(t, got)

	payments, err := store.ListTransactions(ctx, user, ledger.KindPayment)
	require.NoError(t, err)
	assert.Empty(t, payments)

	incomes, err := store.ListTransactions(ctx, user, ledger.KindIncome)
	require.NoError(t, err)
	assert.Len(t, incomes, 1)
}

func TestTransaction_UserScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := seedAsset(t, store, user)
	tx := newTx(user, asset, "10", ledger.IncomeDetail{})
	require.NoError(t, store.InsertTransaction(ctx, tx))

	got, err := store.GetTransaction(ctx, "someone-else", tx.ID, ledger.KindIncome)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.DeleteTransaction(ctx, "someone-else", tx.ID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestInsertTransaction_UnknownAsset_ConstraintViolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := newTx(user, "no-such-asset", "10", ledger.IncomeDetail{})
	err := store.InsertTransaction(ctx, tx)
	assert.True(t, ledger.IsConstraintViolation(err))
}

func TestUpdateTransaction_MissingRow_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := seedAsset(t, store, user)
	tx := newTx(user, asset, "10", ledger.IncomeDetail{})

	err := store.UpdateTransaction(ctx, tx)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// CURRENT SHEETS
// =============================================================================

func TestSeedSheet_DuplicatePair_ConstraintViolation(t *testing.T) {
	// GIVEN: A seeded (user, asset) sheet
	// WHEN: Seeding the same pair again
	// THEN: The uniqueness constraint surfaces as a domain error

	store := newTestStore(t)
	ctx := context.Background()

	asset := seedAsset(t, store, user)

	err := store.SeedSheet(ctx, ledger.CurrentSheet{
		ID: uuid.NewString(), UserID: user, AssetID: asset,
		Balance: decimal.Zero, UpdatedAt: time.Now().UTC(),
	})
	assert.True(t, ledger.IsConstraintViolation(err))
}

func TestListSheetsByAssets_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := seedAsset(t, store, user)
	b := seedAsset(t, store, user)
	seedAsset(t, store, user)

	sheets, err := store.ListSheetsByAssets(ctx, user, []ledger.AssetID{a, b})
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	for _, sheet := range sheets {
		assert.Contains(t, []ledger.AssetID{a, b}, sheet.AssetID)
	}

	sheets, err = store.ListSheetsByAssets(ctx, user, nil)
	require.NoError(t, err)
	assert.Empty(t, sheets)
}

func TestSaveSheet_PersistsBalanceAndPointer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := seedAsset(t, store, user)
	tx := newTx(user, asset, "33.10", ledger.IncomeDetail{})
	require.NoError(t, store.InsertTransaction(ctx, tx))

	sheet, err := store.GetSheet(ctx, user, asset)
	require.NoError(t, err)
	require.NotNil(t, sheet)

	sheet.Balance = decimal.RequireFromString("33.10")
	sheet.LastTransactionID = &tx.ID
	sheet.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.SaveSheet(ctx, *sheet))

	got, err := store.GetSheet(ctx, user, asset)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("33.10")))
	require.NotNil(t, got.LastTransactionID)
	assert.Equal(t, tx.ID, *got.LastTransactionID)
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

func TestWithTx_ErrorRollsBackEveryWrite(t *testing.T) {
	// GIVEN: A unit that inserts a row then fails
	// WHEN: WithTx returns
	// THEN: The insert did not commit

	store := newTestStore(t)
	ctx := context.Background()

	asset := seedAsset(t, store, user)
	tx := newTx(user, asset, "10", ledger.IncomeDetail{})

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s ledger.Stores) error {
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetTransaction(ctx, user, tx.ID, ledger.KindIncome)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWithTx_CommitMakesWritesVisible(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := seedAsset(t, store, user)
	tx := newTx(user, asset, "10", ledger.IncomeDetail{})

	err := store.WithTx(ctx, func(s ledger.Stores) error {
		return s.InsertTransaction(ctx, tx)
	})
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, user, tx.ID, ledger.KindIncome)
	require.NoError(t, err)
	require.NotNil(t, got)
}

// =============================================================================
// REFERENCE ROWS
// =============================================================================

func TestContactsAndExpenses_SaveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := ledger.Contact{ID: "con-1", UserID: user, Name: "Employer", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.SaveContact(ctx, c))

	ok, err := store.ContactExists(ctx, user, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ContactExists(ctx, "someone-else", c.ID)
	require.NoError(t, err)
	assert.False(t, ok, "existence checks are owner-scoped")

	contacts, err := store.ListContacts(ctx, user)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Employer", contacts[0].Name)

	e := ledger.Expense{ID: "exp-1", UserID: user, Name: "Groceries", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.SaveExpense(ctx, e))

	expenses, err := store.ListExpenses(ctx, user)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Groceries", expenses[0].Name)
}
