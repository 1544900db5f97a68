/*
Package sqlite provides a SQLite-backed implementation of the ledger storage
interfaces.

PURPOSE:
  Implements ledger.Stores and ledger.TxRunner using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  transaction_kinds: Fixed lookup of the three kinds, seeded at migration
  transactions:      The ledger - one wide row shape for all three kinds
  current_sheets:    One materialized balance row per (user, asset)
  assets:            Fund containers; their lifecycle drives sheet lifecycle
  contacts:          Counterparties
  expenses:          Spending categories

ATOMIC UNITS:
  WithTx wraps a function in a single database transaction with a deferred
  rollback; the transaction commits only if the function returns nil. Every
  reconciliation unit (ledger row + one or two sheet rows) runs through it,
  so a failure at any step leaves both tables untouched.

DECIMALS:
  Amounts and balances are stored as TEXT and parsed back into
  decimal.Decimal. No float conversion anywhere.

FOREIGN KEYS:
  Opened with _foreign_keys=on. The sheet's last_transaction_id uses
  ON DELETE SET NULL so a deleted transaction can never be dangled at.

CONCURRENCY:
  Uses sync.RWMutex to serialize writers. SQLite is opened with WAL so
  readers don't block. With PostgreSQL, row-level locking inside the
  transaction replaces the mutex.

USAGE:
  store, err := sqlite.New("./data/finbook.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/engine.go: The only writer of sheets
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/finbook/ledger-engine/ledger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements ledger.TxRunner using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases from splitting across
	// the pool; file-backed writes serialize through it anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema and seeds the fixed kind lookup.
func (s *Store) migrate() error {
	schema := `
	-- Fixed lookup of transaction kinds. Never user-mutable.
	CREATE TABLE IF NOT EXISTS transaction_kinds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	INSERT OR IGNORE INTO transaction_kinds (id, name) VALUES
		('income', 'Income'),
		('payment', 'Payment'),
		('transfer', 'Transfer');

	-- Assets (fund containers)
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		asset_type_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assets_user ON assets(user_id);

	-- Contacts (counterparties)
	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		contact_type_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id);

	-- Expenses (spending categories)
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		expense_type_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_expenses_user ON expenses(user_id);

	-- The ledger. One wide row shape for all three kinds; which optional
	-- columns are populated follows from kind_id.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind_id TEXT NOT NULL REFERENCES transaction_kinds(id),
		amount TEXT NOT NULL,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		destination_asset_id TEXT REFERENCES assets(id),
		expense_id TEXT REFERENCES expenses(id),
		contact_id TEXT REFERENCES contacts(id),
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_kind
		ON transactions(user_id, kind_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_asset
		ON transactions(asset_id);

	-- Materialized balances. Exactly one row per (user, asset) for the
	-- lifetime of the asset.
	CREATE TABLE IF NOT EXISTS current_sheets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		balance TEXT NOT NULL,
		last_transaction_id TEXT REFERENCES transactions(id) ON DELETE SET NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, asset_id)
	);
	CREATE INDEX IF NOT EXISTS idx_current_sheets_user
		ON current_sheets(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx so the same query helpers
// serve direct calls and transactional views.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL RUNNER (ledger.TxRunner interface)
// =============================================================================

// WithTx executes fn within a database transaction. The deferred rollback is
// a no-op after commit, so an early return on any branch cannot leave the
// transaction dangling.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStores{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStores is a Stores view bound to one open database transaction. The
// parent's mutex is already held for the duration of the unit.
type txStores struct {
	db *sql.Tx
}

func (t *txStores) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	return insertTransaction(ctx, t.db, tx)
}

func (t *txStores) GetTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID, kind ledger.Kind) (*ledger.Transaction, error) {
	return getTransaction(ctx, t.db, userID, id, kind)
}

func (t *txStores) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return updateTransaction(ctx, t.db, tx)
}

func (t *txStores) DeleteTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) error {
	return deleteTransaction(ctx, t.db, userID, id)
}

func (t *txStores) ListTransactions(ctx context.Context, userID ledger.UserID, kind ledger.Kind) ([]ledger.Transaction, error) {
	return listTransactions(ctx, t.db, userID, kind)
}

func (t *txStores) SeedSheet(ctx context.Context, sheet ledger.CurrentSheet) error {
	return seedSheet(ctx, t.db, sheet)
}

func (t *txStores) GetSheet(ctx context.Context, userID ledger.UserID, assetID ledger.AssetID) (*ledger.CurrentSheet, error) {
	return getSheet(ctx, t.db, userID, assetID)
}

func (t *txStores) SaveSheet(ctx context.Context, sheet ledger.CurrentSheet) error {
	return saveSheet(ctx, t.db, sheet)
}

func (t *txStores) DeleteSheet(ctx context.Context, userID ledger.UserID, assetID ledger.AssetID) error {
	return deleteSheet(ctx, t.db, userID, assetID)
}

func (t *txStores) ListSheets(ctx context.Context, userID ledger.UserID) ([]ledger.CurrentSheet, error) {
	return listSheets(ctx, t.db, userID)
}

func (t *txStores) ListSheetsByAssets(ctx context.Context, userID ledger.UserID, assetIDs []ledger.AssetID) ([]ledger.CurrentSheet, error) {
	return listSheetsByAssets(ctx, t.db, userID, assetIDs)
}

func (t *txStores) InsertAsset(ctx context.Context, asset ledger.Asset) error {
	return insertAsset(ctx, t.db, asset)
}

func (t *txStores) GetAsset(ctx context.Context, userID ledger.UserID, id ledger.AssetID) (*ledger.Asset, error) {
	return getAsset(ctx, t.db, userID, id)
}

func (t *txStores) DeleteAsset(ctx context.Context, userID ledger.UserID, id ledger.AssetID) error {
	return deleteAsset(ctx, t.db, userID, id)
}

func (t *txStores) ListAssets(ctx context.Context, userID ledger.UserID) ([]ledger.Asset, error) {
	return listAssets(ctx, t.db, userID)
}

func (t *txStores) AssetExists(ctx context.Context, userID ledger.UserID, id ledger.AssetID) (bool, error) {
	return rowExists(ctx, t.db, "assets", userID, string(id))
}

func (t *txStores) ContactExists(ctx context.Context, userID ledger.UserID, id ledger.ContactID) (bool, error) {
	return rowExists(ctx, t.db, "contacts", userID, string(id))
}

func (t *txStores) ExpenseExists(ctx context.Context, userID ledger.UserID, id ledger.ExpenseID) (bool, error) {
	return rowExists(ctx, t.db, "expenses", userID, string(id))
}

// =============================================================================
// DIRECT ACCESS - ledger.Stores on *Store (outside any transaction)
// =============================================================================

func (s *Store) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertTransaction(ctx, s.db, tx)
}

func (s *Store) GetTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID, kind ledger.Kind) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, userID, id, kind)
}

func (s *Store) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransaction(ctx, s.db, tx)
}

func (s *Store) DeleteTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteTransaction(ctx, s.db, userID, id)
}

func (s *Store) ListTransactions(ctx context.Context, userID ledger.UserID, kind ledger.Kind) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactions(ctx, s.db, userID, kind)
}

func (s *Store) SeedSheet(ctx context.Context, sheet ledger.CurrentSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seedSheet(ctx, s.db, sheet)
}

func (s *Store) GetSheet(ctx context.Context, userID ledger.UserID, assetID ledger.AssetID) (*ledger.CurrentSheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSheet(ctx, s.db, userID, assetID)
}

func (s *Store) SaveSheet(ctx context.Context, sheet ledger.CurrentSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSheet(ctx, s.db, sheet)
}

func (s *Store) DeleteSheet(ctx context.Context, userID ledger.UserID, assetID ledger.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteSheet(ctx, s.db, userID, assetID)
}

func (s *Store) ListSheets(ctx context.Context, userID ledger.UserID) ([]ledger.CurrentSheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSheets(ctx, s.db, userID)
}

func (s *Store) ListSheetsByAssets(ctx context.Context, userID ledger.UserID, assetIDs []ledger.AssetID) ([]ledger.CurrentSheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSheetsByAssets(ctx, s.db, userID, assetIDs)
}

func (s *Store) InsertAsset(ctx context.Context, asset ledger.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAsset(ctx, s.db, asset)
}

func (s *Store) GetAsset(ctx context.Context, userID ledger.UserID, id ledger.AssetID) (*ledger.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAsset(ctx, s.db, userID, id)
}

func (s *Store) DeleteAsset(ctx context.Context, userID ledger.UserID, id ledger.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAsset(ctx, s.db, userID, id)
}

func (s *Store) ListAssets(ctx context.Context, userID ledger.UserID) ([]ledger.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAssets(ctx, s.db, userID)
}

func (s *Store) AssetExists(ctx context.Context, userID ledger.UserID, id ledger.AssetID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rowExists(ctx, s.db, "assets", userID, string(id))
}

func (s *Store) ContactExists(ctx context.Context, userID ledger.UserID, id ledger.ContactID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rowExists(ctx, s.db, "contacts", userID, string(id))
}

func (s *Store) ExpenseExists(ctx context.Context, userID ledger.UserID, id ledger.ExpenseID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rowExists(ctx, s.db, "expenses", userID, string(id))
}

// =============================================================================
// TRANSACTION ROWS
// =============================================================================

const transactionColumns = `id, user_id, kind_id, amount, asset_id,
	destination_asset_id, expense_id, contact_id, note, created_at, updated_at`

func insertTransaction(ctx context.Context, db execer, tx ledger.Transaction) error {
	destinationAssetID, expenseID := detailColumns(tx.Detail)

	query := `
		INSERT INTO transactions
		(id, user_id, kind_id, amount, asset_id, destination_asset_id,
		 expense_id, contact_id, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Kind(),
		tx.Amount.String(),
		tx.AssetID,
		destinationAssetID,
		expenseID,
		contactColumn(tx.ContactID),
		nullString(tx.Note),
		tx.CreatedAt.Format(time.RFC3339),
		tx.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return classifyExecError("insert transaction", err)
	}
	return nil
}

func updateTransaction(ctx context.Context, db execer, tx ledger.Transaction) error {
	destinationAssetID, expenseID := detailColumns(tx.Detail)

	query := `
		UPDATE transactions
		SET amount = ?, asset_id = ?, destination_asset_id = ?,
		    expense_id = ?, contact_id = ?, note = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`

	res, err := db.ExecContext(ctx, query,
		tx.Amount.String(),
		tx.AssetID,
		destinationAssetID,
		expenseID,
		contactColumn(tx.ContactID),
		nullString(tx.Note),
		tx.UpdatedAt.Format(time.RFC3339),
		tx.UserID,
		tx.ID,
	)
	if err != nil {
		return classifyExecError("update transaction", err)
	}
	return requireRow(res, &ledger.NotFoundError{Entity: "transaction", Field: "transaction_id", ID: string(tx.ID)})
}

func deleteTransaction(ctx context.Context, db execer, userID ledger.UserID, id ledger.TransactionID) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM transactions WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return classifyExecError("delete transaction", err)
	}
	return requireRow(res, &ledger.NotFoundError{Entity: "transaction", Field: "transaction_id", ID: string(id)})
}

func getTransaction(ctx context.Context, db execer, userID ledger.UserID, id ledger.TransactionID, kind ledger.Kind) (*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND id = ? AND kind_id = ?
	`

	txs, err := queryTransactions(ctx, db, query, userID, id, kind)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func listTransactions(ctx context.Context, db execer, userID ledger.UserID, kind ledger.Kind) ([]ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND kind_id = ?
		ORDER BY created_at DESC, id DESC
	`

	return queryTransactions(ctx, db, query, userID, kind)
}

func queryTransactions(ctx context.Context, db execer, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx                 ledger.Transaction
		kindID             string
		amount             string
		destinationAssetID sql.NullString
		expenseID          sql.NullString
		contactID          sql.NullString
		note               sql.NullString
		createdAt          string
		updatedAt          string
	)

	err := rows.Scan(
		&tx.ID, &tx.UserID, &kindID, &amount, &tx.AssetID,
		&destinationAssetID, &expenseID, &contactID, &note,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount, err = parseDecimal(amount)
	if err != nil {
		return tx, err
	}
	tx.Detail, err = detailFromColumns(ledger.Kind(kindID), destinationAssetID, expenseID)
	if err != nil {
		return tx, err
	}

	if contactID.Valid {
		id := ledger.ContactID(contactID.String)
		tx.ContactID = &id
	}
	tx.Note = note.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return tx, nil
}

// detailColumns flattens the kind-specific payload onto the wide row.
func detailColumns(d ledger.Detail) (destinationAssetID, expenseID sql.NullString) {
	switch d := d.(type) {
	case ledger.PaymentDetail:
		expenseID = sql.NullString{String: string(d.ExpenseID), Valid: true}
	case ledger.TransferDetail:
		destinationAssetID = sql.NullString{String: string(d.DestinationAssetID), Valid: true}
	}
	return
}

// detailFromColumns rebuilds the variant payload from the wide row.
func detailFromColumns(kind ledger.Kind, destinationAssetID, expenseID sql.NullString) (ledger.Detail, error) {
	switch kind {
	case ledger.KindIncome:
		return ledger.IncomeDetail{}, nil
	case ledger.KindPayment:
		if !expenseID.Valid {
			return nil, fmt.Errorf("payment row missing expense_id: %w", ledger.ErrOperationFailed)
		}
		return ledger.PaymentDetail{ExpenseID: ledger.ExpenseID(expenseID.String)}, nil
	case ledger.KindTransfer:
		if !destinationAssetID.Valid {
			return nil, fmt.Errorf("transfer row missing destination_asset_id: %w", ledger.ErrOperationFailed)
		}
		return ledger.TransferDetail{DestinationAssetID: ledger.AssetID(destinationAssetID.String)}, nil
	}
	return nil, fmt.Errorf("unknown transaction kind %q: %w", kind, ledger.ErrOperationFailed)
}

// =============================================================================
// CURRENT SHEETS
// =============================================================================

const sheetColumns = `id, user_id, asset_id, balance, last_transaction_id, updated_at`

func seedSheet(ctx context.Context, db execer, sheet ledger.CurrentSheet) error {
	query := `
		INSERT INTO current_sheets (id, user_id, asset_id, balance, last_transaction_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		sheet.ID,
		sheet.UserID,
		sheet.AssetID,
		sheet.Balance.String(),
		lastTxColumn(sheet.LastTransactionID),
		sheet.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return classifyExecError("seed sheet", err)
	}
	return nil
}

func saveSheet(ctx context.Context, db execer, sheet ledger.CurrentSheet) error {
	query := `
		UPDATE current_sheets
		SET balance = ?, last_transaction_id = ?, updated_at = ?
		WHERE user_id = ? AND asset_id = ?
	`

	res, err := db.ExecContext(ctx, query,
		sheet.Balance.String(),
		lastTxColumn(sheet.LastTransactionID),
		sheet.UpdatedAt.Format(time.RFC3339),
		sheet.UserID,
		sheet.AssetID,
	)
	if err != nil {
		return classifyExecError("save sheet", err)
	}
	return requireRow(res, &ledger.NotFoundError{Entity: "current_sheet", Field: "asset_id", ID: string(sheet.AssetID)})
}

func deleteSheet(ctx context.Context, db execer, userID ledger.UserID, assetID ledger.AssetID) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM current_sheets WHERE user_id = ? AND asset_id = ?", userID, assetID)
	if err != nil {
		return classifyExecError("delete sheet", err)
	}
	return requireRow(res, &ledger.NotFoundError{Entity: "current_sheet", Field: "asset_id", ID: string(assetID)})
}

func getSheet(ctx context.Context, db execer, userID ledger.UserID, assetID ledger.AssetID) (*ledger.CurrentSheet, error) {
	query := `SELECT ` + sheetColumns + ` FROM current_sheets WHERE user_id = ? AND asset_id = ?`

	sheets, err := querySheets(ctx, db, query, userID, assetID)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, nil
	}
	return &sheets[0], nil
}

func listSheets(ctx context.Context, db execer, userID ledger.UserID) ([]ledger.CurrentSheet, error) {
	query := `SELECT ` + sheetColumns + ` FROM current_sheets WHERE user_id = ? ORDER BY asset_id`
	return querySheets(ctx, db, query, userID)
}

func listSheetsByAssets(ctx context.Context, db execer, userID ledger.UserID, assetIDs []ledger.AssetID) ([]ledger.CurrentSheet, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(assetIDs)), ",")
	query := `SELECT ` + sheetColumns + ` FROM current_sheets
		WHERE user_id = ? AND asset_id IN (` + placeholders + `) ORDER BY asset_id`

	args := make([]any, 0, len(assetIDs)+1)
	args = append(args, userID)
	for _, id := range assetIDs {
		args = append(args, id)
	}

	return querySheets(ctx, db, query, args...)
}

func querySheets(ctx context.Context, db execer, query string, args ...any) ([]ledger.CurrentSheet, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sheets: %w", err)
	}
	defer rows.Close()

	var sheets []ledger.CurrentSheet
	for rows.Next() {
		var (
			sheet     ledger.CurrentSheet
			balance   string
			lastTxID  sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&sheet.ID, &sheet.UserID, &sheet.AssetID, &balance, &lastTxID, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sheet: %w", err)
		}
		sheet.Balance, err = parseDecimal(balance)
		if err != nil {
			return nil, err
		}
		if lastTxID.Valid {
			id := ledger.TransactionID(lastTxID.String)
			sheet.LastTransactionID = &id
		}
		sheet.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		sheets = append(sheets, sheet)
	}

	return sheets, rows.Err()
}

// =============================================================================
// ASSETS
// =============================================================================

func insertAsset(ctx context.Context, db execer, asset ledger.Asset) error {
	query := `
		INSERT INTO assets (id, user_id, name, asset_type_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		asset.ID, asset.UserID, asset.Name, nullString(asset.TypeID),
		asset.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return classifyExecError("insert asset", err)
	}
	return nil
}

func getAsset(ctx context.Context, db execer, userID ledger.UserID, id ledger.AssetID) (*ledger.Asset, error) {
	var (
		asset     ledger.Asset
		typeID    sql.NullString
		createdAt string
	)

	err := db.QueryRowContext(ctx,
		"SELECT id, user_id, name, asset_type_id, created_at FROM assets WHERE user_id = ? AND id = ?",
		userID, id,
	).Scan(&asset.ID, &asset.UserID, &asset.Name, &typeID, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	asset.TypeID = typeID.String
	asset.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &asset, nil
}

func deleteAsset(ctx context.Context, db execer, userID ledger.UserID, id ledger.AssetID) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM assets WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return classifyExecError("delete asset", err)
	}
	return requireRow(res, &ledger.NotFoundError{Entity: "asset", Field: "asset_id", ID: string(id)})
}

func listAssets(ctx context.Context, db execer, userID ledger.UserID) ([]ledger.Asset, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, user_id, name, asset_type_id, created_at FROM assets WHERE user_id = ? ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []ledger.Asset
	for rows.Next() {
		var (
			asset     ledger.Asset
			typeID    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&asset.ID, &asset.UserID, &asset.Name, &typeID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		asset.TypeID = typeID.String
		asset.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// =============================================================================
// CONTACTS & EXPENSES - Reference rows the validator resolves against
// =============================================================================

// SaveContact inserts a contact row.
func (s *Store) SaveContact(ctx context.Context, c ledger.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO contacts (id, user_id, name, contact_type_id, created_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.UserID, c.Name, nullString(c.TypeID), c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return classifyExecError("save contact", err)
	}
	return nil
}

// ListContacts returns all contacts for a user.
func (s *Store) ListContacts(ctx context.Context, userID ledger.UserID) ([]ledger.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, contact_type_id, created_at FROM contacts WHERE user_id = ? ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []ledger.Contact
	for rows.Next() {
		var (
			c         ledger.Contact
			typeID    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &typeID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		c.TypeID = typeID.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

// SaveExpense inserts an expense row.
func (s *Store) SaveExpense(ctx context.Context, e ledger.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO expenses (id, user_id, name, expense_type_id, created_at) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.UserID, e.Name, nullString(e.TypeID), e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return classifyExecError("save expense", err)
	}
	return nil
}

// ListExpenses returns all expenses for a user.
func (s *Store) ListExpenses(ctx context.Context, userID ledger.UserID) ([]ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, expense_type_id, created_at FROM expenses WHERE user_id = ? ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []ledger.Expense
	for rows.Next() {
		var (
			e         ledger.Expense
			typeID    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &typeID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.TypeID = typeID.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func rowExists(ctx context.Context, db execer, table string, userID ledger.UserID, id string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+" WHERE user_id = ? AND id = ?",
		userID, id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	return count > 0, nil
}

// requireRow converts a zero-rows-affected write into the given not-found error.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func classifyExecError(op string, err error) error {
	if isConstraintError(err) {
		return fmt.Errorf("%s: %v: %w", op, err, ledger.ErrConstraintViolation)
	}
	return fmt.Errorf("failed to %s: %v: %w", op, err, ledger.ErrOperationFailed)
}

func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

// parseDecimal rebuilds a stored decimal. Stored values are written by the
// engine, so a parse failure means the row is corrupt, not that input was bad.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt stored decimal %q: %w", s, ledger.ErrOperationFailed)
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func contactColumn(id *ledger.ContactID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func lastTxColumn(id *ledger.TransactionID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}
