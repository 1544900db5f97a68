/*
handlers.go - HTTP handlers for the ledger service

PURPOSE:
  Exposes the reconciliation engine via REST. Handles HTTP request/response,
  JSON serialization and decimal parsing, and delegates everything else to
  the ledger core.

ENDPOINTS:
  Assets:
    GET    /api/assets                List assets
    POST   /api/assets                Create asset (seeds its sheet at zero)
    GET    /api/assets/{id}           Get one asset
    DELETE /api/assets/{id}           Delete asset and its sheet

  Sheets (read-only):
    GET    /api/sheets                All sheets; ?asset_id=... filters
    GET    /api/sheets/{assetID}      One sheet

  Transactions (per kind: /api/incomes, /api/payments, /api/transfers):
    GET    /                          List the user's records of that kind
    POST   /                          Create (reconciles sheet balances)
    GET    /{id}                      Get one record
    PUT    /{id}                      Partial update (reconciles)
    DELETE /{id}                      Delete (reconciles)

  Reference entities:
    GET/POST /api/contacts, /api/expenses

IDENTITY:
  The acting user comes from the X-User-ID header. Authentication proper
  (tokens, roles) lives in front of this service; every store query is
  scoped by this id so users can never see each other's rows.

ERROR HANDLING:
  Core errors map to HTTP status by kind:
  - 400: invalid input (bad amount, wrong-kind field, missing user)
  - 404: transaction/sheet/referenced entity not found
  - 409: store constraint violation
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/engine.go: The reconciliation engine
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finbook/ledger-engine/ledger"
	"github.com/finbook/ledger-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *ledger.Engine
}

// NewHandler creates a handler over the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:  store,
		Engine: ledger.NewEngine(store),
	}
}

// userID extracts the acting user from the X-User-ID header.
func userID(r *http.Request) (ledger.UserID, bool) {
	id := r.Header.Get("X-User-ID")
	return ledger.UserID(id), id != ""
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

// ListAssets returns all of the user's assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	assets, err := h.Engine.Assets(r.Context(), user)
	if err != nil {
		writeDomainError(w, "Failed to list assets", err)
		return
	}

	dtos := make([]AssetDTO, len(assets))
	for i, a := range assets {
		dtos[i] = toAssetDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAsset creates an asset and seeds its current sheet at zero.
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	asset, err := h.Engine.CreateAsset(r.Context(), user, req.Name, req.AssetTypeID)
	if err != nil {
		writeDomainError(w, "Failed to create asset", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAssetDTO(*asset))
}

// GetAsset returns one asset.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	asset, err := h.Engine.Asset(r.Context(), user, ledger.AssetID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get asset", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssetDTO(*asset))
}

// DeleteAsset removes an asset and its sheet.
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	if err := h.Engine.DeleteAsset(r.Context(), user, ledger.AssetID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete asset", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SHEET HANDLERS (read-only)
// =============================================================================

// ListSheets returns the user's current sheets. Repeated ?asset_id=
// parameters narrow the result to those assets.
func (h *Handler) ListSheets(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	var (
		sheets []ledger.CurrentSheet
		err    error
	)
	if ids := r.URL.Query()["asset_id"]; len(ids) > 0 {
		assetIDs := make([]ledger.AssetID, len(ids))
		for i, id := range ids {
			assetIDs[i] = ledger.AssetID(id)
		}
		sheets, err = h.Engine.SheetsForAssets(r.Context(), user, assetIDs)
	} else {
		sheets, err = h.Engine.Sheets(r.Context(), user)
	}
	if err != nil {
		writeDomainError(w, "Failed to list sheets", err)
		return
	}

	writeJSON(w, http.StatusOK, toSheetDTOs(sheets))
}

// GetSheet returns the sheet for one asset.
func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	sheet, err := h.Engine.Sheet(r.Context(), user, ledger.AssetID(chi.URLParam(r, "assetID")))
	if err != nil {
		writeDomainError(w, "Failed to get sheet", err)
		return
	}

	writeJSON(w, http.StatusOK, toSheetDTO(*sheet))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateIncome records an income.
func (h *Handler) CreateIncome(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	var req CreateIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to create income", err)
		return
	}

	tx, err := h.Engine.CreateIncome(r.Context(), user, ledger.CreateIncomeInput{
		AssetID:   ledger.AssetID(req.AssetID),
		Amount:    amount,
		ContactID: contactID(req.ContactID),
		Note:      req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to create income", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// CreatePayment records a payment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to create payment", err)
		return
	}

	tx, err := h.Engine.CreatePayment(r.Context(), user, ledger.CreatePaymentInput{
		AssetID:   ledger.AssetID(req.AssetID),
		ExpenseID: ledger.ExpenseID(req.ExpenseID),
		Amount:    amount,
		ContactID: contactID(req.ContactID),
		Note:      req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to create payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// CreateTransfer records a transfer between two assets.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to create transfer", err)
		return
	}

	tx, err := h.Engine.CreateTransfer(r.Context(), user, ledger.CreateTransferInput{
		AssetID:            ledger.AssetID(req.AssetID),
		DestinationAssetID: ledger.AssetID(req.DestinationAssetID),
		Amount:             amount,
		ContactID:          contactID(req.ContactID),
		Note:               req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to create transfer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// GetTransaction returns one record of the given kind.
func (h *Handler) GetTransaction(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
			return
		}

		tx, err := h.Engine.Transaction(r.Context(), user, kind, ledger.TransactionID(chi.URLParam(r, "id")))
		if err != nil {
			writeDomainError(w, "Failed to get transaction", err)
			return
		}

		writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
	}
}

// ListTransactions returns all of the user's records of the given kind.
func (h *Handler) ListTransactions(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
			return
		}

		txs, err := h.Engine.Transactions(r.Context(), user, kind)
		if err != nil {
			writeDomainError(w, "Failed to list transactions", err)
			return
		}

		writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
	}
}

// UpdateTransaction applies a partial update to a record of the given kind.
func (h *Handler) UpdateTransaction(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
			return
		}

		var req UpdateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}

		in := ledger.UpdateInput{
			ContactID: contactID(req.ContactID),
			Note:      req.Note,
		}
		if req.Amount != nil {
			amount, err := parseAmount(*req.Amount)
			if err != nil {
				writeDomainError(w, "Failed to update transaction", err)
				return
			}
			in.Amount = &amount
		}
		if req.AssetID != nil {
			id := ledger.AssetID(*req.AssetID)
			in.AssetID = &id
		}
		if req.DestinationAssetID != nil {
			id := ledger.AssetID(*req.DestinationAssetID)
			in.DestinationAssetID = &id
		}
		if req.ExpenseID != nil {
			id := ledger.ExpenseID(*req.ExpenseID)
			in.ExpenseID = &id
		}

		tx, err := h.Engine.Update(r.Context(), user, kind, ledger.TransactionID(chi.URLParam(r, "id")), in)
		if err != nil {
			writeDomainError(w, "Failed to update transaction", err)
			return
		}

		writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
	}
}

// DeleteTransaction removes a record of the given kind and reconciles.
func (h *Handler) DeleteTransaction(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
			return
		}

		if err := h.Engine.Delete(r.Context(), user, kind, ledger.TransactionID(chi.URLParam(r, "id"))); err != nil {
			writeDomainError(w, "Failed to delete transaction", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// =============================================================================
// CONTACT & EXPENSE HANDLERS
// =============================================================================

// ListContacts returns the user's contacts.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	contacts, err := h.Store.ListContacts(r.Context(), user)
	if err != nil {
		writeDomainError(w, "Failed to list contacts", err)
		return
	}

	dtos := make([]ContactDTO, len(contacts))
	for i, c := range contacts {
		dtos[i] = ContactDTO{
			ID:            string(c.ID),
			Name:          c.Name,
			ContactTypeID: c.TypeID,
			CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContact creates a contact.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	var req CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name must not be empty", nil)
		return
	}

	c := ledger.Contact{
		ID:        ledger.ContactID(uuid.NewString()),
		UserID:    user,
		Name:      req.Name,
		TypeID:    req.ContactTypeID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveContact(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to create contact", err)
		return
	}

	writeJSON(w, http.StatusCreated, ContactDTO{
		ID:            string(c.ID),
		Name:          c.Name,
		ContactTypeID: c.TypeID,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	})
}

// ListExpenses returns the user's expense categories.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	expenses, err := h.Store.ListExpenses(r.Context(), user)
	if err != nil {
		writeDomainError(w, "Failed to list expenses", err)
		return
	}

	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = ExpenseDTO{
			ID:            string(e.ID),
			Name:          e.Name,
			ExpenseTypeID: e.TypeID,
			CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateExpense creates an expense category.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return
	}

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name must not be empty", nil)
		return
	}

	e := ledger.Expense{
		ID:        ledger.ExpenseID(uuid.NewString()),
		UserID:    user,
		Name:      req.Name,
		TypeID:    req.ExpenseTypeID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveExpense(r.Context(), e); err != nil {
		writeDomainError(w, "Failed to create expense", err)
		return
	}

	writeJSON(w, http.StatusCreated, ExpenseDTO{
		ID:            string(e.ID),
		Name:          e.Name,
		ExpenseTypeID: e.TypeID,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &ledger.InvalidInputError{Field: "amount", Reason: "not a valid decimal"}
	}
	return d, nil
}

func contactID(s *string) *ledger.ContactID {
	if s == nil {
		return nil
	}
	id := ledger.ContactID(*s)
	return &id
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a core error to an HTTP status by its kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsConstraintViolation(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
