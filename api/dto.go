/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger core's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Amounts and balances travel as decimal strings ("25.50"), never JSON
  numbers, so precision survives the wire. Parsing happens in handlers;
  a string that decimal cannot represent is rejected as invalid input
  before it reaches the core.

PARTIAL UPDATES:
  UpdateTransactionRequest uses pointers throughout: an absent field means
  "no change", not "clear".

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The domain model these map onto
*/
package api

import (
	"time"

	"github.com/finbook/ledger-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AssetDTO represents an asset in API responses.
type AssetDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AssetTypeID string `json:"asset_type_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateAssetRequest is the request to create an asset (and seed its sheet).
type CreateAssetRequest struct {
	Name        string `json:"name"`
	AssetTypeID string `json:"asset_type_id,omitempty"`
}

// SheetDTO represents a current sheet in API responses.
type SheetDTO struct {
	ID                string  `json:"id"`
	AssetID           string  `json:"asset_id"`
	Balance           string  `json:"balance"`
	LastTransactionID *string `json:"last_transaction_id,omitempty"`
	UpdatedAt         string  `json:"updated_at"`
}

// ContactDTO represents a counterparty.
type ContactDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContactTypeID string `json:"contact_type_id,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateContactRequest is the request to create a contact.
type CreateContactRequest struct {
	Name          string `json:"name"`
	ContactTypeID string `json:"contact_type_id,omitempty"`
}

// ExpenseDTO represents a spending category.
type ExpenseDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ExpenseTypeID string `json:"expense_type_id,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateExpenseRequest is the request to create an expense category.
type CreateExpenseRequest struct {
	Name          string `json:"name"`
	ExpenseTypeID string `json:"expense_type_id,omitempty"`
}

// TransactionDTO represents a ledger transaction. Kind-specific fields are
// omitted when they do not apply; ids are raw - name resolution is a
// presentation concern that lives outside this service.
type TransactionDTO struct {
	ID                 string  `json:"id"`
	Kind               string  `json:"kind"`
	Amount             string  `json:"amount"`
	AssetID            string  `json:"asset_id"`
	DestinationAssetID *string `json:"destination_asset_id,omitempty"`
	ExpenseID          *string `json:"expense_id,omitempty"`
	ContactID          *string `json:"contact_id,omitempty"`
	Note               string  `json:"note,omitempty"`
	CreatedAt          string  `json:"created_at,omitempty"`
	UpdatedAt          string  `json:"updated_at,omitempty"`
}

// CreateIncomeRequest is the request to record an income.
type CreateIncomeRequest struct {
	AssetID   string  `json:"asset_id"`
	Amount    string  `json:"amount"`
	ContactID *string `json:"contact_id,omitempty"`
	Note      string  `json:"note,omitempty"`
}

// CreatePaymentRequest is the request to record a payment.
type CreatePaymentRequest struct {
	AssetID   string  `json:"asset_id"`
	ExpenseID string  `json:"expense_id"`
	Amount    string  `json:"amount"`
	ContactID *string `json:"contact_id,omitempty"`
	Note      string  `json:"note,omitempty"`
}

// CreateTransferRequest is the request to record a transfer.
type CreateTransferRequest struct {
	AssetID            string  `json:"asset_id"`
	DestinationAssetID string  `json:"destination_asset_id"`
	Amount             string  `json:"amount"`
	ContactID          *string `json:"contact_id,omitempty"`
	Note               string  `json:"note,omitempty"`
}

// UpdateTransactionRequest is a partial update. Absent fields are unchanged.
type UpdateTransactionRequest struct {
	Amount             *string `json:"amount,omitempty"`
	AssetID            *string `json:"asset_id,omitempty"`
	DestinationAssetID *string `json:"destination_asset_id,omitempty"`
	ExpenseID          *string `json:"expense_id,omitempty"`
	ContactID          *string `json:"contact_id,omitempty"`
	Note               *string `json:"note,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:        string(tx.ID),
		Kind:      string(tx.Kind()),
		Amount:    tx.Amount.String(),
		AssetID:   string(tx.AssetID),
		Note:      tx.Note,
		CreatedAt: tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt: tx.UpdatedAt.Format(time.RFC3339),
	}
	switch d := tx.Detail.(type) {
	case ledger.PaymentDetail:
		id := string(d.ExpenseID)
		dto.ExpenseID = &id
	case ledger.TransferDetail:
		id := string(d.DestinationAssetID)
		dto.DestinationAssetID = &id
	}
	if tx.ContactID != nil {
		id := string(*tx.ContactID)
		dto.ContactID = &id
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toSheetDTO(sheet ledger.CurrentSheet) SheetDTO {
	dto := SheetDTO{
		ID:        sheet.ID,
		AssetID:   string(sheet.AssetID),
		Balance:   sheet.Balance.String(),
		UpdatedAt: sheet.UpdatedAt.Format(time.RFC3339),
	}
	if sheet.LastTransactionID != nil {
		id := string(*sheet.LastTransactionID)
		dto.LastTransactionID = &id
	}
	return dto
}

func toSheetDTOs(sheets []ledger.CurrentSheet) []SheetDTO {
	dtos := make([]SheetDTO, len(sheets))
	for i, s := range sheets {
		dtos[i] = toSheetDTO(s)
	}
	return dtos
}

func toAssetDTO(a ledger.Asset) AssetDTO {
	return AssetDTO{
		ID:          string(a.ID),
		Name:        a.Name,
		AssetTypeID: a.TypeID,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}
