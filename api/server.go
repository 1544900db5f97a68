/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/assets/*     Asset lifecycle (drives sheet lifecycle)
  /api/sheets/*     Current-sheet reads
  /api/incomes/*    Income records
  /api/payments/*   Payment records
  /api/transfers/*  Transfer records
  /api/contacts/*   Counterparties
  /api/expenses/*   Spending categories

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/finbook/ledger-engine/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Asset routes
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.CreateAsset)
			r.Get("/{id}", h.GetAsset)
			r.Delete("/{id}", h.DeleteAsset)
		})

		// Sheet routes (read-only)
		r.Route("/sheets", func(r chi.Router) {
			r.Get("/", h.ListSheets)
			r.Get("/{assetID}", h.GetSheet)
		})

		// Transaction routes, one group per kind
		r.Route("/incomes", func(r chi.Router) {
			r.Get("/", h.ListTransactions(ledger.KindIncome))
			r.Post("/", h.CreateIncome)
			r.Get("/{id}", h.GetTransaction(ledger.KindIncome))
			r.Put("/{id}", h.UpdateTransaction(ledger.KindIncome))
			r.Delete("/{id}", h.DeleteTransaction(ledger.KindIncome))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListTransactions(ledger.KindPayment))
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetTransaction(ledger.KindPayment))
			r.Put("/{id}", h.UpdateTransaction(ledger.KindPayment))
			r.Delete("/{id}", h.DeleteTransaction(ledger.KindPayment))
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", h.ListTransactions(ledger.KindTransfer))
			r.Post("/", h.CreateTransfer)
			r.Get("/{id}", h.GetTransaction(ledger.KindTransfer))
			r.Put("/{id}", h.UpdateTransaction(ledger.KindTransfer))
			r.Delete("/{id}", h.DeleteTransaction(ledger.KindTransfer))
		})

		// Reference entity routes
		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.CreateContact)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.ListExpenses)
			r.Post("/", h.CreateExpense)
		})
	})

	return r
}
