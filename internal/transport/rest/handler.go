package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"condoledger/internal/domain"
	"condoledger/internal/repository"
	"condoledger/internal/service"
)

type BillingOrchestrator interface {
	GenerateMonth(ctx context.Context, month time.Time) (service.GenerationSummary, error)
	RegenerateMonth(ctx context.Context, month time.Time) (service.GenerationSummary, error)
	RefreshStates(ctx context.Context) (int64, error)
	MaterializeRecurring(ctx context.Context, month time.Time) (int, error)
	SendReminders(ctx context.Context, delinquentsOnly bool) (int, error)
}

type PaymentProcessor interface {
	Intake(ctx context.Context, in service.PaymentInput) (domain.Payment, error)
	Register(ctx context.Context, in service.PaymentInput) (service.AllocationOutcome, error)
	Verify(ctx context.Context, paymentID string) (service.AllocationOutcome, error)
	Reject(ctx context.Context, paymentID, note string) error
	VerifyMany(ctx context.Context, paymentIDs []string) []service.VerifyOutcome
}

type ReportProvider interface {
	Delinquents(ctx context.Context) ([]service.Delinquent, error)
	CashFlow(ctx context.Context, start, end time.Time) (service.CashFlowReport, error)
	PaymentHistory(ctx context.Context, ownerID int64) ([]domain.PaymentHistoryEntry, error)
	Credits(ctx context.Context) ([]service.CreditEntry, error)
	ShareAudit(ctx context.Context) ([]service.ShareAuditEntry, error)
}

type DocumentProvider interface {
	ReceiptDocument(ctx context.Context, receiptID int64) ([]byte, string, error)
	StartReceiptsExport(ctx context.Context, selected []string, filter repository.ReceiptsFilter, userID int64) (string, error)
	StartDelinquentsExport(ctx context.Context, userID int64) (string, error)
	GetDocument(ctx context.Context, documentID string, userID int64) (service.DocumentStatus, error)
	ListDocuments(ctx context.Context, userID int64) ([]service.DocumentStatus, error)
}

// WebSocketUpgrader is the hub surface the transport needs.
type WebSocketUpgrader interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, userID int64)
}

// Deps collects everything the HTTP surface talks to. CRUD endpoints hit
// repositories directly; billing, payments, reports and documents go
// through their services.
type Deps struct {
	Owners    *repository.OwnerRepository
	Buildings *repository.BuildingRepository
	Units     *repository.UnitRepository
	Catalog   *repository.CatalogRepository
	Expenses  *repository.ExpenseRepository
	Movements *repository.MovementRepository
	Receipts  *repository.ReceiptRepository
	Payments  *repository.PaymentRepository
	Rates     *repository.RateRepository
	Settings  *repository.SettingsRepository

	Billing   BillingOrchestrator
	Processor PaymentProcessor
	Reports   ReportProvider
	Documents DocumentProvider
	Hub       WebSocketUpgrader
}

type Handler struct {
	deps Deps
}

func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/owners", func(r chi.Router) {
		r.Get("/", h.listOwners)
		r.Post("/", h.createOwner)
		r.Get("/{owner_id}", h.getOwner)
		r.Put("/{owner_id}", h.updateOwner)
	})

	r.Route("/buildings", func(r chi.Router) {
		r.Get("/", h.listBuildings)
		r.Post("/", h.createBuilding)
		r.Get("/{building_id}", h.getBuilding)
		r.Put("/{building_id}", h.updateBuilding)
	})

	r.Route("/units", func(r chi.Router) {
		r.Get("/", h.listUnits)
		r.Post("/", h.createUnit)
		r.Get("/{unit_id}", h.getUnit)
		r.Put("/{unit_id}", h.updateUnit)
	})

	r.Route("/catalog", func(r chi.Router) {
		r.Route("/types", func(r chi.Router) {
			r.Get("/", h.listExpenseTypes)
			r.Post("/", h.createExpenseType)
			r.Get("/{type_id}", h.getExpenseType)
			r.Put("/{type_id}", h.updateExpenseType)
		})
		r.Route("/concepts", func(r chi.Router) {
			r.Get("/", h.listExpenseConcepts)
			r.Post("/", h.createExpenseConcept)
			r.Get("/{concept_id}", h.getExpenseConcept)
			r.Put("/{concept_id}", h.updateExpenseConcept)
		})
	})

	r.Route("/expenses", func(r chi.Router) {
		r.Get("/", h.listExpenseInstances)
		r.Post("/", h.createExpenseInstance)
		r.Get("/{instance_id}", h.getExpenseInstance)
		r.Put("/{instance_id}", h.updateExpenseInstance)
	})

	r.Route("/movements", func(r chi.Router) {
		r.Get("/", h.listMovements)
		r.Post("/", h.createMovement)
		r.Get("/{movement_id}", h.getMovement)
	})

	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.listReceipts)
		r.Get("/{receipt_id}", h.getReceipt)
		r.Get("/{receipt_id}/document", h.downloadReceipt)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Post("/receipts/generate", h.generateReceipts)
		r.Post("/receipts/regenerate", h.regenerateReceipts)
		r.Post("/receipts/refresh-states", h.refreshReceiptStates)
		r.Post("/movements/recur", h.materializeRecurring)
		r.Post("/reminders", h.sendReminders)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.registerPayment)
		r.Post("/intake", h.intakePayment)
		r.Post("/verify", h.verifyPayments)
		r.Get("/{payment_id}", h.getPayment)
		r.Post("/{payment_id}/verify", h.verifyPayment)
		r.Post("/{payment_id}/reject", h.rejectPayment)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/delinquents", h.delinquentsReport)
		r.Get("/cash-flow", h.cashFlowReport)
		r.Get("/payment-history/{owner_id}", h.paymentHistoryReport)
		r.Get("/credits", h.creditsReport)
		r.Get("/share-audit", h.shareAuditReport)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.getSettings)
		r.Put("/", h.updateSettings)
	})

	r.Route("/rates", func(r chi.Router) {
		r.Get("/", h.listRates)
		r.Get("/latest", h.latestRate)
		r.Post("/", h.upsertRate)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.listDocuments)
		r.Get("/{document_id}", h.getDocument)
		r.Post("/receipts", h.exportReceipts)
		r.Post("/delinquents", h.exportDelinquents)
	})

	r.Get("/ws", h.serveWS)

	return r
}
