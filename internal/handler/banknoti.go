package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ups-sales/api/internal/banknoti"
	"github.com/ups-sales/api/internal/database"
	"go.uber.org/zap"
)

// BankNotificationStore defines the database methods needed by bank
// notification handlers.
type BankNotificationStore interface {
	ListBankNotifications(ctx context.Context, arg database.ListBankNotificationsParams) ([]database.BankNotification, error)
}

// BankPoller runs one poll of the notification endpoint.
// Satisfied by *banknoti.Poller.
type BankPoller interface {
	Poll(ctx context.Context) banknoti.Result
}

// BankNotificationHandler exposes stored bank notifications and a manual
// poll trigger.
type BankNotificationHandler struct {
	store  BankNotificationStore
	poller BankPoller
	logger *zap.Logger
}

// NewBankNotificationHandler creates a new BankNotificationHandler.
func NewBankNotificationHandler(store BankNotificationStore, poller BankPoller, logger *zap.Logger) *BankNotificationHandler {
	return &BankNotificationHandler{store: store, poller: poller, logger: logger}
}

// RegisterRoutes registers the read endpoints.
// Expected to be mounted at /bank-notifications; POST /poll is wired by
// the router so it can carry role and rate limit middleware.
func (h *BankNotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type bankNotificationResponse struct {
	ID            uuid.UUID `json:"id"`
	TransactionID string    `json:"transaction_id"`
	TxnTime       *string   `json:"txn_time"`
	BankAccount   *string   `json:"bank_account"`
	Content       *string   `json:"content"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

type pollResponse struct {
	Status        banknoti.Status           `json:"status"`
	TransactionID string                    `json:"transaction_id,omitempty"`
	Notification  *bankNotificationResponse `json:"notification,omitempty"`
	AlertError    string                    `json:"alert_error,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

func toBankNotificationResponse(n database.BankNotification) bankNotificationResponse {
	return bankNotificationResponse{
		ID:            n.ID,
		TransactionID: n.TransactionID,
		TxnTime:       textPtr(n.TxnTime),
		BankAccount:   textPtr(n.BankAccount),
		Content:       textPtr(n.Content),
		Amount:        numericToString(n.Amount),
		CreatedAt:     n.CreatedAt.Time,
	}
}

// List handles GET /bank-notifications, newest first.
func (h *BankNotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.store.ListBankNotifications(r.Context(), database.ListBankNotificationsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		internalError(w, h.logger, "list bank notifications", err)
		return
	}

	resp := make([]bankNotificationResponse, len(rows))
	for i, n := range rows {
		resp[i] = toBankNotificationResponse(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Poll handles POST /bank-notifications/poll. The poll runs synchronously
// and its outcome is reported in the body.
func (h *BankNotificationHandler) Poll(w http.ResponseWriter, r *http.Request) {
	result := h.poller.Poll(r.Context())

	resp := pollResponse{
		Status:        result.Status,
		TransactionID: result.TransactionID,
	}
	if result.Notification != nil {
		n := toBankNotificationResponse(*result.Notification)
		resp.Notification = &n
	}
	if result.AlertErr != nil {
		resp.AlertError = result.AlertErr.Error()
	}

	status := http.StatusOK
	switch result.Status {
	case banknoti.StatusCreated:
		status = http.StatusCreated
	case banknoti.StatusFetchFailed:
		status = http.StatusBadGateway
		resp.Error = result.Err.Error()
	case banknoti.StatusInvalid:
		status = http.StatusUnprocessableEntity
		resp.Error = result.Err.Error()
	case banknoti.StatusStoreFailed:
		status = http.StatusInternalServerError
		resp.Error = "internal server error"
	}
	writeJSON(w, status, resp)
}
