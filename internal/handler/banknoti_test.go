package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ups-sales/api/internal/banknoti"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/handler"
	"go.uber.org/zap"
)

type mockBankStore struct {
	rows    []database.BankNotification
	lastArg database.ListBankNotificationsParams
}

func (m *mockBankStore) ListBankNotifications(_ context.Context, arg database.ListBankNotificationsParams) ([]database.BankNotification, error) {
	m.lastArg = arg
	return m.rows, nil
}

type stubPoller struct {
	result banknoti.Result
	polls  int
}

func (p *stubPoller) Poll(_ context.Context) banknoti.Result {
	p.polls++
	return p.result
}

func setupBankRouter(store *mockBankStore, poller *stubPoller) *chi.Mux {
	h := handler.NewBankNotificationHandler(store, poller, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/bank-notifications", h.RegisterRoutes)
	r.Post("/bank-notifications/poll", h.Poll)
	return r
}

func testBankNotification() database.BankNotification {
	return database.BankNotification{
		ID:            uuid.New(),
		TransactionID: "FT24001",
		TxnTime:       pgtype.Text{String: "08/10/2024 10:00", Valid: true},
		BankAccount:   pgtype.Text{String: "1234567890", Valid: true},
		Content:       pgtype.Text{String: "PAYMENT SO00001", Valid: true},
		Amount:        testNumeric("1500000"),
	}
}

func TestBankNotificationList(t *testing.T) {
	store := &mockBankStore{rows: []database.BankNotification{testBankNotification()}}
	router := setupBankRouter(store, &stubPoller{})

	rr := doRequest(t, router, "GET", "/bank-notifications?limit=500&offset=5", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if store.lastArg.Limit != 100 || store.lastArg.Offset != 5 {
		t.Errorf("pagination: got %+v, want limit 100 offset 5", store.lastArg)
	}
	resp := decodeList(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(resp))
	}
	if resp[0]["transaction_id"] != "FT24001" || resp[0]["amount"] != "1500000.00" {
		t.Errorf("notification: got %v", resp[0])
	}
}

func TestBankNotificationPoll_Outcomes(t *testing.T) {
	n := testBankNotification()
	tests := []struct {
		name   string
		result banknoti.Result
		status int
		check  func(t *testing.T, resp map[string]interface{})
	}{
		{
			name:   "created",
			result: banknoti.Result{Status: banknoti.StatusCreated, TransactionID: n.TransactionID, Notification: &n},
			status: http.StatusCreated,
			check: func(t *testing.T, resp map[string]interface{}) {
				if resp["notification"] == nil {
					t.Error("notification should be returned")
				}
			},
		},
		{
			name: "created with alert failure",
			result: banknoti.Result{
				Status: banknoti.StatusCreated, TransactionID: n.TransactionID, Notification: &n,
				AlertErr: errors.New("odoo unreachable"),
			},
			status: http.StatusCreated,
			check: func(t *testing.T, resp map[string]interface{}) {
				if resp["alert_error"] != "odoo unreachable" {
					t.Errorf("alert_error: got %v", resp["alert_error"])
				}
			},
		},
		{
			name:   "duplicate",
			result: banknoti.Result{Status: banknoti.StatusDuplicate, TransactionID: n.TransactionID},
			status: http.StatusOK,
		},
		{
			name:   "fetch failed",
			result: banknoti.Result{Status: banknoti.StatusFetchFailed, Err: errors.New("timeout")},
			status: http.StatusBadGateway,
		},
		{
			name:   "invalid payload",
			result: banknoti.Result{Status: banknoti.StatusInvalid, Err: errors.New("missing transaction id")},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "store failed",
			result: banknoti.Result{Status: banknoti.StatusStoreFailed, Err: errors.New("connection reset")},
			status: http.StatusInternalServerError,
			check: func(t *testing.T, resp map[string]interface{}) {
				if resp["error"] != "internal server error" {
					t.Errorf("store errors should not leak: got %v", resp["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poller := &stubPoller{result: tt.result}
			router := setupBankRouter(&mockBankStore{}, poller)

			rr := doRequest(t, router, "POST", "/bank-notifications/poll", nil)

			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tt.status, rr.Body.String())
			}
			if poller.polls != 1 {
				t.Errorf("polls: got %d, want 1", poller.polls)
			}
			resp := decodeResponse(t, rr)
			if resp["status"] != string(tt.result.Status) {
				t.Errorf("status field: got %v, want %s", resp["status"], tt.result.Status)
			}
			if tt.check != nil {
				tt.check(t, resp)
			}
		})
	}
}
