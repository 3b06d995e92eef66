package banknoti

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ups-sales/api/internal/database"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const samplePayload = `array( 'transaction_id' => 'FT1', 'bank_account' => '0123', 'content' => 'CK don 7', 'amount' => '250000' )`

// memStore is a map-backed Store.
type memStore struct {
	rows      map[string]database.BankNotification
	existsErr error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]database.BankNotification)}
}

func (m *memStore) BankNotificationExists(ctx context.Context, txID string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.rows[txID]
	return ok, nil
}

func (m *memStore) CreateBankNotification(ctx context.Context, arg database.CreateBankNotificationParams) (database.BankNotification, error) {
	if m.createErr != nil {
		return database.BankNotification{}, m.createErr
	}
	n := database.BankNotification{
		ID:            uuid.New(),
		TransactionID: arg.TransactionID,
		TxnTime:       arg.TxnTime,
		BankAccount:   arg.BankAccount,
		Content:       arg.Content,
		Amount:        arg.Amount,
	}
	m.rows[arg.TransactionID] = n
	return n, nil
}

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) Alert(ctx context.Context, n database.BankNotification) error {
	return m.Called(ctx, n).Error(0)
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPoll_StoresNewNotificationOnce(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePayload)
	store := newMemStore()
	alerter := &mockAlerter{}
	alerter.On("Alert", mock.Anything, mock.MatchedBy(func(n database.BankNotification) bool {
		return n.TransactionID == "FT1"
	})).Return(nil).Once()

	p := NewPoller(srv.URL, time.Second, store, alerter, zap.NewNop())

	first := p.Poll(context.Background())
	require.Equal(t, StatusCreated, first.Status)
	require.NotNil(t, first.Notification)
	assert.Equal(t, "CK don 7", first.Notification.Content.String)
	assert.True(t, first.Notification.Amount.Valid)

	second := p.Poll(context.Background())
	assert.Equal(t, StatusDuplicate, second.Status)
	assert.NoError(t, second.Err)

	assert.Len(t, store.rows, 1)
	alerter.AssertExpectations(t)
}

func TestPoll_AlertFailureKeepsRow(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePayload)
	store := newMemStore()
	alerter := &mockAlerter{}
	alerter.On("Alert", mock.Anything, mock.Anything).Return(errors.New("chat down"))

	res := NewPoller(srv.URL, time.Second, store, alerter, zap.NewNop()).Poll(context.Background())

	assert.Equal(t, StatusCreated, res.Status)
	assert.EqualError(t, res.AlertErr, "chat down")
	assert.Contains(t, store.rows, "FT1")
}

func TestPoll_NonSuccessStatusIsTransient(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, "oops")
	store := newMemStore()

	res := NewPoller(srv.URL, time.Second, store, nil, zap.NewNop()).Poll(context.Background())

	assert.Equal(t, StatusFetchFailed, res.Status)
	var fetchErr *TransientFetchError
	require.ErrorAs(t, res.Err, &fetchErr)
	assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
	assert.Empty(t, store.rows)
}

func TestPoll_TimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	res := NewPoller(srv.URL, 50*time.Millisecond, newMemStore(), nil, zap.NewNop()).Poll(context.Background())

	assert.Equal(t, StatusFetchFailed, res.Status)
	var fetchErr *TransientFetchError
	assert.ErrorAs(t, res.Err, &fetchErr)
}

func TestPoll_InvalidPayload(t *testing.T) {
	srv := serve(t, http.StatusOK, `array('content' => 'no id')`)
	res := NewPoller(srv.URL, time.Second, newMemStore(), nil, zap.NewNop()).Poll(context.Background())

	assert.Equal(t, StatusInvalid, res.Status)
	assert.ErrorIs(t, res.Err, ErrMissingTransactionID)
}

func TestPoll_LogsUnderPollerName(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	srv := serve(t, http.StatusOK, `array('content' => 'no id')`)
	NewPoller(srv.URL, time.Second, newMemStore(), nil, zap.New(core)).Poll(context.Background())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "banknoti", logs.All()[0].LoggerName)
}

func TestPoll_ConcurrentInsertIsDuplicate(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePayload)
	store := newMemStore()
	store.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "bank_notifications_transaction_id_key"}
	alerter := &mockAlerter{}

	res := NewPoller(srv.URL, time.Second, store, alerter, zap.NewNop()).Poll(context.Background())

	assert.Equal(t, StatusDuplicate, res.Status)
	alerter.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
}

func TestPoll_StoreFailure(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePayload)
	store := newMemStore()
	store.existsErr = errors.New("db gone")

	res := NewPoller(srv.URL, time.Second, store, nil, zap.NewNop()).Poll(context.Background())

	assert.Equal(t, StatusStoreFailed, res.Status)
	assert.Equal(t, "FT1", res.TransactionID)
}
