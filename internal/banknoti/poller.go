package banknoti

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ups-sales/api/internal/database"
	"go.uber.org/zap"
)

// maxBodyBytes bounds how much of the endpoint response is read.
const maxBodyBytes = 64 << 10

// Store persists notifications. Satisfied by *database.Queries.
type Store interface {
	BankNotificationExists(ctx context.Context, transactionID string) (bool, error)
	CreateBankNotification(ctx context.Context, arg database.CreateBankNotificationParams) (database.BankNotification, error)
}

// Alerter is told about every newly stored notification.
type Alerter interface {
	Alert(ctx context.Context, n database.BankNotification) error
}

// Status is the outcome of one poll.
type Status string

const (
	StatusCreated     Status = "created"
	StatusDuplicate   Status = "duplicate"
	StatusFetchFailed Status = "fetch_failed"
	StatusInvalid     Status = "invalid"
	StatusStoreFailed Status = "store_failed"
)

// Result reports what a poll did. Err is set for every failed status.
type Result struct {
	Status        Status
	TransactionID string
	Notification  *database.BankNotification
	AlertErr      error
	Err           error
}

// TransientFetchError is a network failure or non-2xx answer. The next
// scheduled poll is the retry.
type TransientFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// Poller fetches the latest notification and stores it once.
type Poller struct {
	url     string
	client  *http.Client
	store   Store
	alerter Alerter
	logger  *zap.Logger
}

// NewPoller creates a Poller. alerter may be nil.
func NewPoller(url string, timeout time.Duration, store Store, alerter Alerter, logger *zap.Logger) *Poller {
	return &Poller{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		store:   store,
		alerter: alerter,
		logger:  logger.Named("banknoti"),
	}
}

// Poll runs one fetch, parse, dedupe and insert cycle. It never returns an
// error; failures are logged and described in the Result.
func (p *Poller) Poll(ctx context.Context) Result {
	text, err := p.fetch(ctx)
	if err != nil {
		p.logger.Error("fetch bank notifications", zap.String("url", p.url), zap.Error(err))
		return Result{Status: StatusFetchFailed, Err: err}
	}

	payload, err := ParsePayload(text)
	if err != nil {
		p.logger.Warn("unexpected bank notification payload", zap.Error(err), zap.String("body", truncate(text, 200)))
		return Result{Status: StatusInvalid, Err: err}
	}

	log := p.logger.With(zap.String("transaction_id", payload.TransactionID))

	exists, err := p.store.BankNotificationExists(ctx, payload.TransactionID)
	if err != nil {
		log.Error("check existing notification", zap.Error(err))
		return Result{Status: StatusStoreFailed, TransactionID: payload.TransactionID, Err: err}
	}
	if exists {
		log.Debug("notification already stored")
		return Result{Status: StatusDuplicate, TransactionID: payload.TransactionID}
	}

	n, err := p.store.CreateBankNotification(ctx, createParams(payload))
	if err != nil {
		if isDuplicate(err) {
			// A concurrent poll stored it between the check and the insert.
			return Result{Status: StatusDuplicate, TransactionID: payload.TransactionID}
		}
		log.Error("store notification", zap.Error(err))
		return Result{Status: StatusStoreFailed, TransactionID: payload.TransactionID, Err: err}
	}
	log.Info("bank notification stored")

	res := Result{Status: StatusCreated, TransactionID: payload.TransactionID, Notification: &n}
	if p.alerter != nil {
		if err := p.alerter.Alert(ctx, n); err != nil {
			log.Error("alert bank notification", zap.Error(err))
			res.AlertErr = err
		}
	}
	return res
}

func (p *Poller) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", &TransientFetchError{URL: p.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransientFetchError{URL: p.url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &TransientFetchError{URL: p.url, Err: err}
	}
	return string(body), nil
}

func createParams(p Payload) database.CreateBankNotificationParams {
	params := database.CreateBankNotificationParams{
		TransactionID: p.TransactionID,
		TxnTime:       pgtype.Text{String: p.Time, Valid: p.Time != ""},
		BankAccount:   pgtype.Text{String: p.BankAccount, Valid: p.BankAccount != ""},
		Content:       pgtype.Text{String: p.Content, Valid: p.Content != ""},
	}
	if p.HasAmount {
		_ = params.Amount.Scan(p.Amount.String())
	}
	return params
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
