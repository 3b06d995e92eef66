package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/sales"
	"github.com/ups-sales/api/internal/service"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	logger.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// writeServiceError maps order, invoice and composition errors to HTTP.
// Unknown errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrInvoiceNotFound),
		errors.Is(err, service.ErrVirtualLineNotFound),
		errors.Is(err, sales.ErrLineNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, sales.ErrInvoiceExists),
		errors.Is(err, sales.ErrComposition),
		errors.Is(err, service.ErrOrderLocked),
		errors.Is(err, service.ErrOrderNotConfirmed),
		errors.Is(err, service.ErrInvoiceCancelled),
		errors.Is(err, service.ErrInvalidOrderMove):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, sales.ErrValidation),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrInvalidLineType),
		errors.Is(err, service.ErrProductRequired),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrEmptyComponents):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		internalError(w, logger, op, err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// urlUUID parses a chi URL parameter, writing 400 when it is malformed.
func urlUUID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func parseUUIDs(raw []string, field string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, errors.New("invalid " + field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseOptionalDecimal returns nil for an empty string.
func parseOptionalDecimal(s, field string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.New("invalid " + field)
	}
	return &d, nil
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
