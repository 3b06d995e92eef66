package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const bankNotificationColumns = `id, transaction_id, txn_time, bank_account, content, amount, created_at`

const bankNotificationExists = `SELECT EXISTS (SELECT 1 FROM bank_notifications WHERE transaction_id = $1)`

func (q *Queries) BankNotificationExists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, bankNotificationExists, transactionID).Scan(&exists)
	return exists, err
}

const createBankNotification = `INSERT INTO bank_notifications (transaction_id, txn_time, bank_account, content, amount)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + bankNotificationColumns

type CreateBankNotificationParams struct {
	TransactionID string         `json:"transaction_id"`
	TxnTime       pgtype.Text    `json:"txn_time"`
	BankAccount   pgtype.Text    `json:"bank_account"`
	Content       pgtype.Text    `json:"content"`
	Amount        pgtype.Numeric `json:"amount"`
}

func (q *Queries) CreateBankNotification(ctx context.Context, arg CreateBankNotificationParams) (BankNotification, error) {
	var i BankNotification
	err := q.db.QueryRow(ctx, createBankNotification,
		arg.TransactionID,
		arg.TxnTime,
		arg.BankAccount,
		arg.Content,
		arg.Amount,
	).Scan(
		&i.ID,
		&i.TransactionID,
		&i.TxnTime,
		&i.BankAccount,
		&i.Content,
		&i.Amount,
		&i.CreatedAt,
	)
	return i, err
}

const listBankNotifications = `SELECT ` + bankNotificationColumns + ` FROM bank_notifications
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2`

type ListBankNotificationsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListBankNotifications(ctx context.Context, arg ListBankNotificationsParams) ([]BankNotification, error) {
	rows, err := q.db.Query(ctx, listBankNotifications, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BankNotification
	for rows.Next() {
		var i BankNotification
		if err := rows.Scan(
			&i.ID,
			&i.TransactionID,
			&i.TxnTime,
			&i.BankAccount,
			&i.Content,
			&i.Amount,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
