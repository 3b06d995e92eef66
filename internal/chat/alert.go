package chat

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/ups-sales/api/internal/database"
)

const bankAlertTemplate = "<p>📢 <b>New Bank Transaction Detected</b></p>" +
	"<ul style='list-style-type: none; padding-left: 0;'>" +
	"<li>💰 <b>Amount:</b> %s</li>" +
	"<li>📝 <b>Content:</b> %s</li>" +
	"<li>🏦 <b>Account:</b> %s</li>" +
	"</ul>"

// BankAlert renders the channel message for a newly stored bank notification.
func BankAlert(channel string, n database.BankNotification) Message {
	return Message{
		Channel: channel,
		Subject: "Bank transaction " + n.TransactionID,
		Body: fmt.Sprintf(bankAlertTemplate,
			formatAmount(n.Amount),
			html.EscapeString(textOr(n.Content, "N/A")),
			html.EscapeString(textOr(n.BankAccount, "N/A")),
		),
	}
}

// BankAlerter posts bank notification alerts to a fixed channel.
type BankAlerter struct {
	poster  Poster
	channel string
}

func NewBankAlerter(poster Poster, channel string) *BankAlerter {
	return &BankAlerter{poster: poster, channel: channel}
}

func (a *BankAlerter) Alert(ctx context.Context, n database.BankNotification) error {
	return a.poster.Post(ctx, BankAlert(a.channel, n))
}

func textOr(t pgtype.Text, fallback string) string {
	if !t.Valid || strings.TrimSpace(t.String) == "" {
		return fallback
	}
	return t.String
}

// formatAmount renders a whole-unit amount with comma thousands separators.
func formatAmount(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	v, err := n.Value()
	if err != nil {
		return "0"
	}
	s, ok := v.(string)
	if !ok {
		return "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "0"
	}
	return groupThousands(d.Round(0).StringFixed(0))
}

func groupThousands(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}
