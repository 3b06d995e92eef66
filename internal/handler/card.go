package handler

import (
	"github.com/google/uuid"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
)

const (
	cardPreviewLimit      = 4
	uncategorizedCategory = "Uncategorized"
)

type cardPreview struct {
	Name string `json:"name"`
	Qty  string `json:"qty"`
}

type cardBadge struct {
	Label      string `json:"label"`
	Color      string `json:"color"`
	Background string `json:"background"`
}

type orderCard struct {
	Category  string        `json:"category"`
	Previews  []cardPreview `json:"previews"`
	MoreCount int           `json:"more_count"`
	State     cardBadge     `json:"state"`
}

var stateBadges = map[string]cardBadge{
	enum.OrderStateDraft:  {Label: "New", Color: "#1e40af", Background: "#dbeafe"},
	enum.OrderStateSent:   {Label: "New", Color: "#1e40af", Background: "#dbeafe"},
	enum.OrderStateSale:   {Label: "Sales Order", Color: "#047857", Background: "#d1fae5"},
	enum.OrderStateDone:   {Label: "Delivered", Color: "#c2410c", Background: "#ffedd5"},
	enum.OrderStateCancel: {Label: "Cancelled", Color: "#b91c1c", Background: "#fee2e2"},
}

func stateBadge(state string) cardBadge {
	if b, ok := stateBadges[state]; ok {
		return b
	}
	return cardBadge{Label: state, Color: "#111827", Background: "#e5e7eb"}
}

// buildCard summarizes an order for list views. lines must belong to the
// order and be in sequence order.
func buildCard(order database.SaleOrder, lines []database.ListOrderCardLinesRow) orderCard {
	card := orderCard{
		Category: order.Tag.String,
		Previews: []cardPreview{},
		State:    stateBadge(order.State),
	}

	for _, l := range lines {
		if l.DisplayType.Valid {
			continue
		}
		if card.Category == "" && l.CategoryName != "" {
			card.Category = l.CategoryName
		}
		if len(card.Previews) < cardPreviewLimit {
			card.Previews = append(card.Previews, cardPreview{
				Name: l.Name,
				Qty:  numericToDecimal(l.Quantity).String(),
			})
			continue
		}
		card.MoreCount++
	}

	if card.Category == "" {
		card.Category = uncategorizedCategory
	}
	return card
}

// groupCardLines splits the rows of ListOrderCardLines by order.
func groupCardLines(rows []database.ListOrderCardLinesRow) map[uuid.UUID][]database.ListOrderCardLinesRow {
	out := make(map[uuid.UUID][]database.ListOrderCardLinesRow)
	for _, row := range rows {
		out[row.OrderID] = append(out[row.OrderID], row)
	}
	return out
}
