package sales

import (
	"context"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Receipt renders a plain-text till receipt for a completed sale. Amounts
// carry thousand separators for the printer.
func (s *Service) Receipt(ctx context.Context, saleID int64) (string, error) {
	sale, items, payments, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return "", err
	}
	if sale.IsHeld {
		return "", ErrHeldSale
	}

	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("TILLPOINT\n")
	p.Fprintf(&b, "Sale #%d  %s\n", sale.ID, sale.SoldAt.Format("2006-01-02 15:04"))
	if sale.IsVoided {
		b.WriteString("*** VOIDED ***\n")
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, item := range items {
		p.Fprintf(&b, "#%d x%.0f @ %.2f %12.2f\n", item.ProductID, item.Qty, item.UnitPrice, item.LineTotal)
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")
	p.Fprintf(&b, "Subtotal %23.2f\n", sale.TotalAmount)
	if sale.DiscountAmount > 0 {
		p.Fprintf(&b, "Discount %23.2f\n", -sale.DiscountAmount)
	}
	p.Fprintf(&b, "Total %26.2f\n", sale.FinalAmount)
	for _, pay := range payments {
		label := string(pay.Type)
		if pay.CardLastFour != "" {
			label += " *" + pay.CardLastFour
		}
		p.Fprintf(&b, "%-16s %15.2f\n", label, pay.Amount)
	}
	p.Fprintf(&b, "Change %25.2f\n", sale.Change)
	if sale.PointsAwarded > 0 {
		p.Fprintf(&b, "Points earned: %d\n", sale.PointsAwarded)
	}
	return b.String(), nil
}
