package service

import (
	"time"

	"posterminal/internal/dto"
	"posterminal/internal/model"

	"github.com/shopspring/decimal"
)

// buildZReport assembles the closure report from the session's sales and
// expected totals. counted is nil while the session is still open.
func buildZReport(b *Binding, sess *model.CashSession, operatorName string, sales []model.Sale, exp *dto.ExpectedTotals, counted *decimal.Decimal, now time.Time) *dto.ZReport {
	syn := dto.ZSynthetic{
		Gross:          decimal.Zero,
		Discounts:      decimal.Zero,
		Net:            decimal.Zero,
		CanceledTotal:  decimal.Zero,
		ExpectedByForm: exp.ByForm.Ordered(),
	}
	tenders := dto.NewFormAmounts()
	rows := make([]dto.ZAnalyticRow, 0, len(sales))

	for _, sale := range sales {
		rows = append(rows, dto.ZAnalyticRow{
			SaleID:       sale.ID.String(),
			SaleNumber:   sale.TerminalSaleNumber,
			Time:         sale.CreatedAt.Format("15:04:05"),
			DocumentKind: sale.DocumentKind,
			Status:       sale.Status,
			Gross:        sale.Subtotal,
			Discounts:    sale.TotalDiscount(),
			Net:          sale.NetTotal,
			Highlight:    sale.Status == model.SaleCanceled,
		})
		if sale.Status == model.SaleCanceled {
			syn.CanceledCount++
			syn.CanceledTotal = syn.CanceledTotal.Add(sale.NetTotal)
			continue
		}
		syn.SalesCount++
		syn.Gross = syn.Gross.Add(sale.Subtotal)
		syn.Discounts = syn.Discounts.Add(sale.TotalDiscount())
		syn.Net = syn.Net.Add(sale.NetTotal)
		for _, t := range sale.Tenders {
			form, _ := model.ParseTenderForm(string(t.Form))
			tenders.Add(form, t.Amount)
		}
		tenders.Add(model.FormCash, sale.Change.Neg())
	}
	syn.TenderTotals = tenders.Ordered()

	syn.Conference = dto.ZConference{
		InitialFloat:  exp.InitialFloat,
		CashFromSales: model.Round2(exp.CashFromSales),
		Drops:         exp.Drops,
		Infusions:     exp.Infusions,
		Expected:      exp.Total,
	}
	if counted != nil {
		c := *counted
		diff := model.Round2(exp.Total.Sub(c))
		syn.Conference.Counted = &c
		syn.Conference.Difference = &diff
		syn.Conference.Label = differenceLabel(exp.Total.Sub(c))
	}

	return &dto.ZReport{
		SessionID:   sess.ID.String(),
		Terminal:    b.Terminal.Name,
		Operator:    operatorName,
		OpenedAt:    sess.OpenedAt.Format(time.RFC3339),
		GeneratedAt: now.Format(time.RFC3339),
		Synthetic:   syn,
		Analytic:    rows,
	}
}
