package infra

// pdf.go renders 80mm thermal-roll documents with go-pdf/fpdf:
//   - sale receipts (fiscal receipts carry the access key and a QR code)
//   - cancellation receipts
//   - Z-reports
//
// Files are written to storagePath and named after the document.

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"posterminal/internal/dto"
	"posterminal/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	rollWidth = 80.0
	margin    = 4.0
	qrSize    = 32.0
)

// PDFPrinter renders documents to files. It is safe for concurrent use.
type PDFPrinter struct {
	storagePath string
}

func NewPDFPrinter(storagePath string) *PDFPrinter {
	return &PDFPrinter{storagePath: storagePath}
}

func (p *PDFPrinter) PrintReceipt(_ context.Context, r *dto.Receipt) error {
	name := fmt.Sprintf("receipt_%s_%d.pdf", strings.ToLower(string(r.DocumentKind)), r.SaleNumber)
	_, err := p.write(name, func() (*fpdf.Fpdf, error) { return ReceiptPDF(r, "") })
	return err
}

func (p *PDFPrinter) PrintCancellation(_ context.Context, r *dto.CancellationReceipt) error {
	name := fmt.Sprintf("cancellation_%d.pdf", r.SaleNumber)
	_, err := p.write(name, func() (*fpdf.Fpdf, error) {
		return ReceiptPDF(&r.Receipt, fmt.Sprintf("CANCELED %s: %s", r.CanceledAt, r.Motive))
	})
	return err
}

func (p *PDFPrinter) PrintZReport(_ context.Context, z *dto.ZReport) error {
	name := fmt.Sprintf("zreport_%s.pdf", z.SessionID)
	_, err := p.write(name, func() (*fpdf.Fpdf, error) { return ZReportPDF(z), nil })
	return err
}

func (p *PDFPrinter) write(name string, build func() (*fpdf.Fpdf, error)) (string, error) {
	if err := os.MkdirAll(p.storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	doc, err := build()
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.storagePath, name)
	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return path, nil
}

func newRoll(height float64) (*fpdf.Fpdf, float64) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: rollWidth, Ht: height},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()
	return pdf, rollWidth - 2*margin
}

func separator(pdf *fpdf.Fpdf) {
	pdf.Ln(1)
	pdf.Line(margin, pdf.GetY(), rollWidth-margin, pdf.GetY())
	pdf.Ln(1)
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}

// ReceiptPDF lays out a sale receipt. banner, when set, is printed in bold
// under the header (cancellations).
func ReceiptPDF(r *dto.Receipt, banner string) (*fpdf.Fpdf, error) {
	fiscal := r.DocumentKind == model.DocumentFiscal
	height := 70 + 8*float64(len(r.Lines)) + 4*float64(len(r.Tenders))
	if fiscal {
		height += qrSize + 14
	}
	if banner != "" {
		height += 10
	}
	pdf, w := newRoll(height)

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(w, 6, r.Company, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(w, 4, "Tax ID "+r.CompanyTaxID, "", 1, "C", false, 0, "")
	pdf.CellFormat(w, 4, r.Store, "", 1, "C", false, 0, "")
	title := "NON-FISCAL RECEIPT"
	if fiscal {
		title = "FISCAL RECEIPT"
	}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(w, 5, title, "", 1, "C", false, 0, "")
	if banner != "" {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.MultiCell(w, 4, banner, "1", "C", false)
	}
	separator(pdf)

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(w/2, 4, fmt.Sprintf("Sale %d", r.SaleNumber), "", 0, "L", false, 0, "")
	pdf.CellFormat(w/2, 4, r.Timestamp, "", 1, "R", false, 0, "")
	pdf.CellFormat(w/2, 4, "Terminal "+r.Terminal, "", 0, "L", false, 0, "")
	pdf.CellFormat(w/2, 4, "Operator "+r.Operator, "", 1, "R", false, 0, "")
	if r.Customer != "" {
		pdf.CellFormat(w, 4, "Customer "+r.Customer, "", 1, "L", false, 0, "")
	}
	separator(pdf)

	// ── Lines ────────────────────────────────────────────────────────────────
	col1, col2, col3 := w*0.50, w*0.22, w*0.28
	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 4, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 4, "Qty x Price", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 4, "Total", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	for _, l := range r.Lines {
		pdf.CellFormat(col1, 4, truncate(fmt.Sprintf("%d %s", l.Position, l.Description), 30), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 4, l.Quantity.String()+" x "+money(l.UnitPrice), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 4, money(l.Total), "", 1, "R", false, 0, "")
		if l.Discount.IsPositive() {
			pdf.CellFormat(col1+col2, 4, "  discount", "", 0, "L", false, 0, "")
			pdf.CellFormat(col3, 4, "-"+money(l.Discount), "", 1, "R", false, 0, "")
		}
	}
	separator(pdf)

	// ── Totals ───────────────────────────────────────────────────────────────
	row := func(label, value string) {
		pdf.CellFormat(col1+col2, 4, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 4, value, "", 1, "R", false, 0, "")
	}
	row("Subtotal", money(r.Subtotal))
	if r.Discounts.IsPositive() {
		row("Discounts", "-"+money(r.Discounts))
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, money(r.Net), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, t := range r.Tenders {
		label := string(t.Form)
		if t.CardType != nil {
			label += " " + string(*t.CardType)
			if t.Installments != nil && *t.Installments > 1 {
				label += fmt.Sprintf(" %dx", *t.Installments)
			}
		}
		if t.NSU != "" {
			label += " NSU " + t.NSU
		}
		row(label, money(t.Amount))
	}
	if r.Change.IsPositive() {
		row("Change", money(r.Change))
	}

	// ── Fiscal block ─────────────────────────────────────────────────────────
	if fiscal {
		separator(pdf)
		pdf.SetFont("Courier", "", 6)
		pdf.MultiCell(w, 3, "Access key "+r.FiscalKey, "", "C", false)
		png, err := qrcode.Encode(r.FiscalQR, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("pdf: qr code: %w", err)
		}
		imgName := "qr-" + r.SaleID
		pdf.RegisterImageOptionsReader(imgName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		pdf.ImageOptions(imgName, (rollWidth-qrSize)/2, pdf.GetY()+1, qrSize, qrSize, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	return pdf, pdf.Error()
}

// ZReportPDF lays out the closure report: conference block, totals by form
// and one row per sale.
func ZReportPDF(z *dto.ZReport) *fpdf.Fpdf {
	height := 110 + 4*float64(len(z.Analytic)) + 8*float64(len(z.Synthetic.TenderTotals))
	pdf, w := newRoll(height)
	s := z.Synthetic

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(w, 6, "Z REPORT", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(w, 4, "Terminal "+z.Terminal+"  Operator "+z.Operator, "", 1, "C", false, 0, "")
	pdf.CellFormat(w, 4, "Opened "+z.OpenedAt, "", 1, "C", false, 0, "")
	pdf.CellFormat(w, 4, "Generated "+z.GeneratedAt, "", 1, "C", false, 0, "")
	separator(pdf)

	row := func(label, value string) {
		pdf.CellFormat(w*0.65, 4, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(w*0.35, 4, value, "", 1, "R", false, 0, "")
	}
	row(fmt.Sprintf("Sales (%d)", s.SalesCount), money(s.Gross))
	row("Discounts", "-"+money(s.Discounts))
	pdf.SetFont("Helvetica", "B", 8)
	row("Net", money(s.Net))
	pdf.SetFont("Helvetica", "", 7)
	row(fmt.Sprintf("Canceled (%d)", s.CanceledCount), money(s.CanceledTotal))
	separator(pdf)

	for _, t := range s.TenderTotals {
		row(string(t.Form), money(t.Amount))
	}
	separator(pdf)

	c := s.Conference
	row("Initial float", money(c.InitialFloat))
	row("Cash from sales", money(c.CashFromSales))
	row("Drops", "-"+money(c.Drops))
	row("Infusions", money(c.Infusions))
	for _, e := range s.ExpectedByForm {
		row("Expected "+string(e.Form), money(e.Amount))
	}
	pdf.SetFont("Helvetica", "B", 8)
	row("Expected", money(c.Expected))
	if c.Counted != nil && c.Difference != nil {
		row("Counted", money(*c.Counted))
		row("Difference ("+c.Label+")", money(*c.Difference))
	}
	separator(pdf)

	pdf.SetFont("Helvetica", "", 6)
	for _, a := range z.Analytic {
		if a.Highlight {
			pdf.SetTextColor(200, 0, 0)
		}
		pdf.CellFormat(w*0.15, 4, fmt.Sprintf("%d", a.SaleNumber), "", 0, "L", false, 0, "")
		pdf.CellFormat(w*0.20, 4, a.Time, "", 0, "L", false, 0, "")
		pdf.CellFormat(w*0.35, 4, string(a.DocumentKind)+" "+string(a.Status), "", 0, "L", false, 0, "")
		pdf.CellFormat(w*0.30, 4, money(a.Net), "", 1, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	return pdf
}
