// Package cart holds the sale in progress: ordered lines, per-line discounts
// and the whole-sale discount. Totals are recomputed in one pass on every
// mutation and a mutation that would leave a negative line or net total is
// rejected without changing state.
package cart

import (
	"fmt"

	"posterminal/internal/apierror"
	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is a priced item in the cart.
type Line struct {
	ProductID   uuid.UUID
	Code        string
	Description string
	Unit        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
}

// Gross is the pre-discount line amount.
func (l Line) Gross() decimal.Decimal { return model.Round2(l.UnitPrice.Mul(l.Quantity)) }

// Total is Gross minus the line discount.
func (l Line) Total() decimal.Decimal { return l.Gross().Sub(l.Discount) }

type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	LineDiscounts decimal.Decimal `json:"line_discount_total"`
	SaleDiscount  decimal.Decimal `json:"sale_discount"`
	Net           decimal.Decimal `json:"net_total"`
}

type Cart struct {
	lines        []Line
	saleDiscount decimal.Decimal
	customerID   *uuid.UUID
	totals       Totals
}

func New() *Cart { return &Cart{} }

func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int        { return len(c.lines) }
func (c *Cart) IsEmpty() bool   { return len(c.lines) == 0 }
func (c *Cart) Totals() Totals  { return c.totals }
func (c *Cart) Line(i int) Line { return c.lines[i] }

func (c *Cart) CustomerID() *uuid.UUID { return c.customerID }

func (c *Cart) SetCustomer(id *uuid.UUID) { c.customerID = id }

// Clear empties the cart, including customer and sale discount.
func (c *Cart) Clear() {
	c.lines = nil
	c.saleDiscount = decimal.Zero
	c.customerID = nil
	c.totals = Totals{}
}

// Add appends a line and returns its index.
func (c *Cart) Add(l Line) (int, error) {
	l, err := normalize(l)
	if err != nil {
		return -1, err
	}
	next := append(c.Lines(), l)
	if err := c.apply(next, c.saleDiscount); err != nil {
		return -1, err
	}
	return len(c.lines) - 1, nil
}

// Replace swaps the line at index i.
func (c *Cart) Replace(i int, l Line) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}
	l, err := normalize(l)
	if err != nil {
		return err
	}
	next := c.Lines()
	next[i] = l
	return c.apply(next, c.saleDiscount)
}

// Remove deletes the line at index i. Any sale discount is cleared because it
// was sized against the previous subtotal; cleared reports whether that
// happened so the caller can tell the operator once.
func (c *Cart) Remove(i int) (removed Line, cleared bool, err error) {
	if err := c.checkIndex(i); err != nil {
		return Line{}, false, err
	}
	removed = c.lines[i]
	next := make([]Line, 0, len(c.lines)-1)
	next = append(next, c.lines[:i]...)
	next = append(next, c.lines[i+1:]...)
	cleared = c.saleDiscount.IsPositive()
	if err := c.apply(next, decimal.Zero); err != nil {
		return Line{}, false, err
	}
	return removed, cleared, nil
}

// SetLineDiscount sets an absolute discount on line i.
func (c *Cart) SetLineDiscount(i int, amount decimal.Decimal) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}
	amount = model.Round2(amount)
	if amount.IsNegative() {
		return apierror.Invalid(apierror.CodeInvalidInput, "discount must not be negative")
	}
	next := c.Lines()
	next[i].Discount = amount
	return c.apply(next, c.saleDiscount)
}

// LineDiscountFromPercent converts pct into an absolute amount against the
// line's pre-discount total.
func (c *Cart) LineDiscountFromPercent(i int, pct decimal.Decimal) (decimal.Decimal, error) {
	if err := c.checkIndex(i); err != nil {
		return decimal.Zero, err
	}
	if pct.IsNegative() {
		return decimal.Zero, apierror.Invalid(apierror.CodeInvalidInput, "discount must not be negative")
	}
	return model.PercentOf(c.lines[i].Gross(), pct), nil
}

// SetSaleDiscount sets the whole-sale discount.
func (c *Cart) SetSaleDiscount(amount decimal.Decimal) error {
	amount = model.Round2(amount)
	if amount.IsNegative() {
		return apierror.Invalid(apierror.CodeInvalidInput, "discount must not be negative")
	}
	return c.apply(c.lines, amount)
}

// SaleDiscountBase is the amount a whole-sale discount is measured against.
func (c *Cart) SaleDiscountBase() decimal.Decimal {
	return c.totals.Subtotal.Sub(c.totals.LineDiscounts)
}

// SaleDiscountFromPercent converts pct into an absolute whole-sale discount.
func (c *Cart) SaleDiscountFromPercent(pct decimal.Decimal) (decimal.Decimal, error) {
	if pct.IsNegative() {
		return decimal.Zero, apierror.Invalid(apierror.CodeInvalidInput, "discount must not be negative")
	}
	return model.PercentOf(c.SaleDiscountBase(), pct), nil
}

// Restore replaces the whole cart content, as when a prior sale is recalled.
func (c *Cart) Restore(lines []Line, saleDiscount decimal.Decimal, customerID *uuid.UUID) error {
	norm := make([]Line, 0, len(lines))
	for _, l := range lines {
		n, err := normalize(l)
		if err != nil {
			return err
		}
		norm = append(norm, n)
	}
	if err := c.apply(norm, model.Round2(saleDiscount)); err != nil {
		return err
	}
	c.customerID = customerID
	return nil
}

func (c *Cart) checkIndex(i int) error {
	if i < 0 || i >= len(c.lines) {
		return apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("line %d does not exist", i+1))
	}
	return nil
}

// apply validates the candidate state and swaps it in.
func (c *Cart) apply(lines []Line, saleDiscount decimal.Decimal) error {
	var t Totals
	for _, l := range lines {
		if l.Discount.GreaterThan(l.Gross()) {
			return apierror.Invalid(apierror.CodeDiscountExceedsSubtotal,
				fmt.Sprintf("discount %s exceeds line total %s", l.Discount.StringFixed(2), l.Gross().StringFixed(2)))
		}
		t.Subtotal = t.Subtotal.Add(l.Gross())
		t.LineDiscounts = t.LineDiscounts.Add(l.Discount)
	}
	t.SaleDiscount = saleDiscount
	t.Net = t.Subtotal.Sub(t.LineDiscounts).Sub(saleDiscount)
	if t.Net.IsNegative() {
		return apierror.Invalid(apierror.CodeDiscountExceedsSubtotal,
			fmt.Sprintf("discount %s exceeds subtotal %s", saleDiscount.StringFixed(2), t.Subtotal.Sub(t.LineDiscounts).StringFixed(2)))
	}
	c.lines = lines
	c.saleDiscount = saleDiscount
	c.totals = t
	return nil
}

func normalize(l Line) (Line, error) {
	if !l.Quantity.IsPositive() {
		return l, apierror.Invalid(apierror.CodeInvalidInput, "quantity must be positive")
	}
	if l.UnitPrice.IsNegative() {
		return l, apierror.Invalid(apierror.CodeInvalidInput, "unit price must not be negative")
	}
	if l.Discount.IsNegative() {
		return l, apierror.Invalid(apierror.CodeInvalidInput, "discount must not be negative")
	}
	l.Quantity = l.Quantity.Round(3)
	l.UnitPrice = model.Round2(l.UnitPrice)
	l.Discount = model.Round2(l.Discount)
	return l, nil
}
