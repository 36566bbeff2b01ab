// Package payment builds the tender list of a sale against its outstanding
// balance and derives the cash change.
package payment

import (
	"fmt"
	"strings"

	"posterminal/internal/apierror"
	"posterminal/internal/model"

	"github.com/shopspring/decimal"
)

// CardMode is how the card authorization was obtained.
type CardMode string

const (
	// CardModePOS means the operator keys in the NSU and document printed by a
	// standalone card machine.
	CardModePOS CardMode = "POS"
	// CardModeTEF is integrated payment; it is not available.
	CardModeTEF CardMode = "TEF"
)

const maxInstallments = 12

// CardEntry collects the card sub-prompts in order: type, installments
// (credit only), then the authorization fields.
type CardEntry struct {
	Type         model.CardType `json:"card_type"`
	Installments int            `json:"installments"`
	Mode         CardMode       `json:"mode"`
	NSU          string         `json:"nsu"`
	Doc          string         `json:"doc"`
}

// Request is one tender as entered by the operator. A nil Amount asks the
// composer to assume the outstanding balance, which is only allowed for
// non-cash forms.
type Request struct {
	Form   model.TenderForm
	Amount *decimal.Decimal
	Card   *CardEntry
}

type Tender struct {
	Form         model.TenderForm `json:"form"`
	Amount       decimal.Decimal  `json:"amount"`
	CardType     *model.CardType  `json:"card_type,omitempty"`
	Installments *int             `json:"installments,omitempty"`
	NSU          string           `json:"nsu,omitempty"`
	Doc          string           `json:"doc,omitempty"`
}

// Composer is not safe for concurrent use.
type Composer struct {
	net     decimal.Decimal
	tenders []Tender
}

func New(net decimal.Decimal) *Composer {
	return &Composer{net: model.Round2(net)}
}

// Reset drops every tender and re-targets the composer to a new net total.
func (c *Composer) Reset(net decimal.Decimal) {
	c.net = model.Round2(net)
	c.tenders = nil
}

// Restore loads tenders that were already accepted for a prior sale.
func (c *Composer) Restore(net decimal.Decimal, tenders []Tender) {
	c.net = model.Round2(net)
	c.tenders = append([]Tender(nil), tenders...)
}

func (c *Composer) Net() decimal.Decimal { return c.net }

func (c *Composer) Tenders() []Tender {
	out := make([]Tender, len(c.tenders))
	copy(out, c.tenders)
	return out
}

func (c *Composer) Tendered() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range c.tenders {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Outstanding is net minus everything tendered; negative once cash covers
// more than the net.
func (c *Composer) Outstanding() decimal.Decimal { return c.net.Sub(c.Tendered()) }

// Change is the cash to hand back.
func (c *Composer) Change() decimal.Decimal {
	if o := c.Outstanding(); o.IsNegative() {
		return o.Neg()
	}
	return decimal.Zero
}

func (c *Composer) CanConfirm() bool { return c.Outstanding().LessThanOrEqual(model.Cent) }

// Add validates and appends a tender. On error no state changes.
func (c *Composer) Add(req Request) (Tender, error) {
	if !req.Form.Valid() {
		return Tender{}, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("unknown tender form %q", req.Form))
	}
	outstanding := c.Outstanding()
	if !outstanding.IsPositive() {
		return Tender{}, apierror.Invalid(apierror.CodeInvalidInput, "nothing left to pay")
	}

	var amount decimal.Decimal
	switch {
	case req.Amount != nil:
		amount = model.Round2(*req.Amount)
		if !amount.IsPositive() {
			return Tender{}, apierror.Invalid(apierror.CodeTenderLessThanZero, "tender amount must be positive")
		}
	case req.Form == model.FormCash:
		return Tender{}, apierror.Invalid(apierror.CodeTenderLessThanZero, "cash requires an amount")
	default:
		amount = outstanding
	}
	if req.Form != model.FormCash && amount.GreaterThan(outstanding) {
		amount = outstanding
	}

	t := Tender{Form: req.Form, Amount: amount}
	if req.Form == model.FormCard {
		if err := fillCard(&t, req.Card); err != nil {
			return Tender{}, err
		}
	}
	c.tenders = append(c.tenders, t)
	return t, nil
}

func fillCard(t *Tender, card *CardEntry) error {
	if card == nil || !card.Type.Valid() {
		return apierror.Invalid(apierror.CodeMissingPosFields, "card type is required")
	}
	ct := card.Type
	t.CardType = &ct

	if ct == model.CardCredit {
		if card.Installments < 1 || card.Installments > maxInstallments {
			return apierror.Invalid(apierror.CodeInvalidInput,
				fmt.Sprintf("installments must be between 1 and %d", maxInstallments))
		}
		n := card.Installments
		t.Installments = &n
	}

	switch card.Mode {
	case CardModeTEF:
		return apierror.NotImplementedTEF()
	case CardModePOS, "":
	default:
		return apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("unknown card mode %q", card.Mode))
	}

	t.NSU = strings.TrimSpace(card.NSU)
	t.Doc = strings.TrimSpace(card.Doc)
	if t.NSU == "" || t.Doc == "" {
		return apierror.Invalid(apierror.CodeMissingPosFields, "NSU and document are required")
	}
	return nil
}

// Remove drops the tender at index i.
func (c *Composer) Remove(i int) error {
	if i < 0 || i >= len(c.tenders) {
		return apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("tender %d does not exist", i+1))
	}
	c.tenders = append(c.tenders[:i:i], c.tenders[i+1:]...)
	return nil
}

// Confirm closes the tender list. A residual of at most one cent is absorbed by
// the last tender so that tendered minus change equals net exactly.
func (c *Composer) Confirm() ([]Tender, decimal.Decimal, error) {
	if !c.CanConfirm() {
		return nil, decimal.Zero, apierror.Invalid(apierror.CodeOutstandingBalance,
			fmt.Sprintf("outstanding balance %s", c.Outstanding().StringFixed(2)))
	}
	if residual := c.Outstanding(); residual.IsPositive() {
		if len(c.tenders) == 0 {
			return nil, decimal.Zero, apierror.Invalid(apierror.CodeOutstandingBalance,
				fmt.Sprintf("outstanding balance %s", residual.StringFixed(2)))
		}
		last := &c.tenders[len(c.tenders)-1]
		last.Amount = last.Amount.Add(residual)
	}
	return c.Tenders(), c.Change(), nil
}
