package dto

import (
	"posterminal/internal/model"

	"github.com/shopspring/decimal"
)

// FormAmounts maps each tender form to an amount.
type FormAmounts map[model.TenderForm]decimal.Decimal

// NewFormAmounts returns a map with every form present at zero.
func NewFormAmounts() FormAmounts {
	fa := make(FormAmounts, len(model.TenderForms()))
	for _, f := range model.TenderForms() {
		fa[f] = decimal.Zero
	}
	return fa
}

func (fa FormAmounts) Add(f model.TenderForm, amount decimal.Decimal) {
	fa[f] = fa[f].Add(amount)
}

func (fa FormAmounts) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range fa {
		sum = sum.Add(v)
	}
	return sum
}

// FormAmount is one row of a FormAmounts in report order.
type FormAmount struct {
	Form   model.TenderForm `json:"form"`
	Amount decimal.Decimal  `json:"amount"`
}

// Ordered lists the amounts in report order, two-digit rounded.
func (fa FormAmounts) Ordered() []FormAmount {
	out := make([]FormAmount, 0, len(model.TenderForms()))
	for _, f := range model.TenderForms() {
		out = append(out, FormAmount{Form: f, Amount: model.Round2(fa[f])})
	}
	return out
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenCashRequest struct {
	InitialFloat decimal.Decimal        `json:"initial_float" validate:"min=0"`
	Supervisor   *SupervisorCredentials `json:"supervisor"`
}

type MovementRequest struct {
	Kind       model.MovementKind     `json:"kind"   validate:"required,oneof=DROP INFUSION"`
	Amount     decimal.Decimal        `json:"amount" validate:"required,gt=0"`
	Reason     string                 `json:"reason"`
	Supervisor *SupervisorCredentials `json:"supervisor"`
}

type CloseCashRequest struct {
	Counted    map[string]decimal.Decimal `json:"counted" validate:"required"`
	Supervisor *SupervisorCredentials     `json:"supervisor"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessionResponse struct {
	ID           string          `json:"id"`
	TerminalID   string          `json:"terminal_id"`
	OperatorID   string          `json:"operator_id"`
	InitialFloat decimal.Decimal `json:"initial_float"`
	Status       string          `json:"status"`
	OpenedAt     string          `json:"opened_at"`
	ClosedAt     *string         `json:"closed_at"`
	AuthorizerID *string         `json:"authorizer_id"`
}

type MovementResponse struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	AuthorizerID *string         `json:"authorizer_id"`
	CreatedAt    string          `json:"created_at"`
}

// ExpectedTotals is the snapshot the close and the Z-report are built from.
type ExpectedTotals struct {
	InitialFloat  decimal.Decimal `json:"initial_float"`
	CashFromSales decimal.Decimal `json:"cash_from_sales"`
	Drops         decimal.Decimal `json:"drops"`
	Infusions     decimal.Decimal `json:"infusions"`
	ByForm        FormAmounts     `json:"by_form"`
	Total         decimal.Decimal `json:"total"`
}

type LedgerEntryResponse struct {
	Form           model.TenderForm `json:"form"`
	Amount         decimal.Decimal  `json:"amount"`
	TillAccount    string           `json:"till_account_id"`
	Destination    string           `json:"destination_account_id"`
	TillLeg        decimal.Decimal  `json:"till_leg"`
	DestinationLeg decimal.Decimal  `json:"destination_leg"`
}

type CloseResponse struct {
	SessionID    string                `json:"session_id"`
	Expected     []FormAmount          `json:"expected"`
	Counted      []FormAmount          `json:"counted"`
	Difference   decimal.Decimal       `json:"difference"`
	Label        string                `json:"label"` // EVEN | SHORTAGE | OVER
	TitleID      string                `json:"title_id"`
	Entries      []LedgerEntryResponse `json:"entries"`
	AuthorizerID *string               `json:"authorizer_id"`
	ZReport      *ZReport              `json:"z_report"`
	Warnings     []string              `json:"warnings,omitempty"`
}
