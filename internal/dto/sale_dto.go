package dto

import (
	"posterminal/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ScanRequest struct {
	Token      string                 `json:"token" validate:"required"`
	Supervisor *SupervisorCredentials `json:"supervisor"`
}

// DiscountRequest carries either an absolute amount or a percentage.
type DiscountRequest struct {
	Amount     *decimal.Decimal       `json:"amount"  validate:"omitempty,min=0"`
	Percent    *decimal.Decimal       `json:"percent" validate:"omitempty,min=0,max=100"`
	Supervisor *SupervisorCredentials `json:"supervisor"`
}

type CustomerRequest struct {
	CustomerID *string `json:"customer_id" validate:"omitempty,uuid"`
}

type CardRequest struct {
	Type         string `json:"card_type"    validate:"required,oneof=DEBIT CREDIT"`
	Installments int    `json:"installments" validate:"min=0,max=12"`
	Mode         string `json:"mode"         validate:"omitempty,oneof=POS TEF"`
	NSU          string `json:"nsu"`
	Doc          string `json:"doc"`
}

type TenderRequest struct {
	Form   string           `json:"form"   validate:"required,oneof=CASH CARD VOUCHER PIX OTHER"`
	Amount *decimal.Decimal `json:"amount"`
	Card   *CardRequest     `json:"card"`
}

type FinalizeRequest struct {
	DocumentKind string                 `json:"document_kind" validate:"omitempty,oneof=FISCAL NON_FISCAL"`
	Supervisor   *SupervisorCredentials `json:"supervisor"`
}

type CancelSaleRequest struct {
	Motive     string                 `json:"motive" validate:"required,min=3"`
	Supervisor *SupervisorCredentials `json:"supervisor"`
}

type SupervisorOnlyRequest struct {
	Supervisor *SupervisorCredentials `json:"supervisor"`
}

// ─── Receipt payloads ────────────────────────────────────────────────────────
// Receipts are snapshots taken at commit: the printer never reads the store.

type ReceiptLine struct {
	Position    int             `json:"position"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

type ReceiptTender struct {
	Form         model.TenderForm `json:"form"`
	Amount       decimal.Decimal  `json:"amount"`
	CardType     *model.CardType  `json:"card_type,omitempty"`
	Installments *int             `json:"installments,omitempty"`
	NSU          string           `json:"nsu,omitempty"`
	Doc          string           `json:"doc,omitempty"`
}

type Receipt struct {
	SaleID       string             `json:"sale_id"`
	Company      string             `json:"company"`
	CompanyTaxID string             `json:"company_tax_id"`
	Store        string             `json:"store"`
	Terminal     string             `json:"terminal"`
	PrinterName  string             `json:"printer_name,omitempty"`
	Operator     string             `json:"operator"`
	Customer     string             `json:"customer,omitempty"`
	SaleNumber   int64              `json:"sale_number"`
	Lines        []ReceiptLine      `json:"sale_lines"`
	Tenders      []ReceiptTender    `json:"tenders"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	Discounts    decimal.Decimal    `json:"discounts"`
	Net          decimal.Decimal    `json:"net"`
	Change       decimal.Decimal    `json:"change"`
	DocumentKind model.DocumentKind `json:"document_kind"`
	FiscalKey    string             `json:"fiscal_key,omitempty"`
	FiscalQR     string             `json:"fiscal_qr,omitempty"`
	Timestamp    string             `json:"timestamp"`
}

type CancellationReceipt struct {
	Receipt
	Motive     string `json:"motive"`
	CanceledAt string `json:"canceled_at"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CartLineResponse struct {
	Index       int             `json:"index"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// EngineState is what the shell redraws after every command.
type EngineState struct {
	Terminal      string             `json:"terminal"`
	Operator      string             `json:"operator"`
	SessionID     *string            `json:"session_id"`
	Lines         []CartLineResponse `json:"lines"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	LineDiscounts decimal.Decimal    `json:"line_discount_total"`
	SaleDiscount  decimal.Decimal    `json:"sale_discount"`
	Net           decimal.Decimal    `json:"net_total"`
	Tenders       []ReceiptTender    `json:"tenders"`
	Outstanding   decimal.Decimal    `json:"outstanding"`
	Change        decimal.Decimal    `json:"change"`
	CanConfirm    bool               `json:"can_confirm"`
	CustomerID    *string            `json:"customer_id"`
	RecallNumber  *int64             `json:"recall_number"`
	MenuOpen      bool               `json:"menu_open"`
	Notice        string             `json:"notice,omitempty"`
}

type PriceCheckResponse struct {
	ProductID   string          `json:"product_id"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	Cached      bool            `json:"cached"`
}

type FinalizeResponse struct {
	Receipt  *Receipt `json:"receipt"`
	Warnings []string `json:"warnings,omitempty"`
}

type CancelSaleResponse struct {
	Receipt  *CancellationReceipt `json:"receipt"`
	Warnings []string             `json:"warnings,omitempty"`
}

type FunctionEntry struct {
	Command string `json:"command"`
	Key     string `json:"key,omitempty"`
	Granted bool   `json:"granted"`
}
