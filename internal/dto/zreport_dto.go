package dto

import (
	"posterminal/internal/model"

	"github.com/shopspring/decimal"
)

// Conference labels.
const (
	LabelEven     = "EVEN"
	LabelShortage = "SHORTAGE"
	LabelOver     = "OVER"
)

type ZConference struct {
	InitialFloat  decimal.Decimal `json:"initial_float"`
	CashFromSales decimal.Decimal `json:"cash_from_sales"`
	Drops         decimal.Decimal `json:"drops"`
	Infusions     decimal.Decimal `json:"infusions"`
	Expected      decimal.Decimal `json:"expected"`
	// Counted and Difference stay nil until the session is counted.
	Counted    *decimal.Decimal `json:"counted"`
	Difference *decimal.Decimal `json:"difference"`
	Label      string           `json:"label,omitempty"`
}

type ZSynthetic struct {
	SalesCount     int             `json:"sales_count"`
	Gross          decimal.Decimal `json:"gross"`
	Discounts      decimal.Decimal `json:"discounts"`
	Net            decimal.Decimal `json:"net"`
	TenderTotals   []FormAmount    `json:"tender_totals"`
	CanceledCount  int             `json:"canceled_count"`
	CanceledTotal  decimal.Decimal `json:"canceled_total"`
	Conference     ZConference     `json:"conference"`
	ExpectedByForm []FormAmount    `json:"expected_by_form"`
}

type ZAnalyticRow struct {
	SaleID       string             `json:"sale_id"`
	SaleNumber   int64              `json:"sale_number"`
	Time         string             `json:"time"`
	DocumentKind model.DocumentKind `json:"document_kind"`
	Status       model.SaleStatus   `json:"status"`
	Gross        decimal.Decimal    `json:"gross"`
	Discounts    decimal.Decimal    `json:"discounts"`
	Net          decimal.Decimal    `json:"net"`
	// Highlight marks rows the shell renders in the canceled color.
	Highlight bool `json:"highlight"`
}

type ZReport struct {
	SessionID   string         `json:"session_id"`
	Terminal    string         `json:"terminal"`
	Operator    string         `json:"operator"`
	OpenedAt    string         `json:"opened_at"`
	GeneratedAt string         `json:"generated_at"`
	Synthetic   ZSynthetic     `json:"synthetic"`
	Analytic    []ZAnalyticRow `json:"analytic"`
}
