package model

import "strings"

// SessionStatus: OPEN → CLOSED (terminal).
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// SaleStatus: FINALIZED → CANCELED (terminal).
type SaleStatus string

const (
	SaleFinalized SaleStatus = "FINALIZED"
	SaleCanceled  SaleStatus = "CANCELED"
)

type DocumentKind string

const (
	DocumentFiscal    DocumentKind = "FISCAL"
	DocumentNonFiscal DocumentKind = "NON_FISCAL"
)

func (k DocumentKind) Valid() bool {
	return k == DocumentFiscal || k == DocumentNonFiscal
}

type TenderForm string

const (
	FormCash    TenderForm = "CASH"
	FormCard    TenderForm = "CARD"
	FormVoucher TenderForm = "VOUCHER"
	FormPix     TenderForm = "PIX"
	FormOther   TenderForm = "OTHER"
)

// TenderForms lists every form in report order.
func TenderForms() []TenderForm {
	return []TenderForm{FormCash, FormCard, FormPix, FormVoucher, FormOther}
}

// ParseTenderForm maps a stored value to a known form. Unknown values are
// reported with ok=false so callers can fold them into FormOther.
func ParseTenderForm(s string) (TenderForm, bool) {
	f := TenderForm(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FormCash, FormCard, FormVoucher, FormPix, FormOther:
		return f, true
	}
	return FormOther, false
}

func (f TenderForm) Valid() bool {
	switch f {
	case FormCash, FormCard, FormVoucher, FormPix, FormOther:
		return true
	}
	return false
}

type CardType string

const (
	CardDebit  CardType = "DEBIT"
	CardCredit CardType = "CREDIT"
)

func (c CardType) Valid() bool { return c == CardDebit || c == CardCredit }

type MovementKind string

const (
	MovementDrop     MovementKind = "DROP"
	MovementInfusion MovementKind = "INFUSION"
)

func (k MovementKind) Valid() bool { return k == MovementDrop || k == MovementInfusion }

type CodeKind string

const (
	CodeAlternative CodeKind = "ALTERNATIVE"
	CodeScan        CodeKind = "SCAN"
)

type LegDirection string

const (
	LegIn  LegDirection = "IN"
	LegOut LegDirection = "OUT"
)

type TitleStatus string

const TitlePaid TitleStatus = "PAID"

type TitleKind string

const TitleReceivable TitleKind = "RECEIVABLE"
