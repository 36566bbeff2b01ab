package service

import (
	"strconv"
	"strings"

	"posterminal/internal/apierror"

	"github.com/shopspring/decimal"
)

type TokenKind int

const (
	TokenCode TokenKind = iota
	TokenRecall
)

// Token is a classified scanner/keyboard input:
//
//	#42      recall sale 42 of this terminal
//	2.5*789  code 789, quantity 2.5 ("," also accepted as separator)
//	789      code 789, quantity 1
type Token struct {
	Kind         TokenKind
	Code         string
	Quantity     decimal.Decimal
	RecallNumber int64
}

var one = decimal.NewFromInt(1)

func ParseToken(raw string) (Token, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Token{}, apierror.Lookup(apierror.CodeNotFound, raw)
	}

	if strings.HasPrefix(s, "#") {
		digits := s[1:]
		if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
			return Token{}, apierror.Lookup(apierror.CodeInvalidRecallID, raw)
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n <= 0 {
			return Token{}, apierror.Lookup(apierror.CodeInvalidRecallID, raw)
		}
		return Token{Kind: TokenRecall, RecallNumber: n}, nil
	}

	if qty, code, found := strings.Cut(s, "*"); found {
		qty = strings.ReplaceAll(strings.TrimSpace(qty), ",", ".")
		code = strings.TrimSpace(code)
		if qty == "" || code == "" || strings.Contains(code, "*") {
			return Token{}, apierror.Lookup(apierror.CodeInvalidMultiplier, raw)
		}
		q, err := decimal.NewFromString(qty)
		if err != nil || !q.IsPositive() {
			return Token{}, apierror.Lookup(apierror.CodeInvalidMultiplier, raw)
		}
		return Token{Kind: TokenCode, Code: code, Quantity: q}, nil
	}

	return Token{Kind: TokenCode, Code: s, Quantity: one}, nil
}

// String renders the normalized form; parsing it yields the same token.
func (t Token) String() string {
	if t.Kind == TokenRecall {
		return "#" + strconv.FormatInt(t.RecallNumber, 10)
	}
	if t.Quantity.Equal(one) {
		return t.Code
	}
	return t.Quantity.String() + "*" + t.Code
}
