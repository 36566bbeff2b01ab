package payment

import (
	"errors"
	"testing"

	"posterminal/internal/apierror"
	"posterminal/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func posCard(ct model.CardType, installments int) *CardEntry {
	return &CardEntry{Type: ct, Installments: installments, Mode: CardModePOS, NSU: "123", Doc: "9"}
}

func TestCashOverTender_ProducesChange(t *testing.T) {
	c := New(decimal.RequireFromString("21.00"))

	_, err := c.Add(Request{Form: model.FormCash, Amount: amt("25.00")})
	require.NoError(t, err)

	assert.True(t, c.CanConfirm())
	tenders, change, err := c.Confirm()
	require.NoError(t, err)
	require.Len(t, tenders, 1)
	assert.Equal(t, "25.00", tenders[0].Amount.StringFixed(2))
	assert.Equal(t, "4.00", change.StringFixed(2))
}

func TestCardOverTender_IsClamped(t *testing.T) {
	c := New(decimal.RequireFromString("50.00"))

	tender, err := c.Add(Request{Form: model.FormCard, Amount: amt("80.00"), Card: posCard(model.CardDebit, 0)})
	require.NoError(t, err)

	assert.Equal(t, "50.00", tender.Amount.StringFixed(2))
	assert.Nil(t, tender.Installments)
	assert.True(t, c.Change().IsZero())
}

func TestNonCashWithoutAmount_AssumesOutstanding(t *testing.T) {
	c := New(decimal.RequireFromString("100.00"))
	_, err := c.Add(Request{Form: model.FormCash, Amount: amt("30.00")})
	require.NoError(t, err)

	tender, err := c.Add(Request{Form: model.FormPix})
	require.NoError(t, err)
	assert.Equal(t, "70.00", tender.Amount.StringFixed(2))
	assert.True(t, c.Outstanding().IsZero())
}

func TestCashWithoutAmount_Rejected(t *testing.T) {
	c := New(decimal.RequireFromString("10.00"))
	_, err := c.Add(Request{Form: model.FormCash})
	assert.True(t, errors.Is(err, apierror.ErrTenderLessThanZero))

	_, err = c.Add(Request{Form: model.FormVoucher, Amount: amt("-1")})
	assert.True(t, errors.Is(err, apierror.ErrTenderLessThanZero))
	assert.Empty(t, c.Tenders())
}

func TestMixedCashAndCredit(t *testing.T) {
	c := New(decimal.RequireFromString("100.00"))
	_, err := c.Add(Request{Form: model.FormCash, Amount: amt("30.00")})
	require.NoError(t, err)
	_, err = c.Add(Request{Form: model.FormCard, Amount: amt("70.00"), Card: posCard(model.CardCredit, 3)})
	require.NoError(t, err)

	tenders, change, err := c.Confirm()
	require.NoError(t, err)
	assert.True(t, change.IsZero())
	card := tenders[1]
	assert.Equal(t, model.CardCredit, *card.CardType)
	assert.Equal(t, 3, *card.Installments)
	assert.Equal(t, "123", card.NSU)
	assert.Equal(t, "9", card.Doc)
}

func TestCard_SubPromptValidation(t *testing.T) {
	c := New(decimal.RequireFromString("10.00"))

	_, err := c.Add(Request{Form: model.FormCard})
	assert.True(t, errors.Is(err, apierror.ErrMissingPosFields))

	_, err = c.Add(Request{Form: model.FormCard, Card: posCard(model.CardCredit, 13)})
	assert.True(t, errors.Is(err, apierror.ErrInvalidInput))

	_, err = c.Add(Request{Form: model.FormCard, Card: &CardEntry{Type: model.CardDebit, Mode: CardModePOS, NSU: " ", Doc: "9"}})
	assert.True(t, errors.Is(err, apierror.ErrMissingPosFields))

	assert.Empty(t, c.Tenders())
}

func TestCard_TEFNotImplemented(t *testing.T) {
	c := New(decimal.RequireFromString("10.00"))
	_, err := c.Add(Request{Form: model.FormCard, Card: &CardEntry{Type: model.CardDebit, Mode: CardModeTEF}})

	assert.True(t, errors.Is(err, apierror.ErrNotImplemented))
	assert.Empty(t, c.Tenders())
	assert.Equal(t, "10.00", c.Outstanding().StringFixed(2))
}

func TestConfirm_OutstandingBoundary(t *testing.T) {
	c := New(decimal.RequireFromString("10.00"))
	_, err := c.Add(Request{Form: model.FormCash, Amount: amt("9.98")})
	require.NoError(t, err)
	assert.False(t, c.CanConfirm())
	_, _, err = c.Confirm()
	assert.True(t, errors.Is(err, apierror.ErrOutstandingBalance))

	c.Reset(decimal.RequireFromString("10.00"))
	_, err = c.Add(Request{Form: model.FormCash, Amount: amt("9.99")})
	require.NoError(t, err)
	assert.True(t, c.CanConfirm())

	tenders, change, err := c.Confirm()
	require.NoError(t, err)
	assert.Equal(t, "10.00", tenders[0].Amount.StringFixed(2))
	assert.True(t, change.IsZero())
}

func TestAdd_NothingOutstanding(t *testing.T) {
	c := New(decimal.RequireFromString("5.00"))
	_, err := c.Add(Request{Form: model.FormCash, Amount: amt("5.00")})
	require.NoError(t, err)

	_, err = c.Add(Request{Form: model.FormOther})
	assert.True(t, errors.Is(err, apierror.ErrInvalidInput))
}

func TestRemove(t *testing.T) {
	c := New(decimal.RequireFromString("5.00"))
	_, _ = c.Add(Request{Form: model.FormCash, Amount: amt("2.00")})
	_, _ = c.Add(Request{Form: model.FormPix})

	require.NoError(t, c.Remove(0))
	require.Len(t, c.Tenders(), 1)
	assert.Equal(t, model.FormPix, c.Tenders()[0].Form)
	assert.Error(t, c.Remove(5))
}
