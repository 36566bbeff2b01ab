package service

import (
	"testing"

	"posterminal/internal/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken_Forms(t *testing.T) {
	tok, err := ParseToken("  7891000100103 ")
	require.NoError(t, err)
	assert.Equal(t, TokenCode, tok.Kind)
	assert.Equal(t, "7891000100103", tok.Code)
	assertDecimal(t, "1", tok.Quantity)

	tok, err = ParseToken("2,5*2001")
	require.NoError(t, err)
	assert.Equal(t, "2001", tok.Code)
	assertDecimal(t, "2.5", tok.Quantity)

	tok, err = ParseToken("#42")
	require.NoError(t, err)
	assert.Equal(t, TokenRecall, tok.Kind)
	assert.Equal(t, int64(42), tok.RecallNumber)
}

func TestParseToken_Rejects(t *testing.T) {
	cases := map[string]apierror.Code{
		"":       apierror.CodeNotFound,
		"#":      apierror.CodeInvalidRecallID,
		"#4a":    apierror.CodeInvalidRecallID,
		"#0":     apierror.CodeInvalidRecallID,
		"*789":   apierror.CodeInvalidMultiplier,
		"3*":     apierror.CodeInvalidMultiplier,
		"0*789":  apierror.CodeInvalidMultiplier,
		"-1*789": apierror.CodeInvalidMultiplier,
		"x*789":  apierror.CodeInvalidMultiplier,
		"2*3*4":  apierror.CodeInvalidMultiplier,
	}
	for raw, code := range cases {
		_, err := ParseToken(raw)
		e, ok := apierror.As(err)
		if assert.True(t, ok, "raw %q", raw) {
			assert.Equal(t, apierror.CategoryProductLookup, e.Category, "raw %q", raw)
			assert.Equal(t, code, e.Code, "raw %q", raw)
		}
	}
}

// Parsing the normalized form of a token yields the same token.
func TestParseToken_StringIsIdempotent(t *testing.T) {
	for _, raw := range []string{"789", "2*789", "0.5*ABC", "1,25*X1", "#7", "1*789"} {
		first, err := ParseToken(raw)
		require.NoError(t, err, raw)
		second, err := ParseToken(first.String())
		require.NoError(t, err, raw)
		assert.Equal(t, first.Kind, second.Kind, raw)
		assert.Equal(t, first.Code, second.Code, raw)
		assert.Equal(t, first.RecallNumber, second.RecallNumber, raw)
		assert.True(t, first.Quantity.Equal(second.Quantity), raw)
		assert.Equal(t, first.String(), second.String(), raw)
	}
}
