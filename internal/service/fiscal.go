package service

import (
	"fmt"
	"strings"
	"time"
)

// fiscalKey builds the simulated access key of a fiscal document: issue
// month, store identifier digits, terminal and sale number. No tax authority
// is contacted.
func fiscalKey(b *Binding, number int64, at time.Time) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, b.StoreIdentifier)
	if len(digits) > 14 {
		digits = digits[:14]
	}
	digits = strings.Repeat("0", 14-len(digits)) + digits
	term := strings.ReplaceAll(b.Terminal.ID.String(), "-", "")[:6]
	return fmt.Sprintf("%s%s%s%09d", at.Format("0601"), digits, strings.ToUpper(term), number)
}

// fiscalQR is the payload encoded into the receipt's QR code.
func fiscalQR(key string) string {
	return "https://fiscal.invalid/qrcode?p=" + key + "|2|1"
}
