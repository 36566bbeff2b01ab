package infra

import (
	"os"
	"strings"
)

// Hostname is the name the terminal binding looks up. override wins when set.
func Hostname(override string) (string, error) {
	if h := strings.TrimSpace(override); h != "" {
		return h, nil
	}
	h, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(h), nil
}
