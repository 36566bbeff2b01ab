package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=4"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SupervisorCredentials answers an escalation prompt. Privileged requests may
// carry it; when it is missing the engine reports EscalationAborted with the
// key so the shell can prompt and retry.
type SupervisorCredentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OperatorResponse struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	Name               string `json:"name"`
	MaxDiscountPercent string `json:"max_discount_percent"`
}

type LoginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"` // seconds
	Operator     OperatorResponse `json:"operator"`
	Terminal     string           `json:"terminal"`
	SessionID    *string          `json:"session_id"`
}
