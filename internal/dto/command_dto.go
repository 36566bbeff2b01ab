package dto

import "github.com/shopspring/decimal"

// CommandRequest dispatches one function-key command by name. Each command
// reads only the fields it needs.
type CommandRequest struct {
	Command      string                     `json:"command" validate:"required,oneof=open_cash close_cash search_product delete_line functions cancel_current finalize cancel_finalized toggle_menu"`
	Token        string                     `json:"token"`
	Index        int                        `json:"index"   validate:"min=0"`
	Amount       decimal.Decimal            `json:"amount"  validate:"min=0"`
	Counted      map[string]decimal.Decimal `json:"counted"`
	DocumentKind string                     `json:"document_kind" validate:"omitempty,oneof=FISCAL NON_FISCAL"`
	SaleID       string                     `json:"sale_id" validate:"omitempty,uuid"`
	Motive       string                     `json:"motive"`
	Supervisor   *SupervisorCredentials     `json:"supervisor"`
}

type CommandResponse struct {
	Command string      `json:"command"`
	Result  interface{} `json:"result"`
}
