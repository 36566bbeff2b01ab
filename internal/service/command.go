package service

import (
	"context"
	"fmt"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommandName is one of the shell's function-key commands.
type CommandName string

const (
	CmdOpenCash        CommandName = "open_cash"
	CmdCloseCash       CommandName = "close_cash"
	CmdSearchProduct   CommandName = "search_product"
	CmdDeleteLine      CommandName = "delete_line"
	CmdFunctions       CommandName = "functions"
	CmdCancelCurrent   CommandName = "cancel_current"
	CmdFinalize        CommandName = "finalize"
	CmdCancelFinalized CommandName = "cancel_finalized"
	CmdToggleMenu      CommandName = "toggle_menu"
)

var commandOrder = []CommandName{
	CmdOpenCash,
	CmdCloseCash,
	CmdSearchProduct,
	CmdDeleteLine,
	CmdFunctions,
	CmdCancelCurrent,
	CmdFinalize,
	CmdCancelFinalized,
	CmdToggleMenu,
}

var commandKeys = map[CommandName]model.PermissionKey{
	CmdOpenCash:        model.PermOpenCash,
	CmdCloseCash:       model.PermCloseCash,
	CmdSearchProduct:   "",
	CmdDeleteLine:      model.PermDeleteLine,
	CmdFunctions:       "",
	CmdCancelCurrent:   model.PermCancelCurrent,
	CmdFinalize:        "",
	CmdCancelFinalized: model.PermCancelFinalized,
	CmdToggleMenu:      "",
}

// Command carries the arguments of a dispatched command; each command reads
// only the fields it needs.
type Command struct {
	Name         CommandName
	Token        string
	Index        int
	Amount       decimal.Decimal
	Counted      dto.FormAmounts
	DocumentKind model.DocumentKind
	SaleID       uuid.UUID
	Motive       string
	Escalate     Escalator
}

// Dispatch runs a command by name and returns its result record.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) (interface{}, error) {
	switch cmd.Name {
	case CmdOpenCash:
		return e.OpenCash(ctx, cmd.Amount, cmd.Escalate)
	case CmdCloseCash:
		return e.CloseCash(ctx, cmd.Counted, cmd.Escalate)
	case CmdSearchProduct:
		return e.SearchProduct(ctx, cmd.Token)
	case CmdDeleteLine:
		return e.DeleteLine(ctx, cmd.Index, cmd.Escalate)
	case CmdFunctions:
		return e.Functions(), nil
	case CmdCancelCurrent:
		return e.CancelCurrent(ctx, cmd.Escalate)
	case CmdFinalize:
		return e.Finalize(ctx, cmd.DocumentKind, cmd.Escalate)
	case CmdCancelFinalized:
		return e.CancelFinalized(ctx, cmd.SaleID, cmd.Motive, cmd.Escalate)
	case CmdToggleMenu:
		return e.ToggleMenu(), nil
	default:
		return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("unknown command %q", cmd.Name))
	}
}
