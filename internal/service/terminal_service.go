package service

import (
	"context"
	"fmt"

	"posterminal/internal/apierror"
	"posterminal/internal/model"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Binding is a validated terminal: every link the engine needs is present.
// It is built once per process and never mutated afterwards.
type Binding struct {
	Terminal        model.Terminal
	Company         model.Company
	Store           model.StoreLocation
	StoreIdentifier string
	PriceTable      model.PriceTable
	WarehouseID     uuid.UUID
	TillAccountID   uuid.UUID
	destinations    map[model.TenderForm]uuid.UUID
}

// DestinationFor returns the account a form drains into at close.
func (b *Binding) DestinationFor(form model.TenderForm) uuid.UUID {
	if id, ok := b.destinations[form]; ok {
		return id
	}
	return b.destinations[model.FormOther]
}

type TerminalService interface {
	Bind(ctx context.Context, host string) (*Binding, error)
}

type terminalService struct {
	repo repository.TerminalRepository
}

func NewTerminalService(repo repository.TerminalRepository) TerminalService {
	return &terminalService{repo: repo}
}

// ── Bind ──────────────────────────────────────────────────────────────────────
// host → unique active terminal → warehouse → till + destinations → price table.

func (s *terminalService) Bind(ctx context.Context, host string) (*Binding, error) {
	terms, err := s.repo.FindActiveByHost(ctx, host)
	if err != nil {
		return nil, persistence(err)
	}
	switch len(terms) {
	case 0:
		return nil, apierror.Binding(apierror.CodeHostUnregistered, fmt.Sprintf("no active terminal for host %q", host))
	case 1:
	default:
		return nil, apierror.Binding(apierror.CodeHostUnregistered, fmt.Sprintf("%d active terminals for host %q", len(terms), host))
	}
	t := terms[0]
	b := &Binding{Terminal: t}

	if t.DefaultWarehouseID == nil {
		return nil, apierror.Binding(apierror.CodeWarehouseMissing, "terminal has no default warehouse")
	}
	ok, err := s.repo.WarehouseExists(ctx, *t.DefaultWarehouseID)
	if err != nil {
		return nil, persistence(err)
	}
	if !ok {
		return nil, apierror.Binding(apierror.CodeWarehouseMissing, "default warehouse does not exist")
	}
	b.WarehouseID = *t.DefaultWarehouseID

	if err := s.bindAccounts(ctx, b); err != nil {
		return nil, err
	}

	company, err := s.repo.FindCompany(ctx, t.CompanyID)
	if err != nil {
		return nil, persistence(err)
	}
	store, err := s.repo.FindStoreLocation(ctx, t.StoreLocationID)
	if err != nil {
		return nil, persistence(err)
	}
	b.Company, b.Store = *company, *store
	b.StoreIdentifier = store.TaxID
	if b.StoreIdentifier == "" {
		b.StoreIdentifier = company.TaxID
	}

	tables, err := s.repo.FindActivePriceTables(ctx, b.StoreIdentifier)
	if err != nil {
		return nil, persistence(err)
	}
	switch len(tables) {
	case 0:
		return nil, apierror.Binding(apierror.CodeNoActivePriceTable,
			fmt.Sprintf("no active price table for store %s", b.StoreIdentifier))
	case 1:
	default:
		return nil, apierror.Binding(apierror.CodeNoActivePriceTable,
			fmt.Sprintf("store %s has more than one active price table", b.StoreIdentifier))
	}
	pt := &tables[0]
	b.PriceTable = *pt

	log.Info().
		Str("terminal", t.Name).
		Str("host", host).
		Str("store", b.StoreIdentifier).
		Str("price_table", pt.Name).
		Msg("terminal bound")
	return b, nil
}

func (s *terminalService) bindAccounts(ctx context.Context, b *Binding) error {
	t := b.Terminal
	links := []struct {
		form model.TenderForm
		id   *uuid.UUID
	}{
		{model.FormCash, t.DestCashID},
		{model.FormCard, t.DestCardID},
		{model.FormPix, t.DestPixID},
		{model.FormOther, t.DestOtherID},
	}
	if t.TillAccountID == nil {
		return apierror.Binding(apierror.CodeFinancialLinkMissing, "terminal has no till account")
	}
	unique := map[uuid.UUID]struct{}{*t.TillAccountID: {}}
	b.destinations = make(map[model.TenderForm]uuid.UUID, len(links)+1)
	for _, l := range links {
		if l.id == nil {
			return apierror.Binding(apierror.CodeFinancialLinkMissing,
				fmt.Sprintf("terminal has no %s destination account", l.form))
		}
		b.destinations[l.form] = *l.id
		unique[*l.id] = struct{}{}
	}
	b.destinations[model.FormVoucher] = b.destinations[model.FormOther]

	ids := make([]uuid.UUID, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}
	n, err := s.repo.CountAccounts(ctx, ids)
	if err != nil {
		return persistence(err)
	}
	if n != int64(len(ids)) {
		return apierror.Binding(apierror.CodeFinancialLinkMissing, "a linked account does not exist")
	}
	b.TillAccountID = *t.TillAccountID
	return nil
}
