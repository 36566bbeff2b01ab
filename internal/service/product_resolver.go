package service

import (
	"context"
	"fmt"

	"posterminal/internal/apierror"
	"posterminal/internal/cart"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PriceCache is an optional read-through cache for price checks.
type PriceCache interface {
	Get(ctx context.Context, key string) (*dto.PriceCheckResponse, bool)
	Set(ctx context.Context, key string, v *dto.PriceCheckResponse)
}

// Resolution is either a priced line or a recalled sale.
type Resolution struct {
	Token  Token
	Line   *cart.Line
	Recall *model.Sale
}

type ProductResolver interface {
	Resolve(ctx context.Context, b *Binding, raw string) (*Resolution, error)
	// PriceCheck prices a code token without touching any cart.
	PriceCheck(ctx context.Context, b *Binding, raw string) (*dto.PriceCheckResponse, error)
}

type productResolver struct {
	products repository.ProductRepository
	sales    repository.SaleRepository
	cache    PriceCache
}

// NewProductResolver accepts a nil cache.
func NewProductResolver(products repository.ProductRepository, sales repository.SaleRepository, cache PriceCache) ProductResolver {
	return &productResolver{products: products, sales: sales, cache: cache}
}

func (r *productResolver) Resolve(ctx context.Context, b *Binding, raw string) (*Resolution, error) {
	tok, err := ParseToken(raw)
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokenRecall {
		sale, err := r.recall(ctx, b, tok)
		if err != nil {
			return nil, err
		}
		return &Resolution{Token: tok, Recall: sale}, nil
	}

	p, price, err := r.lookup(ctx, b, tok.Code)
	if err != nil {
		return nil, err
	}
	return &Resolution{Token: tok, Line: &cart.Line{
		ProductID:   p.ID,
		Code:        tok.Code,
		Description: p.Description,
		Unit:        p.Unit,
		Quantity:    tok.Quantity,
		UnitPrice:   price,
	}}, nil
}

func (r *productResolver) PriceCheck(ctx context.Context, b *Binding, raw string) (*dto.PriceCheckResponse, error) {
	tok, err := ParseToken(raw)
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokenRecall {
		return nil, apierror.Lookup(apierror.CodeInvalidRecallID, raw)
	}

	key := fmt.Sprintf("price:%s:%s", b.PriceTable.ID, tok.Code)
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, key); ok {
			return withQuantity(cached, tok.Quantity, true), nil
		}
	}

	p, price, err := r.lookup(ctx, b, tok.Code)
	if err != nil {
		return nil, err
	}
	resp := &dto.PriceCheckResponse{
		ProductID:   p.ID.String(),
		Code:        tok.Code,
		Description: p.Description,
		Unit:        p.Unit,
		UnitPrice:   price,
	}
	if r.cache != nil {
		r.cache.Set(ctx, key, resp)
	}
	return withQuantity(resp, tok.Quantity, false), nil
}

func withQuantity(base *dto.PriceCheckResponse, qty decimal.Decimal, cached bool) *dto.PriceCheckResponse {
	out := *base
	out.Quantity = qty
	out.Total = model.Round2(out.UnitPrice.Mul(qty))
	out.Cached = cached
	return &out
}

// lookup tries the primary code, then alternative codes, then scan codes, and
// requires a price of at least one cent in the bound table.
func (r *productResolver) lookup(ctx context.Context, b *Binding, code string) (*model.Product, decimal.Decimal, error) {
	p, err := r.products.FindActiveByCode(ctx, code)
	if isNotFound(err) {
		p, err = r.products.FindActiveByCodeKind(ctx, code, model.CodeAlternative)
	}
	if isNotFound(err) {
		p, err = r.products.FindActiveByCodeKind(ctx, code, model.CodeScan)
	}
	if isNotFound(err) {
		return nil, decimal.Zero, apierror.Lookup(apierror.CodeNotFound, code)
	}
	if err != nil {
		return nil, decimal.Zero, persistence(err)
	}

	price, ok, err := r.products.UnitPrice(ctx, b.PriceTable.ID, p.ID)
	if err != nil {
		return nil, decimal.Zero, persistence(err)
	}
	if !ok || price.LessThan(model.Cent) {
		log.Debug().Str("code", code).Str("price_table", b.PriceTable.Name).Msg("product has no price")
		return nil, decimal.Zero, apierror.Lookup(apierror.CodeNoPrice, code)
	}
	return p, price, nil
}

// recall finds a finalized non-fiscal sale of this terminal.
func (r *productResolver) recall(ctx context.Context, b *Binding, tok Token) (*model.Sale, error) {
	sale, err := r.sales.FindByNumber(ctx, b.Terminal.ID, tok.RecallNumber)
	if isNotFound(err) {
		return nil, apierror.Lookup(apierror.CodeNotFound, tok.String())
	}
	if err != nil {
		return nil, persistence(err)
	}
	if sale.Status != model.SaleFinalized || sale.DocumentKind != model.DocumentNonFiscal {
		return nil, apierror.Lookup(apierror.CodeInvalidRecallID,
			fmt.Sprintf("%s is %s %s", tok.String(), sale.Status, sale.DocumentKind))
	}
	return sale, nil
}
