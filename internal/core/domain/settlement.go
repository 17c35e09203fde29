package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const bpsDenominator = 10000

// FeePolicy is the platform's commission on each seller's gross share.
type FeePolicy struct {
	Bps int64
}

// Fee returns the commission on gross, rounded half away from zero.
func (p FeePolicy) Fee(gross int64) int64 {
	if p.Bps <= 0 || gross <= 0 {
		return 0
	}
	return decimal.NewFromInt(gross).
		Mul(decimal.NewFromInt(p.Bps)).
		Div(decimal.NewFromInt(bpsDenominator)).
		Round(0).
		IntPart()
}

// Breakdown splits an order total across its sellers. Shipping and tax are
// apportioned by each seller's item subtotal, so the grosses sum to o.Total().
func (p FeePolicy) Breakdown(o *Order) []SellerSettlement {
	subtotals := map[uuid.UUID]int64{}
	var sellers []uuid.UUID
	for _, it := range o.Items {
		if _, seen := subtotals[it.SellerID]; !seen {
			sellers = append(sellers, it.SellerID)
		}
		subtotals[it.SellerID] += it.LineTotal()
	}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i].String() < sellers[j].String() })

	weights := make([]int64, len(sellers))
	for i, id := range sellers {
		weights[i] = subtotals[id]
	}
	extras := Allocate(o.ShippingAmount+o.TaxAmount, weights)

	out := make([]SellerSettlement, len(sellers))
	for i, id := range sellers {
		gross := subtotals[id] + extras[i]
		fee := p.Fee(gross)
		out[i] = SellerSettlement{SellerID: id, Gross: gross, Fee: fee, Net: gross - fee}
	}
	return out
}

// Allocate divides amount in proportion to weights. Shares are floored and
// the leftover minor units go to the largest weights first, so the result
// always sums to amount.
func Allocate(amount int64, weights []int64) []int64 {
	out := make([]int64, len(weights))
	if len(weights) == 0 || amount == 0 {
		return out
	}

	var total int64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		out[0] = amount
		return out
	}

	amt := decimal.NewFromInt(amount)
	tot := decimal.NewFromInt(total)
	var allocated int64
	for i, w := range weights {
		out[i] = amt.Mul(decimal.NewFromInt(w)).Div(tot).Floor().IntPart()
		allocated += out[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return weights[order[a]] > weights[order[b]] })
	for i := 0; allocated < amount; i = (i + 1) % len(order) {
		out[order[i]]++
		allocated++
	}
	return out
}

// ProportionalShare returns part/whole of amount, rounded half away from zero.
func ProportionalShare(amount, part, whole int64) int64 {
	if whole <= 0 || part <= 0 {
		return 0
	}
	if part >= whole {
		return amount
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(part)).
		Div(decimal.NewFromInt(whole)).
		Round(0).
		IntPart()
}
