package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// SurchargeBase selects which amount a late surcharge is computed from.
type SurchargeBase int

const (
	// SurchargeOnPostDiscount applies the surcharge to the subtotal after
	// the discount, the default.
	SurchargeOnPostDiscount SurchargeBase = iota
	// SurchargeOnSubtotal applies it to the raw subtotal.
	SurchargeOnSubtotal
)

// NetInput carries everything needed to price a payment concept for a given
// method on a given date. The reference date is always explicit; the engine
// never reads the clock.
type NetInput struct {
	UnitPrice          decimal.Decimal
	Quantity           int
	DiscountPct        float64
	DiscountMethods    []string
	DiscountValidUntil *time.Time
	SurchargePct       float64
	SurchargeDayCut    int
	Method             string
	ReferenceDate      time.Time
	SurchargeBase      SurchargeBase
}

// NetResult is the priced breakdown of one concept line.
type NetResult struct {
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	Surcharge        decimal.Decimal
	Net              decimal.Decimal
	DiscountApplied  bool
	SurchargeApplied bool
}

// ComputeNet prices one concept line:
//
//   - discount applies when pct > 0, the method is in the condition list (or
//     the list is empty), and the reference date is within vigency;
//   - surcharge applies when pct > 0 and the reference day of month is past
//     the cutoff day;
//   - net = subtotal - discount + surcharge, every step rounded.
//
// Discount and surcharge are independent; both can apply on the same line.
func ComputeNet(in NetInput) NetResult {
	qty := in.Quantity
	if qty < 1 {
		qty = 1
	}
	subtotal := Round(in.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))

	method := NormalizeMethod(in.Method)
	condOK := len(in.DiscountMethods) == 0
	for _, m := range in.DiscountMethods {
		if method == NormalizeMethod(m) {
			condOK = true
			break
		}
	}
	refDay := dateOnly(in.ReferenceDate)
	vigencyOK := in.DiscountValidUntil == nil || !refDay.After(dateOnly(*in.DiscountValidUntil))
	applyDiscount := in.DiscountPct > 0 && condOK && vigencyOK

	var discount decimal.Decimal
	if applyDiscount {
		// Percentages are stored to 2 decimals; FromFloat keeps the
		// multiplier exact instead of inheriting binary float error.
		discount = Round(subtotal.Mul(FromFloat(in.DiscountPct)).Div(decimal.NewFromInt(100)))
	}
	afterDiscount := subtotal.Sub(discount)
	if afterDiscount.IsNegative() {
		afterDiscount = decimal.Zero
	}

	applySurcharge := in.SurchargePct > 0 && in.SurchargeDayCut > 0 &&
		in.ReferenceDate.Day() > in.SurchargeDayCut

	var surcharge decimal.Decimal
	if applySurcharge {
		base := afterDiscount
		if in.SurchargeBase == SurchargeOnSubtotal {
			base = subtotal
		}
		surcharge = Round(base.Mul(FromFloat(in.SurchargePct)).Div(decimal.NewFromInt(100)))
	}

	return NetResult{
		Subtotal:         subtotal,
		Discount:         discount,
		Surcharge:        surcharge,
		Net:              Round(afterDiscount.Add(surcharge)),
		DiscountApplied:  applyDiscount,
		SurchargeApplied: applySurcharge,
	}
}

// SettlementAdjustment computes the final adjustment recorded when a plan is
// settled: how far the policy-adjusted net landed below (discount) or above
// (surcharge) the plan's original total. At most one side is non-zero.
func SettlementAdjustment(originalTotal, targetNet decimal.Decimal) (discount, surcharge decimal.Decimal) {
	originalTotal = Round(originalTotal)
	targetNet = Round(targetNet)
	discount = decimal.Zero
	surcharge = decimal.Zero
	switch {
	case targetNet.LessThan(originalTotal):
		discount = originalTotal.Sub(targetNet)
	case targetNet.GreaterThan(originalTotal):
		surcharge = targetNet.Sub(originalTotal)
	}
	return discount, surcharge
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
