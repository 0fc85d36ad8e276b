package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func datePtr(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestComputeNet(t *testing.T) {
	jan5 := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	jan20 := time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		in            NetInput
		wantSubtotal  string
		wantDiscount  string
		wantSurcharge string
		wantNet       string
	}{
		{
			name: "discount applies within conditions and vigency",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 2,
				DiscountPct: 10, DiscountMethods: []string{"efectivo"},
				DiscountValidUntil: datePtr(2026, time.January, 31),
				Method:             "efectivo", ReferenceDate: jan5,
			},
			wantSubtotal: "200", wantDiscount: "20", wantSurcharge: "0", wantNet: "180",
		},
		{
			name: "discount skipped for ineligible method",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 2,
				DiscountPct: 10, DiscountMethods: []string{"efectivo"},
				Method: "tarjeta", ReferenceDate: jan5,
			},
			wantSubtotal: "200", wantDiscount: "0", wantSurcharge: "0", wantNet: "200",
		},
		{
			name: "empty condition list means any method",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 1,
				DiscountPct: 10,
				Method:      "tarjeta", ReferenceDate: jan5,
			},
			wantSubtotal: "100", wantDiscount: "10", wantSurcharge: "0", wantNet: "90",
		},
		{
			name: "discount skipped past vigency",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 1,
				DiscountPct:        10,
				DiscountValidUntil: datePtr(2026, time.January, 10),
				Method:             "efectivo", ReferenceDate: jan20,
			},
			wantSubtotal: "100", wantDiscount: "0", wantSurcharge: "0", wantNet: "100",
		},
		{
			name: "vigency boundary day still counts",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 1,
				DiscountPct:        10,
				DiscountValidUntil: datePtr(2026, time.January, 5),
				Method:             "efectivo", ReferenceDate: jan5,
			},
			wantSubtotal: "100", wantDiscount: "10", wantSurcharge: "0", wantNet: "90",
		},
		{
			name: "surcharge after cutoff day",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 1,
				SurchargePct: 5, SurchargeDayCut: 10,
				Method: "efectivo", ReferenceDate: jan20,
			},
			wantSubtotal: "100", wantDiscount: "0", wantSurcharge: "5", wantNet: "105",
		},
		{
			name: "no surcharge on cutoff day itself",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 1,
				SurchargePct: 5, SurchargeDayCut: 20,
				Method: "efectivo", ReferenceDate: jan20,
			},
			wantSubtotal: "100", wantDiscount: "0", wantSurcharge: "0", wantNet: "100",
		},
		{
			name: "no surcharge without cutoff",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 1,
				SurchargePct: 5, SurchargeDayCut: 0,
				Method: "efectivo", ReferenceDate: jan20,
			},
			wantSubtotal: "100", wantDiscount: "0", wantSurcharge: "0", wantNet: "100",
		},
		{
			name: "surcharge computed on post-discount base",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 2,
				DiscountPct:  10,
				SurchargePct: 5, SurchargeDayCut: 10,
				Method: "efectivo", ReferenceDate: jan20,
			},
			wantSubtotal: "200", wantDiscount: "20", wantSurcharge: "9", wantNet: "189",
		},
		{
			name: "surcharge on raw subtotal when selected",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 2,
				DiscountPct:  10,
				SurchargePct: 5, SurchargeDayCut: 10,
				Method: "efectivo", ReferenceDate: jan20,
				SurchargeBase: SurchargeOnSubtotal,
			},
			wantSubtotal: "200", wantDiscount: "20", wantSurcharge: "10", wantNet: "190",
		},
		{
			name: "zero quantity treated as one",
			in: NetInput{
				UnitPrice: d("150"), Quantity: 0,
				Method: "efectivo", ReferenceDate: jan5,
			},
			wantSubtotal: "150", wantDiscount: "0", wantSurcharge: "0", wantNet: "150",
		},
		{
			name: "method alias matches condition",
			in: NetInput{
				UnitPrice: d("100"), Quantity: 1,
				DiscountPct: 10, DiscountMethods: []string{"efectivo"},
				Method: "CASH", ReferenceDate: jan5,
			},
			wantSubtotal: "100", wantDiscount: "10", wantSurcharge: "0", wantNet: "90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNet(tt.in)
			if !got.Subtotal.Equal(d(tt.wantSubtotal)) {
				t.Errorf("Subtotal = %s, want %s", got.Subtotal, tt.wantSubtotal)
			}
			if !got.Discount.Equal(d(tt.wantDiscount)) {
				t.Errorf("Discount = %s, want %s", got.Discount, tt.wantDiscount)
			}
			if !got.Surcharge.Equal(d(tt.wantSurcharge)) {
				t.Errorf("Surcharge = %s, want %s", got.Surcharge, tt.wantSurcharge)
			}
			if !got.Net.Equal(d(tt.wantNet)) {
				t.Errorf("Net = %s, want %s", got.Net, tt.wantNet)
			}
		})
	}
}

func TestSettlementAdjustment(t *testing.T) {
	tests := []struct {
		name          string
		original      string
		target        string
		wantDiscount  string
		wantSurcharge string
	}{
		{"target below original is a discount", "1000", "900", "100", "0"},
		{"target above original is a surcharge", "1000", "1050", "0", "50"},
		{"equal means no adjustment", "1000", "1000", "0", "0"},
		{"cent-level difference", "100.10", "100.05", "0.05", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discount, surcharge := SettlementAdjustment(d(tt.original), d(tt.target))
			if !discount.Equal(d(tt.wantDiscount)) {
				t.Errorf("discount = %s, want %s", discount, tt.wantDiscount)
			}
			if !surcharge.Equal(d(tt.wantSurcharge)) {
				t.Errorf("surcharge = %s, want %s", surcharge, tt.wantSurcharge)
			}
			if discount.IsPositive() && surcharge.IsPositive() {
				t.Error("discount and surcharge must not both be positive")
			}
		})
	}
}
