package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
	"github.com/GualbertoOm/Ballet/internal/models"
)

func fptr(v float64) *float64 { return &v }

func dptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func tptr(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSettlementTarget(t *testing.T) {
	feb10 := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		plan    models.Plan
		refDate time.Time
		want    string
	}{
		{
			name: "discount within vigency",
			plan: models.Plan{
				OriginalTotal:         d("1000"),
				ApplyDiscountOnSettle: true,
				DiscountPct:           fptr(10),
				ValidUntil:            tptr(2026, time.February, 28),
			},
			refDate: feb10,
			want:    "900",
		},
		{
			name: "discount capped at max",
			plan: models.Plan{
				OriginalTotal:         d("1000"),
				ApplyDiscountOnSettle: true,
				DiscountPct:           fptr(10),
				MaxDiscount:           dptr("50"),
			},
			refDate: feb10,
			want:    "950",
		},
		{
			name: "expired vigency falls through to surcharge",
			plan: models.Plan{
				OriginalTotal:         d("1000"),
				ApplyDiscountOnSettle: true,
				DiscountPct:           fptr(10),
				ValidUntil:            tptr(2026, time.January, 31),
				SurchargePct:          fptr(5),
			},
			refDate: feb10,
			want:    "1050",
		},
		{
			name: "vigency not started yet",
			plan: models.Plan{
				OriginalTotal:         d("1000"),
				ApplyDiscountOnSettle: true,
				DiscountPct:           fptr(10),
				ValidFrom:             tptr(2026, time.March, 1),
			},
			refDate: feb10,
			want:    "1000",
		},
		{
			name: "discount disabled on settle",
			plan: models.Plan{
				OriginalTotal:         d("1000"),
				ApplyDiscountOnSettle: false,
				DiscountPct:           fptr(10),
			},
			refDate: feb10,
			want:    "1000",
		},
		{
			name: "percentage plus fixed surcharge",
			plan: models.Plan{
				OriginalTotal:  d("1000"),
				SurchargePct:   fptr(5),
				FixedSurcharge: dptr("25"),
			},
			refDate: feb10,
			want:    "1075",
		},
		{
			name:    "no policy means original total",
			plan:    models.Plan{OriginalTotal: d("1000")},
			refDate: feb10,
			want:    "1000",
		},
		{
			name: "vigency boundary day still discounts",
			plan: models.Plan{
				OriginalTotal:         d("1000"),
				ApplyDiscountOnSettle: true,
				DiscountPct:           fptr(10),
				ValidUntil:            tptr(2026, time.February, 10),
			},
			refDate: feb10,
			want:    "900",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := SettlementTarget(&tt.plan, tt.refDate)
			if !got.Equal(d(tt.want)) {
				t.Errorf("SettlementTarget() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCapInstallment(t *testing.T) {
	tests := []struct {
		name          string
		balance       string
		requested     string
		wantEffective string
		wantAfter     string
	}{
		{"over balance caps at balance", "1000", "1500", "1000", "0"},
		{"partial payment", "1000", "400", "400", "600"},
		{"exact payoff", "600", "600", "600", "0"},
		{"cent precision", "100.05", "100.10", "100.05", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			effective, after := capInstallment(d(tt.balance), d(tt.requested))
			if !effective.Equal(d(tt.wantEffective)) {
				t.Errorf("effective = %s, want %s", effective, tt.wantEffective)
			}
			if !after.Equal(d(tt.wantAfter)) {
				t.Errorf("after = %s, want %s", after, tt.wantAfter)
			}
		})
	}
}

func TestSettlementCharge(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		target  string
		prior   string
		want    string
	}{
		{"shortfall to target", "600", "900", "400", "500"},
		{"target already covered charges balance", "600", "300", "400", "600"},
		{"shortfall capped at balance", "200", "900", "400", "200"},
		{"nothing collected yet", "1000", "1000", "0", "1000"},
		{"target equals prior charges balance", "100", "400", "400", "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := settlementCharge(d(tt.balance), d(tt.target), d(tt.prior))
			if !got.Equal(d(tt.want)) {
				t.Errorf("settlementCharge() = %s, want %s", got, tt.want)
			}
		})
	}
}

// A $1000 plan takes a $400 installment, then settles against a $900 target
// (early-payment discount): the final charge is $500, the balance lands on
// zero and the recorded adjustment is a $100 discount.
func TestInstallmentThenSettlementFlow(t *testing.T) {
	first, balance := capInstallment(d("1000"), d("400"))
	if !first.Equal(d("400")) || !balance.Equal(d("600")) {
		t.Fatalf("first installment = %s leaving %s, want 400 leaving 600", first, balance)
	}

	charge := settlementCharge(balance, d("900"), first)
	if !charge.Equal(d("500")) {
		t.Fatalf("settlement charge = %s, want 500", charge)
	}

	final, after := capInstallment(balance, charge)
	if !final.Equal(d("500")) || !after.IsZero() {
		t.Fatalf("final installment = %s leaving %s, want 500 leaving 0", final, after)
	}

	discount, surcharge := billing.SettlementAdjustment(d("1000"), d("900"))
	if !discount.Equal(d("100")) || !surcharge.IsZero() {
		t.Errorf("adjustment = (%s, %s), want (100, 0)", discount, surcharge)
	}
}

func TestSettlePlanClosedIsNoOp(t *testing.T) {
	s := &PlanService{}
	for _, state := range []string{models.PlanSettled, models.PlanCancelled} {
		plan := models.Plan{
			State:         state,
			OriginalTotal: d("1000"),
			Balance:       decimal.Zero,
		}
		inst, err := s.SettlePlan(nil, &plan, 1, d("900"), "efectivo", nil, nil, time.Now())
		if err != nil {
			t.Errorf("state %s: SettlePlan() error = %v, want nil", state, err)
		}
		if inst != nil {
			t.Errorf("state %s: expected no installment, got %v", state, inst)
		}
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"wrapped gorm duplicated key", fmt.Errorf("create plan: %w", gorm.ErrDuplicatedKey), true},
		{"postgres sqlstate", errors.New(`ERROR: duplicate key value violates unique constraint "ux_plans_open_concept" (SQLSTATE 23505)`), true},
		{"unrelated error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateKey(tt.err); got != tt.want {
				t.Errorf("isDuplicateKey(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSettlementTargetNote(t *testing.T) {
	plan := models.Plan{
		OriginalTotal:         d("1000"),
		ApplyDiscountOnSettle: true,
		DiscountPct:           fptr(10),
	}
	_, note := SettlementTarget(&plan, time.Now())
	if note == nil {
		t.Fatal("expected a rule note for an applied discount")
	}

	_, note = SettlementTarget(&models.Plan{OriginalTotal: d("1000")}, time.Now())
	if note != nil {
		t.Errorf("expected no note without policy, got %q", *note)
	}
}
