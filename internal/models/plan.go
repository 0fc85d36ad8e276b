package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemKind identifies which catalog item a plan finances.
type ItemKind string

const (
	ItemArticle ItemKind = "articulo"
	ItemPackage ItemKind = "paquete"
	ItemConcept ItemKind = "pago"
)

// Plan states.
const (
	PlanOpen      = "abierto"
	PlanSettled   = "liquidado"
	PlanCancelled = "cancelado"
)

// Plan is an open installment balance against exactly one catalog item for
// one student. The unit price is snapshotted at creation; installments
// decrement the balance; the discount/surcharge policy copied from the
// concept is evaluated only at settlement, against the original total.
//
// The partial unique indexes guarantee at most one open plan per
// (student, item) pair, so concurrent find-or-create submissions converge
// on the same row instead of racing into duplicates.
type Plan struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	StudentID uint `gorm:"not null;index:ix_plans_student_state,priority:1;uniqueIndex:ux_plans_open_article,priority:1,where:state = 'abierto';uniqueIndex:ux_plans_open_package,priority:1,where:state = 'abierto';uniqueIndex:ux_plans_open_concept,priority:1,where:state = 'abierto'" json:"student_id"`

	// Exactly one of these three is non-null.
	ArticleID *uint `gorm:"uniqueIndex:ux_plans_open_article,priority:2,where:state = 'abierto';check:ck_plans_one_item,(article_id IS NOT NULL)::int + (package_id IS NOT NULL)::int + (concept_id IS NOT NULL)::int = 1" json:"article_id,omitempty"`
	PackageID *uint `gorm:"uniqueIndex:ux_plans_open_package,priority:2,where:state = 'abierto'" json:"package_id,omitempty"`
	ConceptID *uint `gorm:"uniqueIndex:ux_plans_open_concept,priority:2,where:state = 'abierto'" json:"concept_id,omitempty"`

	BasePriceSnapshot decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"base_price_snapshot"`
	Label             string          `gorm:"type:varchar(200);not null" json:"label"`
	OriginalTotal     decimal.Decimal `gorm:"type:decimal(10,2);not null;check:ck_plans_total,original_total >= 0" json:"original_total"`
	Balance           decimal.Decimal `gorm:"type:decimal(10,2);not null;check:ck_plans_balance,balance >= 0" json:"balance"`
	State             string          `gorm:"type:varchar(15);not null;default:'abierto';index:ix_plans_student_state,priority:2" json:"state"`

	// Settlement policy, copied from the concept at creation.
	ApplyDiscountOnSettle bool             `gorm:"not null;default:true" json:"apply_discount_on_settle"`
	ValidFrom             *time.Time       `json:"valid_from,omitempty"`
	ValidUntil            *time.Time       `json:"valid_until,omitempty"`
	DiscountPct           *float64         `gorm:"type:decimal(5,2);check:ck_plans_discount_pct,discount_pct BETWEEN 0 AND 100" json:"discount_pct,omitempty"`
	MaxDiscount           *decimal.Decimal `gorm:"type:decimal(10,2)" json:"max_discount,omitempty"`
	SurchargePct          *float64         `gorm:"type:decimal(5,2);check:ck_plans_surcharge_pct,surcharge_pct BETWEEN 0 AND 100" json:"surcharge_pct,omitempty"`
	FixedSurcharge        *decimal.Decimal `gorm:"type:decimal(10,2)" json:"fixed_surcharge,omitempty"`

	// Delivery logistics, for article/package items.
	Deliverable bool       `gorm:"not null;default:false" json:"deliverable"`
	Delivered   bool       `gorm:"not null;default:false" json:"delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	DeliveredBy *string    `gorm:"type:varchar(60)" json:"delivered_by,omitempty"`

	LastInstallmentAt *time.Time `json:"last_installment_at,omitempty"`

	Student      Student         `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Article      *Article        `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
	Package      *Package        `gorm:"foreignKey:PackageID" json:"package,omitempty"`
	Concept      *PaymentConcept `gorm:"foreignKey:ConceptID" json:"concept,omitempty"`
	Installments []Installment   `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
	Settlement   *Settlement     `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"settlement,omitempty"`
}

// TableName keeps the table name away from GORM's pluralization of "plan".
func (Plan) TableName() string { return "plans" }

// IsOpen reports whether the plan still accepts installments.
func (p Plan) IsOpen() bool { return p.State == PlanOpen }

// ItemKind returns which catalog item the plan finances.
func (p Plan) ItemKind() ItemKind {
	switch {
	case p.ArticleID != nil:
		return ItemArticle
	case p.PackageID != nil:
		return ItemPackage
	default:
		return ItemConcept
	}
}

// ItemID returns the id of the financed item.
func (p Plan) ItemID() uint {
	switch {
	case p.ArticleID != nil:
		return *p.ArticleID
	case p.PackageID != nil:
		return *p.PackageID
	case p.ConceptID != nil:
		return *p.ConceptID
	}
	return 0
}

// PercentCovered is how much of the original total has been paid, 0..100.
func (p Plan) PercentCovered() float64 {
	total, _ := p.OriginalTotal.Float64()
	if total <= 0 {
		return 100
	}
	balance, _ := p.Balance.Float64()
	paid := total - balance
	if paid < 0 {
		paid = 0
	}
	return 100 * paid / total
}

// Installment is one monetary movement against a plan, linked to the sale it
// was recorded in. Immutable once created except for deletion, which
// reverses its effect on the plan.
type Installment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PlanID uint `gorm:"not null;index:ix_installments_plan_paid,priority:1" json:"plan_id"`
	SaleID uint `gorm:"index;not null" json:"sale_id"`

	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null;check:ck_installments_amount,amount > 0" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(10,2);not null;check:ck_installments_balances,balance_before >= balance_after" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"balance_after"`
	PaidAt        time.Time       `gorm:"not null;index:ix_installments_plan_paid,priority:2" json:"paid_at"`

	Method    string  `gorm:"type:varchar(50)" json:"method,omitempty"`
	Reference *string `gorm:"type:varchar(64)" json:"reference,omitempty"`
	Notes     *string `gorm:"type:varchar(200)" json:"notes,omitempty"`

	Plan Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Sale Sale `gorm:"foreignKey:SaleID" json:"sale,omitempty"`
}

// Settlement is the one-time, immutable record created when a plan's balance
// reaches zero, capturing the final discount-or-surcharge adjustment against
// the original total and the sale it happened in.
type Settlement struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PlanID      uint `gorm:"not null;uniqueIndex" json:"plan_id"`
	FinalSaleID uint `gorm:"index;not null" json:"final_sale_id"`

	SettledAt        time.Time       `gorm:"not null" json:"settled_at"`
	DiscountApplied  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0;check:ck_settlements_discount,discount_applied >= 0" json:"discount_applied"`
	SurchargeApplied decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0;check:ck_settlements_surcharge,surcharge_applied >= 0" json:"surcharge_applied"`

	CalculationBase string  `gorm:"type:varchar(20);not null;default:'total_original'" json:"calculation_base"`
	RuleNote        *string `gorm:"type:varchar(200)" json:"rule_note,omitempty"`

	Plan      Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	FinalSale Sale `gorm:"foreignKey:FinalSaleID" json:"final_sale,omitempty"`
}
