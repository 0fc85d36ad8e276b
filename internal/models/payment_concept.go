package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
	"gorm.io/gorm"
)

// PaymentConcept is a chargeable catalog entry: monthly tuition, enrollment,
// an exam fee. A recurring concept repeats (typically monthly) and never
// expires; a one-time concept may carry an absolute expiration date.
//
// Discount policy: percentage, an optional eligible-method list (stored raw,
// parsed at the adapter boundary) and an optional valid-until date.
// Surcharge policy: percentage plus either a day-of-month cutoff (recurring)
// or an absolute date (one-time).
type PaymentConcept struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name      string          `gorm:"type:varchar(100);not null;index" json:"name"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Recurring bool            `gorm:"not null;default:false" json:"recurring"`
	// RecurrenceRule is an RFC 5545 RRULE for recurring concepts; when empty
	// a monthly cadence is assumed.
	RecurrenceRule *string `gorm:"type:text" json:"recurrence_rule,omitempty"`

	DiscountPct        float64    `gorm:"type:decimal(5,2);default:0;check:ck_concept_discount_pct,discount_pct BETWEEN 0 AND 100" json:"discount_pct"`
	DiscountConditions string     `gorm:"type:varchar(200)" json:"discount_conditions,omitempty"`
	DiscountValidUntil *time.Time `json:"discount_valid_until,omitempty"`

	HasSurcharge    bool       `gorm:"not null;default:false" json:"has_surcharge"`
	SurchargePct    float64    `gorm:"type:decimal(5,2);default:0;check:ck_concept_surcharge_pct,surcharge_pct BETWEEN 0 AND 100" json:"surcharge_pct"`
	SurchargeDayCut int        `gorm:"default:0;check:ck_concept_surcharge_day,surcharge_day_cut BETWEEN 0 AND 31" json:"surcharge_day_cut"`
	SurchargeDate   *time.Time `json:"surcharge_date,omitempty"`

	HasExpiry bool       `gorm:"not null;default:false" json:"has_expiry"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	StudentID *uint `gorm:"index" json:"student_id,omitempty"`
}

// IsExpired reports whether the concept can no longer be charged at the
// reference date. Recurring concepts never expire.
func (p PaymentConcept) IsExpired(ref time.Time) bool {
	if p.Recurring {
		return false
	}
	if !p.HasExpiry || p.ExpiresAt == nil {
		return false
	}
	return ref.After(*p.ExpiresAt)
}

// NextDue returns the next charge date for a recurring concept after the
// given time. With no rule set (or an unparseable one) it falls back to one
// month out. One-time concepts return their expiration date, zero if none.
func (p PaymentConcept) NextDue(after time.Time) time.Time {
	if !p.Recurring {
		if p.ExpiresAt != nil {
			return *p.ExpiresAt
		}
		return time.Time{}
	}

	if p.RecurrenceRule != nil && *p.RecurrenceRule != "" {
		rule, err := rrule.StrToRRule(*p.RecurrenceRule)
		if err == nil {
			rule.DTStart(p.CreatedAt)
			next := rule.After(after, true)
			if !next.IsZero() {
				return next
			}
		}
	}
	return after.AddDate(0, 1, 0)
}
