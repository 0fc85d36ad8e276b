package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
)

// SaleConcept kinds. Settlement adjustments are appended to the sale as
// synthetic charge rows so its total reflects the final adjusted amount.
const (
	ChargeConcept             = "concepto"
	ChargeDiscountAdjustment  = "ajuste_descuento"
	ChargeSurchargeAdjustment = "ajuste_recargo"
)

// Sale is one transaction belonging to exactly one of a student or an
// instructor. A sale recorded without a payment method yet is "pending":
// it still reserves inventory but produces no cash movement until it is
// consolidated into a real sale.
type Sale struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Folio is the public receipt identifier printed for the customer.
	Folio string `gorm:"type:varchar(36);uniqueIndex" json:"folio"`

	// Exactly one owner: a student or an instructor.
	StudentID    *uint `gorm:"index;check:ck_sales_one_client,(student_id IS NULL) <> (instructor_id IS NULL)" json:"student_id,omitempty"`
	InstructorID *uint `gorm:"index" json:"instructor_id,omitempty"`

	Method    string    `gorm:"type:varchar(50);index" json:"method"`
	Reference *string   `gorm:"type:varchar(64)" json:"reference,omitempty"`
	SoldAt    time.Time `gorm:"index;not null" json:"sold_at"`

	Student    *Student      `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Instructor *Instructor   `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Lines      []SaleLine    `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	Concepts   []SaleConcept `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"concepts,omitempty"`
	Charges    []SaleCharge  `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"charges,omitempty"`
}

// IsPending reports whether the sale awaits a later payment.
func (s Sale) IsPending() bool {
	switch s.Method {
	case "", billing.MethodPending, "pendiente":
		return true
	}
	return false
}

// SaleLine is one merchandise line. Quantity and unit price are captured
// verbatim at sale time; later catalog price changes never affect it.
type SaleLine struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SaleID    uint            `gorm:"index;not null" json:"sale_id"`
	ArticleID uint            `gorm:"index;not null" json:"article_id"`
	Variant   *string         `gorm:"type:varchar(50)" json:"variant,omitempty"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`

	Article Article `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
}

// Subtotal is quantity times the captured unit price.
func (l SaleLine) Subtotal() decimal.Decimal {
	return billing.Round(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// SaleConcept links a payment concept (or a synthetic settlement adjustment)
// to a sale, snapshotting the amount at sale time so later catalog edits do
// not rewrite history.
type SaleConcept struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SaleID    uint            `gorm:"index;not null" json:"sale_id"`
	ConceptID *uint           `gorm:"index" json:"concept_id,omitempty"`
	Kind      string          `gorm:"type:varchar(20);not null;default:'concepto'" json:"kind"`
	Label     string          `gorm:"type:varchar(200);not null" json:"label"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`

	Concept *PaymentConcept `gorm:"foreignKey:ConceptID" json:"concept,omitempty"`
}

// SaleCharge is the auxiliary cash-movement entry recorded for bookkeeping
// when a sale actually collects money. Pending sales carry none.
type SaleCharge struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SaleID    uint            `gorm:"index;not null" json:"sale_id"`
	Method    string          `gorm:"type:varchar(50);not null" json:"method"`
	Reference *string         `gorm:"type:varchar(64)" json:"reference,omitempty"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	ChargedAt time.Time       `gorm:"not null" json:"charged_at"`
}
