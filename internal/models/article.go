package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VariantKind says how an article's variants are labeled.
type VariantKind string

const (
	VariantNone   VariantKind = "ninguno"
	VariantSize   VariantKind = "talla"
	VariantNumber VariantKind = "numero"
)

// VariantStockMap maps a variant label (size or shoe number) to its stock on
// hand. It is stored as jsonb; the core only ever sees the parsed map.
type VariantStockMap map[string]int

// Total sums the stock across all variants.
func (m VariantStockMap) Total() int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// Article is a merchandise catalog item (uniforms, shoes, accessories).
type Article struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name         string          `gorm:"type:varchar(100);not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock        int             `gorm:"not null;default:0" json:"stock"`
	VariantKind  VariantKind     `gorm:"type:varchar(20);default:'ninguno'" json:"variant_kind"`
	VariantStock VariantStockMap `gorm:"serializer:json" json:"variant_stock,omitempty"`
}

// HasVariants reports whether stock is tracked per variant.
func (a Article) HasVariants() bool {
	return a.VariantKind != VariantNone && a.VariantKind != "" && len(a.VariantStock) > 0
}

// TotalStock returns the aggregate stock, summing variants when present.
func (a Article) TotalStock() int {
	if a.HasVariants() {
		return a.VariantStock.Total()
	}
	return a.Stock
}

// AvailableFor returns the stock available for the given variant. An empty
// variant, or an article without variant tracking, falls back to the
// aggregate count.
func (a Article) AvailableFor(variant string) int {
	if variant != "" && a.HasVariants() {
		return a.VariantStock[variant]
	}
	return a.TotalStock()
}

// AdjustStock applies a signed delta to the stock for the given variant and
// recomputes the aggregate. It does not check bounds; callers validate
// availability first.
func (a *Article) AdjustStock(variant string, delta int) {
	if variant != "" && a.HasVariants() {
		a.VariantStock[variant] += delta
		a.Stock = a.VariantStock.Total()
		return
	}
	a.Stock += delta
	if a.Stock < 0 {
		a.Stock = 0
	}
}
