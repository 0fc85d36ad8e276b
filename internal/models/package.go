package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Package discount kinds.
const (
	PackageDiscountNone       = "ninguno"
	PackageDiscountPercentage = "porcentaje"
	PackageDiscountAmount     = "monto"
)

// Package bundles articles sold together at a discount. Pricing is done by
// prorating the package's net total back across member lines proportionally
// to each line's list price.
type Package struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name          string          `gorm:"type:varchar(120);not null;uniqueIndex" json:"name"`
	DiscountKind  string          `gorm:"type:varchar(20);not null;default:'ninguno';check:ck_package_discount_kind,discount_kind IN ('porcentaje','monto','ninguno')" json:"discount_kind"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0;check:ck_package_discount_value,discount_value >= 0" json:"discount_value"`
	Active        bool            `gorm:"not null;default:true" json:"active"`

	Items []PackageItem `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// PackageItem is one article line inside a package, optionally pinned to a
// size or number variant.
type PackageItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PackageID uint    `gorm:"index;not null" json:"package_id"`
	ArticleID uint    `gorm:"index;not null" json:"article_id"`
	Quantity  int     `gorm:"not null;default:1;check:ck_package_item_qty,quantity > 0" json:"quantity"`
	Variant   *string `gorm:"type:varchar(50)" json:"variant,omitempty"`

	Article Article `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
}
