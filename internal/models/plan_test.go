package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func uptr(v uint) *uint { return &v }

func TestPlanItemKind(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		want ItemKind
		id   uint
	}{
		{"article plan", Plan{ArticleID: uptr(4)}, ItemArticle, 4},
		{"package plan", Plan{PackageID: uptr(7)}, ItemPackage, 7},
		{"concept plan", Plan{ConceptID: uptr(9)}, ItemConcept, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.ItemKind(); got != tt.want {
				t.Errorf("ItemKind() = %q, want %q", got, tt.want)
			}
			if got := tt.plan.ItemID(); got != tt.id {
				t.Errorf("ItemID() = %d, want %d", got, tt.id)
			}
		})
	}
}

func TestPlanPercentCovered(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		balance string
		want    float64
	}{
		{"untouched", "1000", "1000", 0},
		{"half paid", "1000", "500", 50},
		{"fully paid", "1000", "0", 100},
		{"zero total counts as covered", "0", "0", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Plan{
				OriginalTotal: decimal.RequireFromString(tt.total),
				Balance:       decimal.RequireFromString(tt.balance),
			}
			if got := p.PercentCovered(); got != tt.want {
				t.Errorf("PercentCovered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSaleIsPending(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{"", true},
		{"__pendiente__", true},
		{"pendiente", true},
		{"efectivo", false},
		{"tarjeta", false},
	}
	for _, tt := range tests {
		s := Sale{Method: tt.method}
		if got := s.IsPending(); got != tt.want {
			t.Errorf("IsPending() with method %q = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestSaleLineSubtotal(t *testing.T) {
	l := SaleLine{Quantity: 3, UnitPrice: decimal.RequireFromString("99.99")}
	want := decimal.RequireFromString("299.97")
	if got := l.Subtotal(); !got.Equal(want) {
		t.Errorf("Subtotal() = %s, want %s", got, want)
	}
}
