package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GualbertoOm/Ballet/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPackage(kind, value string) models.Package {
	return models.Package{
		ID:            7,
		Name:          "Paquete Inicio",
		DiscountKind:  kind,
		DiscountValue: d(value),
		Items: []models.PackageItem{
			{ArticleID: 1, Quantity: 2, Article: models.Article{ID: 1, Name: "Leotardo", Price: d("300")}},
			{ArticleID: 2, Quantity: 1, Article: models.Article{ID: 2, Name: "Zapatillas", Price: d("400")}},
		},
	}
}

func TestNewPackageInfoPercentageDiscount(t *testing.T) {
	info := NewPackageInfo(testPackage(models.PackageDiscountPercentage, "10"))

	if !info.ListTotal.Equal(d("1000")) {
		t.Errorf("ListTotal = %s, want 1000", info.ListTotal)
	}
	if !info.DiscountAmount.Equal(d("100")) {
		t.Errorf("DiscountAmount = %s, want 100", info.DiscountAmount)
	}
	if !info.NetTotal.Equal(d("900")) {
		t.Errorf("NetTotal = %s, want 900", info.NetTotal)
	}
	if len(info.Lines) != 2 {
		t.Fatalf("Lines = %d, want 2", len(info.Lines))
	}
	if !info.Lines[0].ProratedUnitPrice.Equal(d("270")) {
		t.Errorf("line 0 prorated = %s, want 270", info.Lines[0].ProratedUnitPrice)
	}
	if !info.Lines[1].ProratedUnitPrice.Equal(d("360")) {
		t.Errorf("line 1 prorated = %s, want 360", info.Lines[1].ProratedUnitPrice)
	}
}

func TestNewPackageInfoAmountDiscount(t *testing.T) {
	info := NewPackageInfo(testPackage(models.PackageDiscountAmount, "250"))
	if !info.DiscountAmount.Equal(d("250")) {
		t.Errorf("DiscountAmount = %s, want 250", info.DiscountAmount)
	}
	if !info.NetTotal.Equal(d("750")) {
		t.Errorf("NetTotal = %s, want 750", info.NetTotal)
	}

	// A flat discount bigger than the list total caps at the list total.
	info = NewPackageInfo(testPackage(models.PackageDiscountAmount, "5000"))
	if !info.DiscountAmount.Equal(d("1000")) {
		t.Errorf("capped DiscountAmount = %s, want 1000", info.DiscountAmount)
	}
	if !info.NetTotal.Equal(d("0")) {
		t.Errorf("NetTotal = %s, want 0", info.NetTotal)
	}
}

func TestNewPackageInfoNoDiscount(t *testing.T) {
	info := NewPackageInfo(testPackage(models.PackageDiscountNone, "0"))
	if !info.NetTotal.Equal(info.ListTotal) {
		t.Errorf("NetTotal = %s, want %s", info.NetTotal, info.ListTotal)
	}
	for i, ln := range info.Lines {
		if !ln.ProratedUnitPrice.Equal(ln.ListUnitPrice) {
			t.Errorf("line %d prorated %s != list %s without discount", i, ln.ProratedUnitPrice, ln.ListUnitPrice)
		}
	}
}

func TestNewConceptInfoParsesConditions(t *testing.T) {
	until := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	concept := models.PaymentConcept{
		Name:               "Mensualidad",
		Amount:             d("1200"),
		Recurring:          true,
		DiscountPct:        10,
		DiscountConditions: `["Efectivo"," TRANSFERENCIA "]`,
		DiscountValidUntil: &until,
		HasSurcharge:       true,
		SurchargePct:       5,
		SurchargeDayCut:    10,
	}
	info := NewConceptInfo(concept)

	if len(info.DiscountMethods) != 2 || info.DiscountMethods[0] != "efectivo" || info.DiscountMethods[1] != "transferencia" {
		t.Errorf("DiscountMethods = %v, want [efectivo transferencia]", info.DiscountMethods)
	}
	if info.SurchargePct != 5 || info.SurchargeDayCut != 10 {
		t.Errorf("surcharge policy not copied: pct=%v cut=%v", info.SurchargePct, info.SurchargeDayCut)
	}
}

func TestNewConceptInfoIgnoresDisabledSurcharge(t *testing.T) {
	concept := models.PaymentConcept{
		Name:            "Inscripción",
		Amount:          d("800"),
		HasSurcharge:    false,
		SurchargePct:    5,
		SurchargeDayCut: 10,
	}
	info := NewConceptInfo(concept)
	if info.SurchargePct != 0 || info.SurchargeDayCut != 0 {
		t.Errorf("disabled surcharge leaked: pct=%v cut=%v", info.SurchargePct, info.SurchargeDayCut)
	}
}

func TestConceptInfoNetFor(t *testing.T) {
	info := ConceptInfo{
		Amount:          d("1200"),
		Recurring:       true,
		DiscountPct:     10,
		DiscountMethods: []string{"efectivo"},
		SurchargePct:    5,
		SurchargeDayCut: 10,
	}

	early := time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC)
	res := info.NetFor(1, "efectivo", early)
	if !res.Net.Equal(d("1080")) {
		t.Errorf("early cash net = %s, want 1080", res.Net)
	}

	late := time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC)
	res = info.NetFor(1, "tarjeta", late)
	// No discount for card, 5% surcharge past day 10.
	if !res.Net.Equal(d("1260")) {
		t.Errorf("late card net = %s, want 1260", res.Net)
	}
}

func TestConceptInfoNetForAbsoluteSurchargeDate(t *testing.T) {
	cutoff := time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)
	info := ConceptInfo{
		Amount:        d("500"),
		Recurring:     false,
		SurchargePct:  10,
		SurchargeDate: &cutoff,
	}

	onTime := info.NetFor(1, "efectivo", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC))
	if !onTime.Net.Equal(d("500")) {
		t.Errorf("on-time net = %s, want 500", onTime.Net)
	}

	late := info.NetFor(1, "efectivo", time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC))
	if !late.Net.Equal(d("550")) {
		t.Errorf("late net = %s, want 550", late.Net)
	}
}
