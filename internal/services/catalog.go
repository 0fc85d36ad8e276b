package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
	"github.com/GualbertoOm/Ballet/internal/models"
)

// Catalog records arrive in heterogeneous shapes (legacy rows mix JSON and
// free text). CatalogService normalizes them into the canonical snapshot
// structs below; the billing core never touches a raw model field directly.
type CatalogService struct {
	db    *gorm.DB
	cache *RedisCache // optional; nil skips caching
}

func NewCatalogService(db *gorm.DB, cache *RedisCache) *CatalogService {
	return &CatalogService{db: db, cache: cache}
}

// ConceptInfo is the canonical pricing view of a payment concept.
type ConceptInfo struct {
	ID                 uint            `json:"id"`
	Name               string          `json:"name"`
	Amount             decimal.Decimal `json:"amount"`
	Recurring          bool            `json:"recurring"`
	DiscountPct        float64         `json:"discount_pct"`
	DiscountMethods    []string        `json:"discount_methods"`
	DiscountValidUntil *time.Time      `json:"discount_valid_until,omitempty"`
	SurchargePct       float64         `json:"surcharge_pct"`
	SurchargeDayCut    int             `json:"surcharge_day_cut"`
	SurchargeDate      *time.Time      `json:"surcharge_date,omitempty"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	// NextDue is the upcoming charge date of a recurring concept, filled in
	// at load time so the cached view carries it.
	NextDue *time.Time `json:"next_due,omitempty"`
}

// NewConceptInfo normalizes a concept row, parsing the raw condition text
// exactly once. Everything downstream consumes the parsed list.
func NewConceptInfo(p models.PaymentConcept) ConceptInfo {
	info := ConceptInfo{
		ID:                 p.ID,
		Name:               p.Name,
		Amount:             billing.Round(p.Amount),
		Recurring:          p.Recurring,
		DiscountPct:        p.DiscountPct,
		DiscountMethods:    billing.ParseConditions(p.DiscountConditions),
		DiscountValidUntil: p.DiscountValidUntil,
	}
	if p.HasSurcharge {
		info.SurchargePct = p.SurchargePct
		info.SurchargeDayCut = p.SurchargeDayCut
		info.SurchargeDate = p.SurchargeDate
	}
	if p.HasExpiry {
		info.ExpiresAt = p.ExpiresAt
	}
	return info
}

// NetFor prices this concept for a method at a reference date. Recurring
// concepts judge the surcharge by day-of-month cutoff; one-time concepts
// with an absolute surcharge date apply it once the date has passed.
func (ci ConceptInfo) NetFor(quantity int, method string, refDate time.Time) billing.NetResult {
	in := billing.NetInput{
		UnitPrice:          ci.Amount,
		Quantity:           quantity,
		DiscountPct:        ci.DiscountPct,
		DiscountMethods:    ci.DiscountMethods,
		DiscountValidUntil: ci.DiscountValidUntil,
		SurchargePct:       ci.SurchargePct,
		SurchargeDayCut:    ci.SurchargeDayCut,
		Method:             method,
		ReferenceDate:      refDate,
	}

	if !ci.Recurring && ci.SurchargeDate != nil {
		in.SurchargeDayCut = 0
		res := billing.ComputeNet(in)
		if ci.SurchargePct > 0 && refDate.After(*ci.SurchargeDate) {
			base := res.Subtotal.Sub(res.Discount)
			res.Surcharge = billing.Round(base.Mul(billing.FromFloat(ci.SurchargePct)).Div(decimal.NewFromInt(100)))
			res.Net = billing.Round(base.Add(res.Surcharge))
			res.SurchargeApplied = true
		}
		return res
	}
	return billing.ComputeNet(in)
}

// ConceptByID loads a concept row on the given transaction.
func (s *CatalogService) ConceptByID(tx *gorm.DB, id uint) (*models.PaymentConcept, error) {
	var concept models.PaymentConcept
	if err := tx.First(&concept, id).Error; err != nil {
		return nil, err
	}
	return &concept, nil
}

// ConceptInfoByID returns the canonical view, read-through cached for a
// short window when Redis is configured.
func (s *CatalogService) ConceptInfoByID(ctx context.Context, id uint) (ConceptInfo, error) {
	load := func() (ConceptInfo, error) {
		concept, err := s.ConceptByID(s.db, id)
		if err != nil {
			return ConceptInfo{}, err
		}
		info := NewConceptInfo(*concept)
		if concept.Recurring {
			next := concept.NextDue(time.Now())
			info.NextDue = &next
		}
		return info, nil
	}
	if s.cache == nil {
		return load()
	}
	return GetOrSet(s.cache, ctx, fmt.Sprintf("concept:%d", id), time.Minute, load)
}

// InvalidateConcept drops a concept's cached view after a catalog edit.
func (s *CatalogService) InvalidateConcept(ctx context.Context, id uint) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, fmt.Sprintf("concept:%d", id))
	}
}

// ArticleByID loads an article row on the given transaction.
func (s *CatalogService) ArticleByID(tx *gorm.DB, id uint) (*models.Article, error) {
	var article models.Article
	if err := tx.First(&article, id).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

// PackageLine is one member article of a priced package.
type PackageLine struct {
	ArticleID         uint            `json:"article_id"`
	Name              string          `json:"name"`
	Variant           *string         `json:"variant,omitempty"`
	Quantity          int             `json:"quantity"`
	ListUnitPrice     decimal.Decimal `json:"list_unit_price"`
	ProratedUnitPrice decimal.Decimal `json:"prorated_unit_price"`
}

// PackageInfo is the canonical priced view of a package: its list total,
// the package discount, and member lines with the net total prorated back
// proportionally to each line's list price.
type PackageInfo struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	ListTotal      decimal.Decimal `json:"list_total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	NetTotal       decimal.Decimal `json:"net_total"`
	Lines          []PackageLine   `json:"lines"`
}

// NewPackageInfo prices a package whose items carry preloaded articles.
func NewPackageInfo(pkg models.Package) PackageInfo {
	info := PackageInfo{ID: pkg.ID, Name: pkg.Name}

	listTotal := decimal.Zero
	for _, it := range pkg.Items {
		line := billing.Round(it.Article.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		listTotal = listTotal.Add(line)
	}
	info.ListTotal = billing.Round(listTotal)

	switch pkg.DiscountKind {
	case models.PackageDiscountPercentage:
		info.DiscountAmount = billing.Round(info.ListTotal.Mul(pkg.DiscountValue).Div(decimal.NewFromInt(100)))
	case models.PackageDiscountAmount:
		info.DiscountAmount = billing.Round(decimal.Min(info.ListTotal, pkg.DiscountValue))
	default:
		info.DiscountAmount = decimal.Zero
	}
	info.NetTotal = billing.Round(info.ListTotal.Sub(info.DiscountAmount))
	if info.NetTotal.IsNegative() {
		info.NetTotal = decimal.Zero
	}

	proration := decimal.NewFromInt(1)
	if info.ListTotal.IsPositive() {
		proration = info.NetTotal.Div(info.ListTotal)
	}

	for _, it := range pkg.Items {
		unit := billing.Round(it.Article.Price)
		info.Lines = append(info.Lines, PackageLine{
			ArticleID:         it.ArticleID,
			Name:              it.Article.Name,
			Variant:           it.Variant,
			Quantity:          it.Quantity,
			ListUnitPrice:     unit,
			ProratedUnitPrice: billing.Round(unit.Mul(proration)),
		})
	}
	return info
}

// PackageInfoByID loads and prices a package on the given transaction.
func (s *CatalogService) PackageInfoByID(tx *gorm.DB, id uint) (PackageInfo, error) {
	var pkg models.Package
	if err := tx.Preload("Items.Article").First(&pkg, id).Error; err != nil {
		return PackageInfo{}, err
	}
	return NewPackageInfo(pkg), nil
}
