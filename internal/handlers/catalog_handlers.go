package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
	"github.com/GualbertoOm/Ballet/internal/models"
	"github.com/GualbertoOm/Ballet/internal/services"
)

type CatalogHandler struct {
	db      *gorm.DB
	catalog *services.CatalogService
}

func NewCatalogHandler(db *gorm.DB, catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{db: db, catalog: catalog}
}

// ---- Articles ----

type articleRequest struct {
	Name         string                 `json:"name" validate:"required,max=100"`
	Price        decimal.Decimal        `json:"price"`
	Stock        int                    `json:"stock" validate:"min=0"`
	VariantKind  models.VariantKind     `json:"variant_kind" validate:"omitempty,oneof=ninguno talla numero"`
	VariantStock models.VariantStockMap `json:"variant_stock,omitempty"`
}

func (h *CatalogHandler) ListArticles(c echo.Context) error {
	var articles []models.Article
	if err := h.db.Order("name ASC").Find(&articles).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, articles)
}

func (h *CatalogHandler) CreateArticle(c echo.Context) error {
	var req articleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	article := models.Article{
		Name:         req.Name,
		Price:        billing.Round(req.Price),
		Stock:        req.Stock,
		VariantKind:  req.VariantKind,
		VariantStock: req.VariantStock,
	}
	if article.VariantKind == "" {
		article.VariantKind = models.VariantNone
	}
	if article.HasVariants() {
		article.Stock = article.VariantStock.Total()
	}
	if err := h.db.Create(&article).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, article)
}

func (h *CatalogHandler) UpdateArticle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var article models.Article
	if err := h.db.First(&article, id).Error; err != nil {
		return err
	}
	var req articleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	article.Name = req.Name
	article.Price = billing.Round(req.Price)
	article.VariantKind = req.VariantKind
	article.VariantStock = req.VariantStock
	article.Stock = req.Stock
	if article.HasVariants() {
		article.Stock = article.VariantStock.Total()
	}
	if err := h.db.Save(&article).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

func (h *CatalogHandler) DeleteArticle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.db.Delete(&models.Article{}, id).Error; err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Payment concepts ----

type conceptRequest struct {
	Name               string          `json:"name" validate:"required,max=100"`
	Amount             decimal.Decimal `json:"amount"`
	Recurring          bool            `json:"recurring"`
	RecurrenceRule     *string         `json:"recurrence_rule,omitempty"`
	DiscountPct        float64         `json:"discount_pct" validate:"min=0,max=100"`
	DiscountConditions string          `json:"discount_conditions,omitempty"`
	DiscountValidUntil *time.Time      `json:"discount_valid_until,omitempty"`
	HasSurcharge       bool            `json:"has_surcharge"`
	SurchargePct       float64         `json:"surcharge_pct" validate:"min=0,max=100"`
	SurchargeDayCut    int             `json:"surcharge_day_cut" validate:"min=0,max=31"`
	SurchargeDate      *time.Time      `json:"surcharge_date,omitempty"`
	HasExpiry          bool            `json:"has_expiry"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	StudentID          *uint           `json:"student_id,omitempty"`
}

func (r conceptRequest) apply(concept *models.PaymentConcept) {
	concept.Name = r.Name
	concept.Amount = billing.Round(r.Amount)
	concept.Recurring = r.Recurring
	concept.RecurrenceRule = r.RecurrenceRule
	concept.DiscountPct = r.DiscountPct
	concept.DiscountConditions = r.DiscountConditions
	concept.DiscountValidUntil = r.DiscountValidUntil
	concept.HasSurcharge = r.HasSurcharge
	concept.SurchargePct = r.SurchargePct
	concept.SurchargeDayCut = r.SurchargeDayCut
	concept.SurchargeDate = r.SurchargeDate
	concept.HasExpiry = r.HasExpiry
	concept.ExpiresAt = r.ExpiresAt
	concept.StudentID = r.StudentID
}

// ListConcepts lists payment concepts; ?vigentes=1 drops one-time concepts
// already past their expiration date.
func (h *CatalogHandler) ListConcepts(c echo.Context) error {
	var concepts []models.PaymentConcept
	if err := h.db.Order("name ASC").Find(&concepts).Error; err != nil {
		return err
	}
	switch c.QueryParam("vigentes") {
	case "1", "true":
		now := time.Now()
		active := concepts[:0]
		for _, p := range concepts {
			if !p.IsExpired(now) {
				active = append(active, p)
			}
		}
		concepts = active
	}
	return c.JSON(http.StatusOK, concepts)
}

// GetConceptInfo returns the canonical pricing view, with the discount
// condition list already parsed.
func (h *CatalogHandler) GetConceptInfo(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	info, err := h.catalog.ConceptInfoByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func (h *CatalogHandler) CreateConcept(c echo.Context) error {
	var req conceptRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	var concept models.PaymentConcept
	req.apply(&concept)
	if err := h.db.Create(&concept).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, concept)
}

func (h *CatalogHandler) UpdateConcept(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var concept models.PaymentConcept
	if err := h.db.First(&concept, id).Error; err != nil {
		return err
	}
	var req conceptRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	req.apply(&concept)
	if err := h.db.Save(&concept).Error; err != nil {
		return err
	}
	h.catalog.InvalidateConcept(c.Request().Context(), concept.ID)
	return c.JSON(http.StatusOK, concept)
}

func (h *CatalogHandler) DeleteConcept(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.db.Delete(&models.PaymentConcept{}, id).Error; err != nil {
		return err
	}
	h.catalog.InvalidateConcept(c.Request().Context(), id)
	return c.NoContent(http.StatusNoContent)
}

// ---- Packages ----

type packageItemRequest struct {
	ArticleID uint    `json:"article_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"min=1"`
	Variant   *string `json:"variant,omitempty"`
}

type packageRequest struct {
	Name          string               `json:"name" validate:"required,max=100"`
	DiscountKind  string               `json:"discount_kind" validate:"omitempty,oneof=ninguno porcentaje monto"`
	DiscountValue decimal.Decimal      `json:"discount_value"`
	Active        bool                 `json:"active"`
	Items         []packageItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *CatalogHandler) ListPackages(c echo.Context) error {
	var pkgs []models.Package
	if err := h.db.Preload("Items.Article").Order("name ASC").Find(&pkgs).Error; err != nil {
		return err
	}
	infos := make([]services.PackageInfo, 0, len(pkgs))
	for _, p := range pkgs {
		infos = append(infos, services.NewPackageInfo(p))
	}
	return c.JSON(http.StatusOK, infos)
}

func (h *CatalogHandler) GetPackageInfo(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	info, err := h.catalog.PackageInfoByID(h.db, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func (h *CatalogHandler) CreatePackage(c echo.Context) error {
	var req packageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	pkg := models.Package{
		Name:          req.Name,
		DiscountKind:  req.DiscountKind,
		DiscountValue: billing.Round(req.DiscountValue),
		Active:        req.Active,
	}
	if pkg.DiscountKind == "" {
		pkg.DiscountKind = models.PackageDiscountNone
	}
	for _, it := range req.Items {
		pkg.Items = append(pkg.Items, models.PackageItem{
			ArticleID: it.ArticleID,
			Quantity:  it.Quantity,
			Variant:   it.Variant,
		})
	}
	if err := h.db.Create(&pkg).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pkg)
}

func (h *CatalogHandler) DeletePackage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("package_id = ?", id).Delete(&models.PackageItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Package{}, id).Error
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
