package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
	"github.com/GualbertoOm/Ballet/internal/models"
	"github.com/GualbertoOm/Ballet/internal/services"
)

type SaleHandler struct {
	db    *gorm.DB
	sales *services.SaleService
}

func NewSaleHandler(db *gorm.DB, sales *services.SaleService) *SaleHandler {
	return &SaleHandler{db: db, sales: sales}
}

// SubmitSale registers a sale. The orchestrator applies the idempotency
// guards; a caught duplicate surfaces as already_processed via the error
// handler.
func (h *SaleHandler) SubmitSale(c echo.Context) error {
	var in services.SubmitSaleInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	result, err := h.sales.SubmitSale(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// GetSale returns one sale with lines, concepts and charges.
func (h *SaleHandler) GetSale(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	sale, err := h.sales.SaleByID(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sale)
}

// ListSales returns sales filtered by method, client, state and date range.
// state=pendientes narrows to pending sales; state=pagadas excludes them.
func (h *SaleHandler) ListSales(c echo.Context) error {
	q := h.db.Model(&models.Sale{}).
		Preload("Lines").Preload("Concepts").Preload("Charges").
		Preload("Student").Preload("Instructor")

	if raw := c.QueryParam("metodo"); raw != "" {
		method := billing.NormalizeMethod(raw)
		if method == "pendiente" || method == billing.MethodPending {
			q = q.Where("method IN ('', ?, 'pendiente')", billing.MethodPending)
		} else {
			q = q.Where("method = ?", method)
		}
	}
	switch c.QueryParam("estado") {
	case "pendientes":
		q = q.Where("method IN ('', ?, 'pendiente')", billing.MethodPending)
	case "pagadas":
		q = q.Where("method NOT IN ('', ?, 'pendiente')", billing.MethodPending)
	}
	if sid := c.QueryParam("estudiante"); sid != "" {
		q = q.Where("student_id = ?", sid)
	}
	if iid := c.QueryParam("instructor"); iid != "" {
		q = q.Where("instructor_id = ?", iid)
	}
	if from := c.QueryParam("inicio"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			q = q.Where("sold_at >= ?", t)
		}
	}
	if to := c.QueryParam("fin"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			q = q.Where("sold_at < ?", t.AddDate(0, 0, 1))
		}
	}

	var sales []models.Sale
	if err := q.Order("sold_at DESC").Find(&sales).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sales)
}

// ListPending returns the sales still awaiting payment.
func (h *SaleHandler) ListPending(c echo.Context) error {
	sales, err := h.sales.PendingSales()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sales)
}

// DeleteSale removes a sale and restores its merchandise stock.
func (h *SaleHandler) DeleteSale(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.sales.DeleteSale(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
