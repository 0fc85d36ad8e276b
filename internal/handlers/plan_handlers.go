package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
	"github.com/GualbertoOm/Ballet/internal/models"
	"github.com/GualbertoOm/Ballet/internal/services"
)

type PlanHandler struct {
	db    *gorm.DB
	plans *services.PlanService
}

func NewPlanHandler(db *gorm.DB, plans *services.PlanService) *PlanHandler {
	return &PlanHandler{db: db, plans: plans}
}

// planView augments a plan with how much of it is already paid.
type planView struct {
	models.Plan
	PercentCovered float64 `json:"percent_covered"`
}

// ListStudentPlans returns a student's plans, optionally filtered by state
// (abierto, liquidado, cancelado) and by minimum remaining balance
// (saldo_minimo; blank or unparseable means no filter).
func (h *PlanHandler) ListStudentPlans(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	plans, err := h.plans.PlansForStudent(id, c.QueryParam("estado"))
	if err != nil {
		return err
	}
	minBalance := billing.ParseAmount(c.QueryParam("saldo_minimo"))
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		if minBalance.IsPositive() && p.Balance.LessThan(minBalance) {
			continue
		}
		views = append(views, planView{Plan: p, PercentCovered: p.PercentCovered()})
	}
	return c.JSON(http.StatusOK, views)
}

// GetPlan returns one plan with its installments and settlement.
func (h *PlanHandler) GetPlan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var plan models.Plan
	err = h.db.Preload("Installments").Preload("Settlement").
		Preload("Student").First(&plan, id).Error
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, planView{Plan: plan, PercentCovered: plan.PercentCovered()})
}

type markDeliveredRequest struct {
	DeliveredBy string `json:"delivered_by" validate:"required"`
}

// MarkDelivered flags a deliverable plan's item as handed over.
func (h *PlanHandler) MarkDelivered(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req markDeliveredRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	plan, err := h.plans.MarkDelivered(id, req.DeliveredBy)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

// CancelPlan closes an open plan without settlement.
func (h *PlanHandler) CancelPlan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		return h.plans.CancelPlan(tx, id)
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteInstallment reverses one installment: the amount returns to the
// plan's balance and a settled plan reopens.
func (h *PlanHandler) DeleteInstallment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		return h.plans.DeleteInstallment(tx, id)
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
