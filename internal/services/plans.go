package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
	"github.com/GualbertoOm/Ballet/internal/models"
)

// PlanService owns the lifecycle of installment plans: find-or-create,
// installment registration, settlement and reversal. Every method that
// mutates rows takes the caller's transaction so a sale and its plan
// movements commit or roll back together.
type PlanService struct {
	db      *gorm.DB
	catalog *CatalogService
}

func NewPlanService(db *gorm.DB, catalog *CatalogService) *PlanService {
	return &PlanService{db: db, catalog: catalog}
}

// PlanSpec names the item a submission wants to pay against. Either an
// explicit plan id, or (kind, item id) with optional creation.
type PlanSpec struct {
	StudentID       uint
	ExplicitPlanID  *uint
	Kind            models.ItemKind
	ItemID          uint
	Quantity        int
	CreateIfMissing bool
}

// FindOpenPlan returns the most recent open plan for the (student, item)
// pair, or nil when none exists.
func (s *PlanService) FindOpenPlan(tx *gorm.DB, studentID uint, kind models.ItemKind, itemID uint) (*models.Plan, error) {
	q := tx.Where("student_id = ? AND state = ?", studentID, models.PlanOpen)
	switch kind {
	case models.ItemArticle:
		q = q.Where("article_id = ?", itemID)
	case models.ItemPackage:
		q = q.Where("package_id = ?", itemID)
	case models.ItemConcept:
		q = q.Where("concept_id = ?", itemID)
	default:
		return nil, fmt.Errorf("unknown plan item kind %q", kind)
	}

	var plan models.Plan
	err := q.Order("created_at DESC").First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ResolvePlan resolves a spec to an open plan. An explicit plan id must
// exist, belong to the student and be open. Otherwise the open plan for the
// item is found, or created when the spec allows it.
func (s *PlanService) ResolvePlan(tx *gorm.DB, spec PlanSpec) (*models.Plan, error) {
	if spec.ExplicitPlanID != nil {
		var plan models.Plan
		err := tx.First(&plan, *spec.ExplicitPlanID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PlanError{Reason: PlanNotFound, PlanID: *spec.ExplicitPlanID}
		}
		if err != nil {
			return nil, err
		}
		if plan.StudentID != spec.StudentID {
			return nil, &PlanError{Reason: PlanOwnership, PlanID: plan.ID}
		}
		if !plan.IsOpen() {
			return nil, &PlanError{Reason: PlanNotOpen, PlanID: plan.ID}
		}
		return &plan, nil
	}

	plan, err := s.FindOpenPlan(tx, spec.StudentID, spec.Kind, spec.ItemID)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}
	if !spec.CreateIfMissing {
		return nil, &PlanError{Reason: PlanRequired}
	}

	// A unique violation aborts the current statement and, on Postgres,
	// poisons the whole transaction; the savepoint keeps it usable for the
	// retry lookup.
	if err := tx.SavePoint("plan_create").Error; err != nil {
		return nil, err
	}
	plan, err = s.createPlan(tx, spec)
	if isDuplicateKey(err) {
		if err := tx.RollbackTo("plan_create").Error; err != nil {
			return nil, err
		}
		// Lost the find-or-create race; the winner's row is the plan.
		return s.FindOpenPlan(tx, spec.StudentID, spec.Kind, spec.ItemID)
	}
	return plan, err
}

// createPlan snapshots the item's current price into a fresh open plan. For
// concepts the discount/surcharge policy is copied as well so settlement
// stays reproducible even if the catalog changes afterwards.
func (s *PlanService) createPlan(tx *gorm.DB, spec PlanSpec) (*models.Plan, error) {
	qty := spec.Quantity
	if qty < 1 {
		qty = 1
	}
	qtyDec := decimal.NewFromInt(int64(qty))

	plan := models.Plan{
		StudentID: spec.StudentID,
		State:     models.PlanOpen,

		ApplyDiscountOnSettle: true,
	}

	switch spec.Kind {
	case models.ItemArticle:
		article, err := s.catalog.ArticleByID(tx, spec.ItemID)
		if err != nil {
			return nil, err
		}
		unit := billing.Round(article.Price)
		plan.ArticleID = &article.ID
		plan.BasePriceSnapshot = unit
		plan.Label = fmt.Sprintf("%s x%d", article.Name, qty)
		plan.OriginalTotal = billing.Round(unit.Mul(qtyDec))
		plan.Deliverable = true

	case models.ItemPackage:
		info, err := s.catalog.PackageInfoByID(tx, spec.ItemID)
		if err != nil {
			return nil, err
		}
		id := info.ID
		plan.PackageID = &id
		plan.BasePriceSnapshot = info.NetTotal
		plan.Label = fmt.Sprintf("%s x%d", info.Name, qty)
		plan.OriginalTotal = billing.Round(info.NetTotal.Mul(qtyDec))
		plan.Deliverable = true

	case models.ItemConcept:
		concept, err := s.catalog.ConceptByID(tx, spec.ItemID)
		if err != nil {
			return nil, err
		}
		info := NewConceptInfo(*concept)
		plan.ConceptID = &info.ID
		plan.BasePriceSnapshot = info.Amount
		plan.Label = fmt.Sprintf("%s x%d", info.Name, qty)
		plan.OriginalTotal = billing.Round(info.Amount.Mul(qtyDec))
		if info.DiscountPct > 0 {
			pct := info.DiscountPct
			plan.DiscountPct = &pct
		}
		plan.ValidUntil = info.DiscountValidUntil
		if info.SurchargePct > 0 {
			pct := info.SurchargePct
			plan.SurchargePct = &pct
		}

	default:
		return nil, fmt.Errorf("unknown plan item kind %q", spec.Kind)
	}

	plan.Balance = plan.OriginalTotal
	if err := tx.Create(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// SumInstallments totals the amounts recorded against a plan.
func (s *PlanService) SumInstallments(tx *gorm.DB, planID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.Model(&models.Installment{}).
		Where("plan_id = ?", planID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return billing.Round(total), err
}

// capInstallment limits a requested payment to the remaining balance and
// returns the effective amount with the balance it leaves behind.
func capInstallment(balance, requested decimal.Decimal) (effective, after decimal.Decimal) {
	balance = billing.Round(balance)
	effective = decimal.Min(balance, billing.Round(requested))
	after = billing.Round(balance.Sub(effective))
	return effective, after
}

// settlementCharge is the final amount to collect when closing a plan: the
// shortfall to the target net, or the whole balance once the target is
// already covered, never more than the balance.
func settlementCharge(balance, targetNet, prior decimal.Decimal) decimal.Decimal {
	balance = billing.Round(balance)
	delta := billing.Round(targetNet).Sub(billing.Round(prior))
	if !delta.IsPositive() {
		delta = balance
	}
	return decimal.Min(delta, balance)
}

// RegisterInstallment records one movement against an open plan, capped at
// the remaining balance, and decrements the balance. Returns nil when the
// balance was already zero. The reference is kept only for methods that
// require one.
func (s *PlanService) RegisterInstallment(tx *gorm.DB, plan *models.Plan, saleID uint, amount decimal.Decimal, method string, reference *string, notes *string, paidAt time.Time) (*models.Installment, error) {
	if !plan.IsOpen() {
		return nil, &PlanError{Reason: PlanNotOpen, PlanID: plan.ID}
	}
	amount = billing.Round(amount)
	if !amount.IsPositive() {
		return nil, validationErr("abonos", "installment amount must be positive")
	}

	balanceBefore := billing.Round(plan.Balance)
	if !balanceBefore.IsPositive() {
		return nil, nil
	}
	effective, balanceAfter := capInstallment(balanceBefore, amount)

	method = billing.NormalizeMethod(method)
	if !billing.RequiresReference(method) {
		reference = nil
	}

	inst := models.Installment{
		PlanID:        plan.ID,
		SaleID:        saleID,
		Amount:        effective,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		PaidAt:        paidAt,
		Method:        method,
		Reference:     reference,
		Notes:         notes,
	}
	if err := tx.Create(&inst).Error; err != nil {
		return nil, err
	}

	plan.Balance = balanceAfter
	plan.LastInstallmentAt = &paidAt
	if err := tx.Model(plan).Updates(map[string]any{
		"balance":             balanceAfter,
		"last_installment_at": paidAt,
	}).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

// SettlePlan closes an open plan against a target net computed by the
// caller at the sale's reference date:
//
//  1. delta = max(0, targetNet - prior installments) is charged as the
//     final installment, capped at the balance; if delta is zero but a
//     balance remains, the balance itself is charged so the plan cannot
//     get stuck open.
//  2. The balance is forced to zero and the state moves to settled.
//  3. A Settlement row records the adjustment against the original total;
//     at most one per plan, re-settling is a no-op.
//
// Returns the final installment, or nil when nothing remained to charge.
func (s *PlanService) SettlePlan(tx *gorm.DB, plan *models.Plan, saleID uint, targetNet decimal.Decimal, method string, reference *string, ruleNote *string, at time.Time) (*models.Installment, error) {
	if !plan.IsOpen() {
		return nil, nil
	}

	targetNet = billing.Round(targetNet)
	prior, err := s.SumInstallments(tx, plan.ID)
	if err != nil {
		return nil, err
	}
	balance := billing.Round(plan.Balance)

	var final *models.Installment
	if balance.IsPositive() {
		amount := settlementCharge(balance, targetNet, prior)
		if amount.IsPositive() {
			note := "Liquidación automática"
			final, err = s.RegisterInstallment(tx, plan, saleID, amount, method, reference, &note, at)
			if err != nil {
				return nil, err
			}
		}
	}

	plan.Balance = decimal.Zero
	plan.State = models.PlanSettled
	if err := tx.Model(plan).Updates(map[string]any{
		"balance": decimal.Zero,
		"state":   models.PlanSettled,
	}).Error; err != nil {
		return nil, err
	}

	if err := s.ensureSettlement(tx, plan, saleID, targetNet, ruleNote, at); err != nil {
		return nil, err
	}
	return final, nil
}

// ensureSettlement creates the settlement row once; existing rows are left
// untouched so repeated settlement attempts stay idempotent.
func (s *PlanService) ensureSettlement(tx *gorm.DB, plan *models.Plan, saleID uint, targetNet decimal.Decimal, ruleNote *string, at time.Time) error {
	var existing models.Settlement
	err := tx.Where("plan_id = ?", plan.ID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	discount, surcharge := billing.SettlementAdjustment(plan.OriginalTotal, targetNet)
	settlement := models.Settlement{
		PlanID:           plan.ID,
		FinalSaleID:      saleID,
		SettledAt:        at,
		DiscountApplied:  discount,
		SurchargeApplied: surcharge,
		CalculationBase:  "total_original",
		RuleNote:         ruleNote,
	}
	err = tx.Create(&settlement).Error
	if isDuplicateKey(err) {
		return nil
	}
	return err
}

// SettlementTarget evaluates the plan's snapshotted policy at a reference
// date and returns the net the student must end up paying, with a note
// describing which rule fired. No policy in vigency means the original
// total plus any surcharge.
func SettlementTarget(plan *models.Plan, refDate time.Time) (decimal.Decimal, *string) {
	base := billing.Round(plan.OriginalTotal)
	day := time.Date(refDate.Year(), refDate.Month(), refDate.Day(), 0, 0, 0, 0, time.UTC)

	inVigency := true
	if plan.ValidFrom != nil && day.Before(time.Date(plan.ValidFrom.Year(), plan.ValidFrom.Month(), plan.ValidFrom.Day(), 0, 0, 0, 0, time.UTC)) {
		inVigency = false
	}
	if plan.ValidUntil != nil && day.After(time.Date(plan.ValidUntil.Year(), plan.ValidUntil.Month(), plan.ValidUntil.Day(), 0, 0, 0, 0, time.UTC)) {
		inVigency = false
	}

	if plan.ApplyDiscountOnSettle && inVigency && plan.DiscountPct != nil && *plan.DiscountPct > 0 {
		discount := billing.Round(base.Mul(billing.FromFloat(*plan.DiscountPct)).Div(decimal.NewFromInt(100)))
		if plan.MaxDiscount != nil {
			discount = decimal.Min(discount, billing.Round(*plan.MaxDiscount))
		}
		note := fmt.Sprintf("descuento %.2f%% sobre total original", *plan.DiscountPct)
		return billing.Round(base.Sub(discount)), &note
	}

	surcharge := decimal.Zero
	if plan.SurchargePct != nil && *plan.SurchargePct > 0 {
		surcharge = billing.Round(base.Mul(billing.FromFloat(*plan.SurchargePct)).Div(decimal.NewFromInt(100)))
	}
	if plan.FixedSurcharge != nil {
		surcharge = billing.Round(surcharge.Add(*plan.FixedSurcharge))
	}
	if surcharge.IsPositive() {
		note := "recargo sobre total original"
		return billing.Round(base.Add(surcharge)), &note
	}
	return base, nil
}

// DeleteInstallment reverses one movement: the amount goes back onto the
// plan's balance (capped at the original total) and a settled plan reopens,
// dropping its settlement record.
func (s *PlanService) DeleteInstallment(tx *gorm.DB, installmentID uint) error {
	var inst models.Installment
	if err := tx.First(&inst, installmentID).Error; err != nil {
		return err
	}
	var plan models.Plan
	if err := tx.First(&plan, inst.PlanID).Error; err != nil {
		return err
	}

	restored := billing.Round(plan.Balance.Add(inst.Amount))
	if restored.GreaterThan(plan.OriginalTotal) {
		restored = plan.OriginalTotal
	}

	updates := map[string]any{"balance": restored}
	if plan.State == models.PlanSettled {
		updates["state"] = models.PlanOpen
		if err := tx.Where("plan_id = ?", plan.ID).Delete(&models.Settlement{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Model(&plan).Updates(updates).Error; err != nil {
		return err
	}
	return tx.Delete(&inst).Error
}

// MarkDelivered flags a deliverable plan's item as handed over.
func (s *PlanService) MarkDelivered(planID uint, by string) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.First(&plan, planID).Error; err != nil {
		return nil, err
	}
	if !plan.Deliverable {
		return nil, validationErr("abonos", "plan %d is not deliverable", planID)
	}
	now := time.Now()
	plan.Delivered = true
	plan.DeliveredAt = &now
	plan.DeliveredBy = &by
	if err := s.db.Model(&plan).Updates(map[string]any{
		"delivered":    true,
		"delivered_at": now,
		"delivered_by": by,
	}).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// CancelPlan closes an open plan without settlement.
func (s *PlanService) CancelPlan(tx *gorm.DB, planID uint) error {
	var plan models.Plan
	if err := tx.First(&plan, planID).Error; err != nil {
		return err
	}
	if !plan.IsOpen() {
		return &PlanError{Reason: PlanNotOpen, PlanID: plan.ID}
	}
	return tx.Model(&plan).Update("state", models.PlanCancelled).Error
}

// PlansForStudent lists a student's plans, optionally filtered by state,
// newest first, with installments and settlement preloaded.
func (s *PlanService) PlansForStudent(studentID uint, state string) ([]models.Plan, error) {
	q := s.db.Where("student_id = ?", studentID)
	if state != "" {
		q = q.Where("state = ?", strings.ToLower(strings.TrimSpace(state)))
	}
	var plans []models.Plan
	err := q.Preload("Installments").Preload("Settlement").
		Order("created_at DESC").Find(&plans).Error
	return plans, err
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key")
}
