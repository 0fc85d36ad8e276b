package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/billing"
	"github.com/GualbertoOm/Ballet/internal/models"
)

// recentSaleWindow is the lookback used by the last dedup guard: an
// identical client/method/reference combination inside this window is
// treated as a double submit.
const recentSaleWindow = 3 * time.Minute

// SaleService orchestrates sale registration: validation, the idempotency
// guards, stock movements, concept pricing, installments and settlement,
// all inside one database transaction.
type SaleService struct {
	db      *gorm.DB
	catalog *CatalogService
	plans   *PlanService
	idem    IdempotencyStore
}

func NewSaleService(db *gorm.DB, catalog *CatalogService, plans *PlanService, idem IdempotencyStore) *SaleService {
	return &SaleService{db: db, catalog: catalog, plans: plans, idem: idem}
}

// SaleLineInput is one merchandise line of a submission.
type SaleLineInput struct {
	ArticleID uint    `json:"article_id" validate:"required"`
	Variant   string  `json:"variant,omitempty"`
	Quantity  int     `json:"quantity" validate:"min=1"`
	unitPrice *decimal.Decimal // set internally by package expansion
}

// SalePackageInput sells a whole package; it expands into lines priced at
// the package's prorated unit prices.
type SalePackageInput struct {
	PackageID uint `json:"package_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"min=1"`
}

// SaleConceptInput attaches a payment concept to the sale.
type SaleConceptInput struct {
	ConceptID uint `json:"concept_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"min=1"`
}

// SaleInstallmentInput is one installment instruction: pay Amount against
// the plan for (Kind, ItemID) — or the explicit PlanID — creating the plan
// when allowed, or settle the plan outright.
type SaleInstallmentInput struct {
	PlanID          *uint           `json:"plan_id,omitempty"`
	Kind            models.ItemKind `json:"kind,omitempty"`
	ItemID          uint            `json:"item_id,omitempty"`
	Quantity        int             `json:"quantity,omitempty"`
	CreateIfMissing bool            `json:"create_if_missing,omitempty"`
	Amount          decimal.Decimal `json:"amount,omitempty"`
	Settle          bool            `json:"settle,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
}

// SubmitSaleInput is a full sale submission. Exactly one of StudentID and
// InstructorID must be set. An empty or pending method records a pending
// sale: stock is reserved but nothing is charged.
type SubmitSaleInput struct {
	RequestID string `json:"request_id,omitempty"`

	StudentID    *uint `json:"student_id,omitempty"`
	InstructorID *uint `json:"instructor_id,omitempty"`

	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
	SoldAt    time.Time `json:"sold_at,omitempty"`

	Lines        []SaleLineInput        `json:"lines,omitempty"`
	Packages     []SalePackageInput     `json:"packages,omitempty"`
	Concepts     []SaleConceptInput     `json:"concepts,omitempty"`
	Installments []SaleInstallmentInput `json:"installments,omitempty"`

	// Pending sales to consolidate into this one: their reserved stock is
	// restored (this sale's lines re-deduct it) and they are removed.
	ConsolidatePending []uint `json:"consolidate_pending,omitempty"`
}

// SaleResult reports what a submission produced.
type SaleResult struct {
	Sale             *models.Sale    `json:"sale"`
	Total            decimal.Decimal `json:"total"`
	LinesSubtotal    decimal.Decimal `json:"lines_subtotal"`
	ConceptsTotal    decimal.Decimal `json:"concepts_total"`
	InstallmentsPaid decimal.Decimal `json:"installments_paid"`
	DiscountAdjust   decimal.Decimal `json:"discount_adjust"`
	SurchargeAdjust  decimal.Decimal `json:"surcharge_adjust"`
	Pending          bool            `json:"pending"`
}

func isPendingMethod(normalized string) bool {
	switch normalized {
	case "", billing.MethodPending, "pendiente":
		return true
	}
	return false
}

// SubmitSale validates a submission, runs the three idempotency guards, and
// executes the whole sale in one transaction. A duplicate submission
// returns ErrDuplicateSubmission without touching the database.
func (s *SaleService) SubmitSale(ctx context.Context, in SubmitSaleInput) (*SaleResult, error) {
	method := billing.NormalizeMethod(in.Method)
	pending := isPendingMethod(method)
	if pending {
		method = billing.MethodPending
	}
	soldAt := in.SoldAt
	if soldAt.IsZero() {
		soldAt = time.Now()
	}

	if err := s.validate(in, method, pending); err != nil {
		return nil, err
	}

	var reference *string
	if !pending && billing.RequiresReference(method) {
		ref := strings.TrimSpace(in.Reference)
		reference = &ref
	}

	payloadKey := submissionKey(in, method)
	if err := s.guardDuplicates(ctx, in, method, reference, soldAt, payloadKey); err != nil {
		return nil, err
	}

	result := &SaleResult{Pending: pending}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sale := &models.Sale{
			Folio:        uuid.NewString(),
			StudentID:    in.StudentID,
			InstructorID: in.InstructorID,
			Method:       method,
			Reference:    reference,
			SoldAt:       soldAt,
		}
		if err := tx.Create(sale).Error; err != nil {
			return err
		}
		result.Sale = sale

		// Consolidation first, so stock reserved by the pending sales is
		// back on the shelf before this sale's lines deduct it again.
		for _, id := range in.ConsolidatePending {
			if err := s.consolidatePending(tx, id); err != nil {
				return err
			}
		}

		lines, err := s.expandPackages(tx, in)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, ln := range lines {
			lineTotal, err := s.sellLine(tx, sale.ID, ln)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(lineTotal)
		}
		result.LinesSubtotal = billing.Round(subtotal)

		conceptsTotal := decimal.Zero
		for _, ci := range in.Concepts {
			amount, err := s.attachConcept(tx, sale.ID, ci, method, soldAt)
			if err != nil {
				return err
			}
			conceptsTotal = conceptsTotal.Add(amount)
		}
		result.ConceptsTotal = billing.Round(conceptsTotal)

		paid := decimal.Zero
		for _, ins := range in.Installments {
			amount, discount, surcharge, err := s.applyInstallment(tx, sale, ins, method, reference, soldAt)
			if err != nil {
				return err
			}
			paid = paid.Add(amount)
			result.DiscountAdjust = result.DiscountAdjust.Add(discount)
			result.SurchargeAdjust = result.SurchargeAdjust.Add(surcharge)
		}
		result.InstallmentsPaid = billing.Round(paid)

		result.Total = billing.Round(result.LinesSubtotal.Add(result.ConceptsTotal).Add(result.InstallmentsPaid))
		if !pending && result.Total.IsPositive() {
			charge := models.SaleCharge{
				SaleID:    sale.ID,
				Method:    method,
				Reference: reference,
				Amount:    result.Total,
				ChargedAt: soldAt,
			}
			if err := tx.Create(&charge).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.markProcessed(ctx, in.RequestID, payloadKey)
	return result, nil
}

func (s *SaleService) validate(in SubmitSaleInput, method string, pending bool) error {
	hasStudent := in.StudentID != nil && *in.StudentID != 0
	hasInstructor := in.InstructorID != nil && *in.InstructorID != 0
	if hasStudent == hasInstructor {
		return validationErr("cliente", "select exactly one of student or instructor")
	}

	if hasInstructor {
		if len(in.Lines) == 0 && len(in.Packages) == 0 {
			return validationErr("articulos", "an instructor sale needs at least one article")
		}
		if len(in.Concepts) > 0 {
			return validationErr("pagos", "payment concepts apply only to students")
		}
		if len(in.Installments) > 0 {
			return validationErr("abonos", "installments apply only to students")
		}
	} else {
		if len(in.Lines) == 0 && len(in.Packages) == 0 && len(in.Concepts) == 0 && len(in.Installments) == 0 {
			return validationErr("articulos", "add articles, payment concepts or installments")
		}
	}

	if pending {
		if len(in.Installments) > 0 {
			return validationErr("abonos", "installments need a payment method; pending sales carry none")
		}
		return nil
	}
	if method == "" {
		return validationErr("metodo_pago", "a payment method is required")
	}
	if billing.RequiresReference(method) && strings.TrimSpace(in.Reference) == "" {
		return validationErr("referencia", "a reference is required for card, transfer or deposit")
	}
	return nil
}

// guardDuplicates runs the three pre-mutation dedup checks: client request
// id, canonical payload hash, and a recent identical sale in the database.
func (s *SaleService) guardDuplicates(ctx context.Context, in SubmitSaleInput, method string, reference *string, soldAt time.Time, payloadKey string) error {
	if s.idem != nil {
		if rid := strings.TrimSpace(in.RequestID); rid != "" {
			seen, err := s.idem.Seen(ctx, "req:"+rid)
			if err == nil && seen {
				return ErrDuplicateSubmission
			}
		}
		seen, err := s.idem.Seen(ctx, "payload:"+payloadKey)
		if err == nil && seen {
			return ErrDuplicateSubmission
		}
	}

	if isPendingMethod(method) {
		return nil
	}
	q := s.db.Model(&models.Sale{}).
		Where("method = ? AND sold_at > ?", method, soldAt.Add(-recentSaleWindow))
	if in.StudentID != nil {
		q = q.Where("student_id = ?", *in.StudentID)
	} else {
		q = q.Where("instructor_id = ?", *in.InstructorID)
	}
	if reference != nil {
		q = q.Where("reference = ?", *reference)
	} else {
		q = q.Where("reference IS NULL")
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateSubmission
	}
	return nil
}

func (s *SaleService) markProcessed(ctx context.Context, requestID, payloadKey string) {
	if s.idem == nil {
		return
	}
	if rid := strings.TrimSpace(requestID); rid != "" {
		if err := s.idem.Mark(ctx, "req:"+rid); err != nil {
			log.Printf("idempotency mark failed for request %s: %v", rid, err)
		}
	}
	if err := s.idem.Mark(ctx, "payload:"+payloadKey); err != nil {
		log.Printf("idempotency mark failed for payload: %v", err)
	}
}

// submissionKey hashes the canonical form of a submission: client, method
// and every movement, sorted, so equal payloads hash equally regardless of
// input order.
func submissionKey(in SubmitSaleInput, method string) string {
	parts := make([]string, 0, len(in.Lines)+len(in.Packages)+len(in.Concepts)+len(in.Installments))
	for _, l := range in.Lines {
		parts = append(parts, fmt.Sprintf("L|%d|%s|%d", l.ArticleID, strings.ToLower(l.Variant), l.Quantity))
	}
	for _, p := range in.Packages {
		parts = append(parts, fmt.Sprintf("P|%d|%d", p.PackageID, p.Quantity))
	}
	for _, c := range in.Concepts {
		parts = append(parts, fmt.Sprintf("C|%d|%d", c.ConceptID, c.Quantity))
	}
	for _, a := range in.Installments {
		planID := uint(0)
		if a.PlanID != nil {
			planID = *a.PlanID
		}
		parts = append(parts, fmt.Sprintf("A|%s|%d|%d|%s|%t", a.Kind, a.ItemID, planID, billing.Round(a.Amount).StringFixed(2), a.Settle))
	}
	sort.Strings(parts)

	var sb strings.Builder
	if in.StudentID != nil {
		fmt.Fprintf(&sb, "E%d|", *in.StudentID)
	}
	if in.InstructorID != nil {
		fmt.Fprintf(&sb, "I%d|", *in.InstructorID)
	}
	sb.WriteString(method)
	sb.WriteString("|")
	sb.WriteString(strings.TrimSpace(strings.ToLower(in.Reference)))
	for _, p := range parts {
		sb.WriteString("|")
		sb.WriteString(p)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// expandPackages turns package inputs into article lines priced at the
// package's prorated unit prices, appended after the explicit lines.
func (s *SaleService) expandPackages(tx *gorm.DB, in SubmitSaleInput) ([]SaleLineInput, error) {
	lines := make([]SaleLineInput, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		lines = append(lines, l)
	}
	for _, p := range in.Packages {
		qty := p.Quantity
		if qty < 1 {
			qty = 1
		}
		info, err := s.catalog.PackageInfoByID(tx, p.PackageID)
		if err != nil {
			return nil, err
		}
		for _, item := range info.Lines {
			price := item.ProratedUnitPrice
			variant := ""
			if item.Variant != nil {
				variant = *item.Variant
			}
			lines = append(lines, SaleLineInput{
				ArticleID: item.ArticleID,
				Variant:   variant,
				Quantity:  item.Quantity * qty,
				unitPrice: &price,
			})
		}
	}
	return lines, nil
}

// requireVariant rejects a variantless line against a variant-tracked
// article: the aggregate count cannot say which size or number to deduct,
// so the line must name one.
func requireVariant(article *models.Article, variant string) error {
	if article.HasVariants() && strings.TrimSpace(variant) == "" {
		return validationErr("articulos", "article %s is tracked by %s; select one", article.Name, article.VariantKind)
	}
	return nil
}

// sellLine checks and deducts stock for one line, then records it with the
// unit price captured at sale time.
func (s *SaleService) sellLine(tx *gorm.DB, saleID uint, ln SaleLineInput) (decimal.Decimal, error) {
	article, err := s.catalog.ArticleByID(tx, ln.ArticleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, validationErr("articulos", "article %d does not exist", ln.ArticleID)
		}
		return decimal.Zero, err
	}
	if err := requireVariant(article, ln.Variant); err != nil {
		return decimal.Zero, err
	}

	available := article.AvailableFor(ln.Variant)
	if available < ln.Quantity {
		return decimal.Zero, &InsufficientStockError{
			ArticleID: article.ID,
			Article:   article.Name,
			Variant:   ln.Variant,
			Requested: ln.Quantity,
			Available: available,
		}
	}
	article.AdjustStock(ln.Variant, -ln.Quantity)
	if err := tx.Model(article).Updates(map[string]any{
		"stock":         article.Stock,
		"variant_stock": article.VariantStock,
	}).Error; err != nil {
		return decimal.Zero, err
	}

	unit := billing.Round(article.Price)
	if ln.unitPrice != nil {
		unit = billing.Round(*ln.unitPrice)
	}
	var variant *string
	if ln.Variant != "" {
		v := ln.Variant
		variant = &v
	}
	line := models.SaleLine{
		SaleID:    saleID,
		ArticleID: article.ID,
		Variant:   variant,
		Quantity:  ln.Quantity,
		UnitPrice: unit,
	}
	if err := tx.Create(&line).Error; err != nil {
		return decimal.Zero, err
	}
	return line.Subtotal(), nil
}

// attachConcept snapshots a concept onto the sale at its net price for the
// sale's method and date.
func (s *SaleService) attachConcept(tx *gorm.DB, saleID uint, ci SaleConceptInput, method string, soldAt time.Time) (decimal.Decimal, error) {
	concept, err := s.catalog.ConceptByID(tx, ci.ConceptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, validationErr("pagos", "payment concept %d does not exist", ci.ConceptID)
		}
		return decimal.Zero, err
	}
	if concept.IsExpired(soldAt) {
		return decimal.Zero, validationErr("pagos", "payment concept %s expired on %s",
			concept.Name, concept.ExpiresAt.Format("2006-01-02"))
	}
	qty := ci.Quantity
	if qty < 1 {
		qty = 1
	}
	info := NewConceptInfo(*concept)
	net := info.NetFor(qty, method, soldAt)

	row := models.SaleConcept{
		SaleID:    saleID,
		ConceptID: &concept.ID,
		Kind:      models.ChargeConcept,
		Label:     concept.Name,
		Quantity:  qty,
		Amount:    net.Net,
	}
	if err := tx.Create(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return net.Net, nil
}

// applyInstallment resolves the plan and registers the movement. A settle
// instruction (or a plain installment that zeroes the balance) closes the
// plan against its policy target and appends the adjustment to the sale as
// a synthetic concept row. Returns (cash charged, discount, surcharge).
func (s *SaleService) applyInstallment(tx *gorm.DB, sale *models.Sale, ins SaleInstallmentInput, method string, reference *string, soldAt time.Time) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	zero := decimal.Zero
	plan, err := s.plans.ResolvePlan(tx, PlanSpec{
		StudentID:       *sale.StudentID,
		ExplicitPlanID:  ins.PlanID,
		Kind:            ins.Kind,
		ItemID:          ins.ItemID,
		Quantity:        ins.Quantity,
		CreateIfMissing: ins.CreateIfMissing,
	})
	if err != nil {
		return zero, zero, zero, err
	}

	if ins.Settle {
		target, note := SettlementTarget(plan, soldAt)
		final, err := s.plans.SettlePlan(tx, plan, sale.ID, target, method, reference, note, soldAt)
		if err != nil {
			return zero, zero, zero, err
		}
		discount, surcharge, err := s.recordAdjustments(tx, sale.ID, plan)
		if err != nil {
			return zero, zero, zero, err
		}
		paid := zero
		if final != nil {
			paid = final.Amount
		}
		return paid, discount, surcharge, nil
	}

	inst, err := s.plans.RegisterInstallment(tx, plan, sale.ID, ins.Amount, method, reference, ins.Notes, soldAt)
	if err != nil {
		return zero, zero, zero, err
	}
	paid := zero
	if inst != nil {
		paid = inst.Amount
	}

	// Paying off the full balance settles the plan in the same breath.
	if plan.Balance.IsZero() && plan.IsOpen() {
		target, note := SettlementTarget(plan, soldAt)
		if _, err := s.plans.SettlePlan(tx, plan, sale.ID, target, method, reference, note, soldAt); err != nil {
			return zero, zero, zero, err
		}
		discount, surcharge, err := s.recordAdjustments(tx, sale.ID, plan)
		if err != nil {
			return zero, zero, zero, err
		}
		return paid, discount, surcharge, nil
	}
	return paid, zero, zero, nil
}

// recordAdjustments copies the plan's settlement adjustment onto the sale
// as synthetic concept rows. They document the write-off (or extra charge)
// against the original total; the cash total only counts real movements.
func (s *SaleService) recordAdjustments(tx *gorm.DB, saleID uint, plan *models.Plan) (decimal.Decimal, decimal.Decimal, error) {
	var settlement models.Settlement
	err := tx.Where("plan_id = ?", plan.ID).First(&settlement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if settlement.DiscountApplied.IsPositive() {
		row := models.SaleConcept{
			SaleID:   saleID,
			Kind:     models.ChargeDiscountAdjustment,
			Label:    fmt.Sprintf("Descuento liquidación plan #%d", plan.ID),
			Quantity: 1,
			Amount:   settlement.DiscountApplied.Neg(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	if settlement.SurchargeApplied.IsPositive() {
		row := models.SaleConcept{
			SaleID:   saleID,
			Kind:     models.ChargeSurchargeAdjustment,
			Label:    fmt.Sprintf("Recargo liquidación plan #%d", plan.ID),
			Quantity: 1,
			Amount:   settlement.SurchargeApplied,
		}
		if err := tx.Create(&row).Error; err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	return settlement.DiscountApplied, settlement.SurchargeApplied, nil
}

// consolidatePending removes one pending sale, restoring the stock its
// lines reserved. Sales that are not pending are skipped.
func (s *SaleService) consolidatePending(tx *gorm.DB, saleID uint) error {
	var sale models.Sale
	err := tx.Preload("Lines").First(&sale, saleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sale.IsPending() {
		return nil
	}

	if err := s.restoreStock(tx, sale.Lines); err != nil {
		return err
	}
	if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleLine{}).Error; err != nil {
		return err
	}
	if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleConcept{}).Error; err != nil {
		return err
	}
	return tx.Delete(&sale).Error
}

func (s *SaleService) restoreStock(tx *gorm.DB, lines []models.SaleLine) error {
	for _, ln := range lines {
		article, err := s.catalog.ArticleByID(tx, ln.ArticleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		variant := ""
		if ln.Variant != nil {
			variant = *ln.Variant
		}
		article.AdjustStock(variant, ln.Quantity)
		if err := tx.Model(article).Updates(map[string]any{
			"stock":         article.Stock,
			"variant_stock": article.VariantStock,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteSale removes a sale and puts its merchandise back in stock.
// Installments recorded through the sale stay; reversing those is an
// explicit, separate operation.
func (s *SaleService) DeleteSale(saleID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := tx.Preload("Lines").First(&sale, saleID).Error; err != nil {
			return err
		}
		if err := s.restoreStock(tx, sale.Lines); err != nil {
			return err
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleLine{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleConcept{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleCharge{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sale).Error
	})
}

// PendingSales lists sales awaiting payment, newest first.
func (s *SaleService) PendingSales() ([]models.Sale, error) {
	var sales []models.Sale
	err := s.db.Preload("Lines.Article").Preload("Concepts").
		Preload("Student").Preload("Instructor").
		Where("method = ? OR method = '' OR method = ?", billing.MethodPending, "pendiente").
		Order("sold_at DESC").Find(&sales).Error
	return sales, err
}

// SaleByID loads a sale with every association for a detail view.
func (s *SaleService) SaleByID(saleID uint) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.Preload("Lines.Article").Preload("Concepts.Concept").
		Preload("Charges").Preload("Student").Preload("Instructor").
		First(&sale, saleID).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}
