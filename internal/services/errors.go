package services

import (
	"errors"
	"fmt"
)

// ErrDuplicateSubmission means one of the idempotency guards matched. It is
// not a failure: the caller reports the original submission's outcome and
// performs no further mutation.
var ErrDuplicateSubmission = errors.New("submission already processed")

// ValidationError covers client/selection/method/reference problems caught
// before any mutation. Field tells the caller which input to highlight:
// cliente, metodo_pago, referencia, articulos, pagos, abonos.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Field, e.Message)
}

func validationErr(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the article (and variant, when tracked) that
// could not cover the requested quantity.
type InsufficientStockError struct {
	ArticleID uint
	Article   string
	Variant   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
			e.Article, e.Variant, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Article, e.Requested, e.Available)
}

// PlanErrorReason classifies plan resolution failures.
type PlanErrorReason string

const (
	PlanNotFound  PlanErrorReason = "not_found"
	PlanNotOpen   PlanErrorReason = "not_open"
	PlanOwnership PlanErrorReason = "ownership"
	PlanRequired  PlanErrorReason = "plan_required"
)

// PlanError is raised while resolving or mutating a plan; the whole sale
// transaction is rolled back when one surfaces.
type PlanError struct {
	Reason PlanErrorReason
	PlanID uint
}

func (e *PlanError) Error() string {
	switch e.Reason {
	case PlanNotFound:
		return fmt.Sprintf("plan %d does not exist", e.PlanID)
	case PlanNotOpen:
		return fmt.Sprintf("plan %d is not open", e.PlanID)
	case PlanOwnership:
		return fmt.Sprintf("plan %d belongs to a different student", e.PlanID)
	default:
		return "no open plan exists and creating one was not authorized"
	}
}
