package middleware

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/services"
)

// ErrorResponse is the JSON body every failed request gets. Field matches
// the form section that caused the failure so clients can highlight it:
// cliente, metodo_pago, referencia, articulos, pagos, abonos, db, unexpected.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// CustomErrorHandler maps service errors onto HTTP statuses. A duplicate
// submission is not an error: the client's intent was already honored, so
// it gets a 200 with already_processed set.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if errors.Is(err, services.ErrDuplicateSubmission) {
		_ = c.JSON(http.StatusOK, map[string]any{"already_processed": true})
		return
	}

	var (
		valErr   *services.ValidationError
		stockErr *services.InsufficientStockError
		planErr  *services.PlanError
		bindErrs validator.ValidationErrors
		httpErr  *echo.HTTPError
	)

	switch {
	case errors.As(err, &valErr):
		_ = c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: valErr.Message, Field: valErr.Field})

	case errors.As(err, &stockErr):
		_ = c.JSON(http.StatusConflict, ErrorResponse{Error: stockErr.Error(), Field: "articulos"})

	case errors.As(err, &planErr):
		code := http.StatusUnprocessableEntity
		switch planErr.Reason {
		case services.PlanNotFound:
			code = http.StatusNotFound
		case services.PlanOwnership:
			code = http.StatusForbidden
		case services.PlanNotOpen:
			code = http.StatusConflict
		}
		_ = c.JSON(code, ErrorResponse{Error: planErr.Error(), Field: "abonos"})

	case errors.As(err, &bindErrs):
		field := ""
		if len(bindErrs) > 0 {
			field = bindErrs[0].Field()
		}
		_ = c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Field: field})

	case errors.Is(err, gorm.ErrRecordNotFound):
		_ = c.JSON(http.StatusNotFound, ErrorResponse{Error: "record not found"})

	case errors.Is(err, gorm.ErrDuplicatedKey):
		_ = c.JSON(http.StatusConflict, ErrorResponse{Error: "conflicting record already exists", Field: "db"})

	case errors.As(err, &httpErr):
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		}
		_ = c.JSON(httpErr.Code, ErrorResponse{Error: msg})

	default:
		c.Logger().Error(err)
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "unexpected error", Field: "unexpected"})
	}
}
