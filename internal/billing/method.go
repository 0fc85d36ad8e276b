package billing

import "strings"

// Canonical payment methods. Anything else passes through lower-cased.
const (
	MethodCash     = "efectivo"
	MethodCard     = "tarjeta"
	MethodTransfer = "transferencia"
	MethodDeposit  = "deposito"
)

// MethodPending marks a sale recorded without a payment yet; it is stored on
// the sale's method column and excluded from every charge computation.
const MethodPending = "__pendiente__"

var methodAliases = map[string]string{
	"cash":                   MethodCash,
	"spei":                   MethodTransfer,
	"mercado pago":           MethodCard,
	"mercadopago":            MethodCard,
	"tarjeta de crédito":     MethodCard,
	"tarjeta de debito":      MethodCard,
	"tarjeta de débito":      MethodCard,
	"debito":                 MethodCard,
	"débito":                 MethodCard,
	"transferencia bancaria": MethodTransfer,
	"depósito":               MethodDeposit,
	"deposito bancario":      MethodDeposit,
}

// NormalizeMethod lower-cases and trims a raw payment method and maps known
// synonyms onto the canonical set. Unrecognized strings are passed through
// rather than rejected; historical records mix free text with the canon.
func NormalizeMethod(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if canon, ok := methodAliases[v]; ok {
		return canon
	}
	return v
}

// RequiresReference reports whether a normalized method must carry a
// non-empty reference code (card, transfer and deposit do; cash does not).
func RequiresReference(method string) bool {
	switch method {
	case MethodCard, MethodTransfer, MethodDeposit:
		return true
	}
	return false
}
