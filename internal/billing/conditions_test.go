package billing

import (
	"reflect"
	"testing"
)

func TestParseConditions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"json array", `["efectivo","tarjeta"]`, []string{"efectivo", "tarjeta"}},
		{"json array mixed case", `["Efectivo"," TARJETA "]`, []string{"efectivo", "tarjeta"}},
		{"json string wraps csv", `"efectivo,transferencia"`, []string{"efectivo", "transferencia"}},
		{"plain csv", "efectivo,tarjeta", []string{"efectivo", "tarjeta"}},
		{"semicolons", "efectivo; tarjeta", []string{"efectivo", "tarjeta"}},
		{"pipes", "efectivo|deposito", []string{"efectivo", "deposito"}},
		{"mixed separators", "efectivo, tarjeta; deposito|spei", []string{"efectivo", "tarjeta", "deposito", "spei"}},
		{"single value", "efectivo", []string{"efectivo"}},
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"empty json array", "[]", nil},
		{"separators only", ",;|", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseConditions(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseConditions(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
