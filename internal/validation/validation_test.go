package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Query string  `json:"query" validate:"required"`
	Alpha float64 `json:"alpha" validate:"gte=0,lte=1"`
	Mode  string  `yaml:"mode" validate:"oneof=a b"`
}

func TestStructReportsTaggedNames(t *testing.T) {
	err := Struct(sample{Alpha: 2, Mode: "c"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("want *Error, got %v", err)
	}
	want := map[string]string{
		"query": "query is required",
		"alpha": "alpha must be less than or equal to 1",
		"mode":  "mode must be one of: a b",
	}
	for k, msg := range want {
		if verr.Fields[k] != msg {
			t.Errorf("field %s: got %q, want %q", k, verr.Fields[k], msg)
		}
	}
	if !strings.HasPrefix(err.Error(), "validation failed: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStructValid(t *testing.T) {
	if err := Struct(sample{Query: "q", Alpha: 0.5, Mode: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
