package models

import (
	"encoding/json"
	"testing"
)

func TestStringListDecodesLegacyShapes(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`{"category":["Meyve","Sebze"]}`, []string{"Meyve", "Sebze"}},
		{`{"category":" Meyve "}`, []string{"Meyve"}},
		{`{"category":""}`, []string{}},
		{`{"category":null}`, nil},
	}
	for _, tc := range cases {
		var p Product
		if err := json.Unmarshal([]byte(tc.in), &p); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		if len(p.Category) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.in, p.Category, tc.want)
		}
		for i := range tc.want {
			if p.Category[i] != tc.want[i] {
				t.Fatalf("%s: got %v want %v", tc.in, p.Category, tc.want)
			}
		}
	}

	var p Product
	if err := json.Unmarshal([]byte(`{"category":42}`), &p); err == nil {
		t.Fatalf("expected error for numeric category")
	}
}

func TestStringListEncodesArray(t *testing.T) {
	out, err := json.Marshal(Product{ID: "p1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	_ = json.Unmarshal(out, &raw)
	if _, ok := raw["category"].([]any); !ok {
		t.Fatalf("category = %v, want array", raw["category"])
	}
}
