package llm

import (
	"reflect"
	"testing"
)

func TestCoerceObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]interface{}
		ok   bool
	}{
		{"clean", `{"name": "Jane Doe"}`, map[string]interface{}{"name": "Jane Doe"}, true},
		{"fenced", "```json\n{\"name\": \"Jane Doe\"}\n```", map[string]interface{}{"name": "Jane Doe"}, true},
		{"leading prose", `Sure! Here is the JSON: {"domain": "Banking"}`, map[string]interface{}{"domain": "Banking"}, true},
		{"trailing prose", `{"domain": "Banking"} I hope this helps.`, map[string]interface{}{"domain": "Banking"}, true},
		{"nested braces in prose", `result {"a": {"b": 1}} done`, map[string]interface{}{"a": map[string]interface{}{"b": float64(1)}}, true},
		{"brace inside string", `{"note": "uses { everywhere"}`, map[string]interface{}{"note": "uses { everywhere"}, true},
		{"no json", "there is nothing here", nil, false},
		{"empty", "", nil, false},
		{"unbalanced", `{"a": 1`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceObject(tt.raw)
			if ok != tt.ok {
				t.Fatalf("CoerceObject(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if tt.ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CoerceObject(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCoerceString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		key  string
		want string
		ok   bool
	}{
		{"present", `{"name": "Jane Doe"}`, "name", "Jane Doe", true},
		{"trimmed", `{"name": "  Jane  "}`, "name", "Jane", true},
		{"null sentinel", `{"name": "null"}`, "name", "", false},
		{"none sentinel", `{"name": "None"}`, "name", "", false},
		{"empty string", `{"name": ""}`, "name", "", false},
		{"missing key", `{"other": "x"}`, "name", "", false},
		{"non-string value", `{"name": 42}`, "name", "", false},
		{"json null", `{"name": null}`, "name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceString(tt.raw, tt.key)
			if ok != tt.ok || got != tt.want {
				t.Errorf("CoerceString(%q, %q) = (%q, %v), want (%q, %v)",
					tt.raw, tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCoerceStringList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"keyed", `{"skills": ["python", "sql"]}`, []string{"python", "sql"}},
		{"bare array", `["python", "sql"]`, []string{"python", "sql"}},
		{"fenced bare array", "```\n[\"go\"]\n```", []string{"go"}},
		{"drops sentinels", `{"skills": ["python", "null", ""]}`, []string{"python"}},
		{"drops non-strings", `{"skills": ["python", 3, {"x":1}]}`, []string{"python"}},
		{"garbage", "no skills at all", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceStringList(tt.raw, "skills")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CoerceStringList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

// Coercion must never panic, whatever the model produced.
func TestCoerceNeverPanics(t *testing.T) {
	inputs := []string{
		"", "{", "}", "[", "]", "```", "```json", `{"a":`, `[[[`,
		"\x00\xff", `{"a": "\"}`, "]]]}}}",
	}
	for _, in := range inputs {
		CoerceObject(in)
		CoerceArray(in)
		CoerceString(in, "k")
		CoerceStringList(in, "k")
	}
}
