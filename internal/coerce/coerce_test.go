package coerce

import (
	"reflect"
	"testing"

	"voicecapture/internal/models"
)

func TestToMapIdentity(t *testing.T) {
	in := map[string]any{"a": "b", "n": 1}
	out := ToMap(in)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected identity, got %v", out)
	}
	out["c"] = "d"
	if _, ok := in["c"]; !ok {
		t.Fatalf("map input should be returned as-is")
	}

	rec := models.Record{"item_type": "Ring"}
	if got := ToMap(rec); got["item_type"] != "Ring" {
		t.Fatalf("record not passed through: %v", got)
	}
}

func TestToMapJSON(t *testing.T) {
	out := ToMap(`{"purchased": "Yes", "asked_price": 1200, "contact_number": null}`)
	want := map[string]any{"purchased": "Yes", "asked_price": float64(1200), "contact_number": nil}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected json coercion %v", out)
	}
	if got := ToMap([]byte(`{"x":true}`)); got["x"] != true {
		t.Fatalf("bytes not parsed: %v", got)
	}
}

func TestToMapPythonLiteral(t *testing.T) {
	out := ToMap("{'a': 'b', 'c': None}")
	want := map[string]any{"a": "b", "c": nil}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected literal coercion %v", out)
	}
}

func TestToMapLiteralPreservesQuotesAndNone(t *testing.T) {
	out := ToMap(`{'design_type': "Men's Jewellery", 'original_text': 'None of these fit', 'purchased': False, 'sizes': (12, 14.5,), }`)
	if out["design_type"] != "Men's Jewellery" {
		t.Fatalf("apostrophe corrupted: %v", out["design_type"])
	}
	if out["original_text"] != "None of these fit" {
		t.Fatalf("None inside string corrupted: %v", out["original_text"])
	}
	if out["purchased"] != false {
		t.Fatalf("bool not parsed: %v", out["purchased"])
	}
	if !reflect.DeepEqual(out["sizes"], []any{float64(12), 14.5}) {
		t.Fatalf("tuple not parsed: %v", out["sizes"])
	}
}

func TestToMapWrapsOpaqueText(t *testing.T) {
	out := ToMap("not-a-json-object")
	if !reflect.DeepEqual(out, map[string]any{RawDataKey: "not-a-json-object"}) {
		t.Fatalf("unexpected wrap %v", out)
	}
	if !IsWrapped(out) {
		t.Fatalf("expected wrapped result")
	}
	broken := "{'a': 'b'"
	if got := ToMap(broken); !IsWrapped(got) || got[RawDataKey] != broken {
		t.Fatalf("unterminated literal should wrap, got %v", got)
	}
	if got := ToMap("{'a': unknown}"); !IsWrapped(got) {
		t.Fatalf("unknown identifier should wrap, got %v", got)
	}
	if got := ToMap(`["a"]`); !IsWrapped(got) {
		t.Fatalf("json array should wrap, got %v", got)
	}
}

func TestToMapWrapsOtherValues(t *testing.T) {
	out := ToMap(42)
	if out[RawDataKey] != "42" {
		t.Fatalf("unexpected wrap of int: %v", out)
	}
	if IsWrapped(map[string]any{RawDataKey: "x", "y": 1}) {
		t.Fatalf("two-key map is not a wrap")
	}
}

func TestParseLiteralDictEscapes(t *testing.T) {
	m, err := ParseLiteralDict(`{'a': 'line\nbreak', "b": 'tab\there', 'c': 'é', 1: 'num key', 'd': 'x' 'y'}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m["a"] != "line\nbreak" || m["b"] != "tab\there" || m["c"] != "é" {
		t.Fatalf("escapes not decoded: %v", m)
	}
	if m["1"] != "num key" {
		t.Fatalf("numeric key not stringified: %v", m)
	}
	if m["d"] != "xy" {
		t.Fatalf("adjacent strings not joined: %v", m["d"])
	}
	if _, err := ParseLiteralDict(`['a']`); err == nil {
		t.Fatalf("expected error for non-dict literal")
	}
	if _, err := ParseLiteralDict(`{'a': 1} extra`); err == nil {
		t.Fatalf("expected error for trailing input")
	}
}
