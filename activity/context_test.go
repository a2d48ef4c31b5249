package activity

import (
	"errors"
	"reflect"
	"testing"
)

func TestVars(t *testing.T) {
	v := NewVars()
	v.Set("b", 1)
	v.Set("a", 2)
	v.Set("b", 3)

	if got := v.Keys(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("expected insertion order [b a], got %v", got)
	}
	if got, _ := v.Get("b"); got != 3 {
		t.Errorf("expected overwritten value 3, got %v", got)
	}
	if v.Len() != 2 {
		t.Errorf("expected 2 keys, got %d", v.Len())
	}

	clone := v.Clone()
	clone.Set("c", 4)
	if v.Has("c") {
		t.Error("expected clone to be independent")
	}
}

func TestVarsFromMap_SortsKeys(t *testing.T) {
	v := VarsFromMap(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	if got := v.Keys(); !reflect.DeepEqual(got, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("expected sorted keys, got %v", got)
	}
}

func TestContext_Layers(t *testing.T) {
	initial := map[string]any{"params": "p", "model": nil}
	c := NewContext(initial)

	c.Set("model", "Object")
	c.Set("status", "ok")

	if got := c.Value("model"); got != "Object" {
		t.Errorf("expected mutable value to win, got %v", got)
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"model", "params", "status"}) {
		t.Errorf("expected shadow keys then new keys, got %v", got)
	}

	shadow, mutable := c.Decompose()
	if !reflect.DeepEqual(shadow.Keys(), []string{"model", "params"}) {
		t.Errorf("unexpected shadow keys %v", shadow.Keys())
	}
	if !reflect.DeepEqual(mutable.Keys(), []string{"model", "status"}) {
		t.Errorf("unexpected mutable keys %v", mutable.Keys())
	}

	initial["params"] = "changed"
	if got := c.Value("params"); got != "p" {
		t.Errorf("expected initial map to be copied, got %v", got)
	}
}

func TestContext_ContextFromKeepsOrder(t *testing.T) {
	v := NewVars()
	v.Set("params", 1)
	v.Set("mode", 2)
	c := ContextFrom(v)
	v.Set("late", 3)

	if got := c.Keys(); !reflect.DeepEqual(got, []string{"params", "mode"}) {
		t.Errorf("expected [params mode], got %v", got)
	}
}

func TestKeywords_Require(t *testing.T) {
	kw := Keywords{"user": "Module"}

	if v, err := kw.Require("user"); err != nil || v != "Module" {
		t.Errorf("expected Module, got %v (%v)", v, err)
	}

	_, err := kw.Require("params")
	var missing *MissingInputError
	if !errors.As(err, &missing) || missing.Key != "params" {
		t.Fatalf("expected MissingInputError for params, got %v", err)
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Error("expected errors.Is(err, ErrMissingInput)")
	}
}
