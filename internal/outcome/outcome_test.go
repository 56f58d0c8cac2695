package outcome

import (
	"strconv"
	"testing"
)

func TestOutcome(t *testing.T) {
	p := Proceed(42)
	if v, ok := p.Value(); !ok || v != 42 || !p.Proceeded() || p.Reason() != "" {
		t.Errorf("Proceed(42) = %+v", p)
	}

	a := Abstain[int]("low confidence")
	if v, ok := a.Value(); ok || v != 0 || a.Proceeded() {
		t.Errorf("Abstain = %+v", a)
	}
	if a.Reason() != "low confidence" {
		t.Errorf("Reason() = %q", a.Reason())
	}

	var zero Outcome[string]
	if zero.Proceeded() {
		t.Error("zero value should be an abstention")
	}
}

func TestMap(t *testing.T) {
	got := Map(Proceed(7), strconv.Itoa)
	if v, _ := got.Value(); v != "7" {
		t.Errorf("Map(Proceed) = %q", v)
	}

	abst := Map(Abstain[int]("other"), strconv.Itoa)
	if abst.Proceeded() || abst.Reason() != "other" {
		t.Errorf("Map(Abstain) = %+v", abst)
	}
}
