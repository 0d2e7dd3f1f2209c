package domain

import (
	"strings"
	"time"
)

// FxOp is the operation applied between base and FX series.
type FxOp string

const (
	FxMul FxOp = "mul"
	FxDiv FxOp = "div"
)

// Transform is a declarative FX/unit conversion of a base ticker.
// Corresponds to transforms table. One active transform per derived ticker.
type Transform struct {
	TransformID    string
	DerivedTicker  string
	BaseTicker     string
	FxTicker       string // empty when no FX leg
	FxOp           FxOp
	TargetCurrency string
	TargetUnit     string
	Multiplier     float64
	Divider        float64 // never zero after Normalize
	Enabled        bool
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Normalize applies canonical forms and defaults:
// id defaults to the derived ticker, unknown fx ops become mul,
// zero multiplier/divider become 1.
// Returns true when a zero divider was replaced.
func (t *Transform) Normalize() (dividerDefaulted bool) {
	t.DerivedTicker = NormalizeTicker(t.DerivedTicker)
	t.BaseTicker = NormalizeTicker(t.BaseTicker)
	t.FxTicker = NormalizeTicker(t.FxTicker)
	t.TransformID = strings.TrimSpace(t.TransformID)
	if t.TransformID == "" {
		t.TransformID = t.DerivedTicker
	}
	op := FxOp(strings.ToLower(strings.TrimSpace(string(t.FxOp))))
	if op != FxDiv {
		op = FxMul
	}
	t.FxOp = op
	t.TargetCurrency = CanonCurrency(t.TargetCurrency)
	t.TargetUnit = CanonUnit(t.TargetUnit)
	t.Notes = strings.TrimSpace(t.Notes)
	if t.Multiplier == 0 {
		t.Multiplier = 1
	}
	if t.Divider == 0 {
		t.Divider = 1
		dividerDefaulted = true
	}
	return dividerDefaulted
}

// HasFx reports whether the transform has an FX leg.
func (t *Transform) HasFx() bool {
	return t.FxTicker != ""
}

// Uses reports whether ticker is the base or FX input of the transform.
func (t *Transform) Uses(ticker string) bool {
	return t.BaseTicker == ticker || (t.FxTicker != "" && t.FxTicker == ticker)
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
