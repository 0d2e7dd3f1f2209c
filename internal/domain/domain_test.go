package domain

import (
	"strings"
	"testing"
)

func TestNormalizeTickers(t *testing.T) {
	got := NormalizeTickers([]string{" au9999.ss ", "gc=f", "", "AU9999.SS", "  "})
	want := []string{"AU9999.SS", "GC=F"}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCleanTickers_KeepsDuplicates(t *testing.T) {
	got := CleanTickers([]string{" a ", "", "b", "A"})
	want := []string{"A", "B", "A"}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCanonUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mwh", "MWh"},
		{" mm btu ", "MMBtu"},
		{"Tons", "mt"},
		{"USDperEUR", "USDperEUR"},
		{" lots ", "lots"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CanonUnit(tt.in); got != tt.want {
			t.Errorf("CanonUnit(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransformNormalize_Defaults(t *testing.T) {
	tr := Transform{
		DerivedTicker: " ttf_usd ",
		BaseTicker:    "ttf=f",
		FxTicker:      " eurusd=x",
		FxOp:          "bogus",
		TargetUnit:    "mmbtu",
	}

	defaulted := tr.Normalize()

	if !defaulted {
		t.Error("expected zero divider to be reported as defaulted")
	}
	if tr.TransformID != "TTF_USD" {
		t.Errorf("expected id to default to derived ticker, got %q", tr.TransformID)
	}
	if tr.FxOp != FxMul {
		t.Errorf("expected fx op mul, got %q", tr.FxOp)
	}
	if tr.Multiplier != 1 || tr.Divider != 1 {
		t.Errorf("expected multiplier/divider 1/1, got %v/%v", tr.Multiplier, tr.Divider)
	}
	if tr.TargetUnit != "MMBtu" {
		t.Errorf("expected MMBtu, got %q", tr.TargetUnit)
	}
	if !tr.Uses("EURUSD=X") || !tr.Uses("TTF=F") || tr.Uses("TTF_USD") {
		t.Error("Uses should match base and fx only")
	}
}

func TestMergeMeta_KeepsExistingOnEmpty(t *testing.T) {
	existing := Instrument{Ticker: "A", Currency: "USD", Unit: "bbl", Category: "energy"}
	update := Instrument{Ticker: "A", Name: "Alpha"}

	got := MergeMeta(existing, update)

	if got.Currency != "USD" || got.Unit != "bbl" || got.Category != "energy" {
		t.Errorf("empty metadata overwrote stored values: %+v", got)
	}
	if got.Name != "Alpha" {
		t.Errorf("expected name to be updated, got %q", got.Name)
	}
}

func TestPriceField(t *testing.T) {
	c := 10.5
	v := int64(300)
	bar := &Bar{Close: &c, Volume: &v}

	if got, ok := FieldClose.Value(bar); !ok || got != 10.5 {
		t.Errorf("close: got %v %v", got, ok)
	}
	if got, ok := FieldVolume.Value(bar); !ok || got != 300 {
		t.Errorf("volume: got %v %v", got, ok)
	}
	if _, ok := FieldOpen.Value(bar); ok {
		t.Error("open should be missing")
	}
	if PriceField("vwap").IsValid() {
		t.Error("vwap is not an allowed field")
	}
}

func TestTruncateMessage(t *testing.T) {
	long := strings.Repeat("é", MaxAuditMessage)
	got := TruncateMessage(long)
	if len(got) > MaxAuditMessage {
		t.Fatalf("message not truncated: %d bytes", len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncation should keep a prefix")
	}
	for _, r := range got {
		if r != 'é' {
			t.Fatalf("truncation split a rune: %q", r)
		}
	}
}
