package domain

import "strings"

// NormalizeTicker trims whitespace and uppercases a ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NormalizeTickers normalizes every ticker, dropping empties and duplicates
// while keeping the first-seen order.
func NormalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		n := NormalizeTicker(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// CleanTickers normalizes every ticker and drops empties. Duplicates are
// kept so positions stay meaningful.
func CleanTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if n := NormalizeTicker(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// CanonCurrency trims and uppercases a currency code.
func CanonCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// unitAliases maps casefolded, space-free spellings to the canonical unit.
var unitAliases = map[string]string{
	"mwh":       "MWh",
	"mmbtu":     "MMBtu",
	"usdpereur": "USDperEUR",
	"bbl":       "bbl",
	"mt":        "mt",
	"ton":       "mt",
	"tons":      "mt",
}

// CanonUnit maps common unit spellings ("Mwh", "mm btu") to a canonical form.
// Unknown units are returned trimmed.
func CanonUnit(unit string) string {
	s := strings.TrimSpace(unit)
	if s == "" {
		return ""
	}
	key := strings.ReplaceAll(strings.ToLower(s), " ", "")
	if canon, ok := unitAliases[key]; ok {
		return canon
	}
	return s
}
