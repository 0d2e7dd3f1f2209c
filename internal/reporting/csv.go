package reporting

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"commodity-lab/internal/domain"
)

// ErrBadCSV is returned when a bars file cannot be parsed.
var ErrBadCSV = errors.New("bad csv")

// WriteSeriesCSV writes a derived series as date,value rows.
func WriteSeriesCSV(w io.Writer, points []*domain.SeriesPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ticker", "date", "value", "updated_at"}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			p.Ticker,
			p.Date.Format(time.DateOnly),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
			p.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAuditCSV writes audit entries in the given order.
func WriteAuditCSV(w io.Writer, entries []*domain.RecomputeAudit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"attempted_at", "ticker", "kind", "status", "last_success_date", "message"}); err != nil {
		return err
	}
	for _, a := range entries {
		last := ""
		if a.LastSuccessDate != nil {
			last = a.LastSuccessDate.Format(time.DateOnly)
		}
		rec := []string{
			a.AttemptedAt.UTC().Format(time.RFC3339),
			a.Ticker,
			string(a.Kind),
			a.Status.String(),
			last,
			a.Message,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderCSV renders the status report rows as CSV string.
func RenderCSV(r *StatusReport) (string, error) {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	if err := cw.Write([]string{"ticker", "kind", "definition", "currency", "unit", "points", "first_date", "last_date", "status", "message"}); err != nil {
		return "", err
	}
	for _, row := range r.Rows {
		first, last := "", ""
		if row.FirstDate != nil {
			first = row.FirstDate.Format(time.DateOnly)
		}
		if row.LastDate != nil {
			last = row.LastDate.Format(time.DateOnly)
		}
		rec := []string{
			row.Ticker, row.Kind, row.Definition, row.Currency, row.Unit,
			strconv.Itoa(row.Points), first, last, string(row.LastStatus), row.LastMessage,
		}
		if err := cw.Write(rec); err != nil {
			return "", err
		}
	}
	cw.Flush()
	return sb.String(), cw.Error()
}

// ReadBarsCSV parses daily bars. The header names the columns; date is
// required, ticker is optional and defaults to ticker. Recognised price
// columns are open, high, low, close, adj_close and volume; empty cells
// are stored as nulls.
func ReadBarsCSV(r io.Reader, ticker string) ([]*domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadCSV, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		name = strings.ReplaceAll(name, " ", "_")
		if name == "adjclose" {
			name = "adj_close"
		}
		cols[name] = i
	}
	if _, ok := cols["date"]; !ok {
		return nil, fmt.Errorf("%w: missing date column", ErrBadCSV)
	}
	_, hasTicker := cols["ticker"]
	ticker = domain.NormalizeTicker(ticker)
	if !hasTicker && ticker == "" {
		return nil, fmt.Errorf("%w: no ticker column and no ticker given", ErrBadCSV)
	}

	var bars []*domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		date, err := parseDate(cell("date"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}
		b := &domain.Bar{Ticker: ticker, Date: date}
		if hasTicker {
			if t := domain.NormalizeTicker(cell("ticker")); t != "" {
				b.Ticker = t
			}
		}
		if b.Ticker == "" {
			return nil, fmt.Errorf("%w: line %d: empty ticker", ErrBadCSV, line)
		}

		for _, f := range []struct {
			name string
			dst  **float64
		}{
			{"open", &b.Open},
			{"high", &b.High},
			{"low", &b.Low},
			{"close", &b.Close},
			{"adj_close", &b.AdjClose},
		} {
			v, err := parseFloat(cell(f.name))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrBadCSV, line, f.name, err)
			}
			*f.dst = v
		}
		if s := cell("volume"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: volume: %v", ErrBadCSV, line, err)
			}
			n := int64(v)
			b.Volume = &n
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: expected YYYY-MM-DD", s)
	}
	return domain.Day(t), nil
}

func parseFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
