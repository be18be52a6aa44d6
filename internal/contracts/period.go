package contracts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PeriodClass is the fiscal period classification used to pick endpoints
// and date derivation rules
type PeriodClass string

const (
	PeriodAnnual     PeriodClass = "annual"
	PeriodQuarter    PeriodClass = "quarter"
	PeriodTTM        PeriodClass = "ttm"
	PeriodLatest     PeriodClass = "latest"
	PeriodHistorical PeriodClass = "historical"
)

// AllPeriodClasses lists every classification in refresh order
var AllPeriodClasses = []PeriodClass{
	PeriodAnnual,
	PeriodQuarter,
	PeriodTTM,
	PeriodLatest,
	PeriodHistorical,
}

// IsSnapshot reports whether the class represents "as of now" data
func (c PeriodClass) IsSnapshot() bool {
	return c == PeriodTTM || c == PeriodLatest || c == PeriodHistorical
}

// ParsePeriodClass maps a classification name back to its constant
func ParsePeriodClass(s string) (PeriodClass, error) {
	c := PeriodClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPeriodClasses {
		if c == known {
			return c, nil
		}
	}
	return "", eris.Wrapf(ErrMalformedInput, "period: unknown classification %q", s)
}

// 정규화 패턴: 순서대로 시도하고 문자열을 바꾼 첫 패턴에서 멈춘다
var periodPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`^(\d{4})$`), "FY $1"},
	{regexp.MustCompile(`^(FY|Q\d)(\d{4})$`), "$1 $2"},
	{regexp.MustCompile(`^(FY|Q\d)\s*(\d{4})$`), "$1 $2"},
	{regexp.MustCompile(`^(\d{4})(FY|Q\d)$`), "$2 $1"},
	{regexp.MustCompile(`^(\d{4})\s*(FY|Q\d)$`), "$2 $1"},
}

var canonicalPeriod = regexp.MustCompile(`^(FY|Q[1-4]) (\d{4})$`)

// NormalizePeriod canonicalizes a raw period string.
// "2001" -> "FY 2001", "Q22002" -> "Q2 2002", "Q3   2003" -> "Q3 2003", "2004FY" -> "FY 2004".
// 빈 문자열은 LATEST.
func NormalizePeriod(raw string) string {
	p := strings.ToUpper(strings.TrimSpace(raw))
	if p == "" {
		return "LATEST"
	}
	for _, pat := range periodPatterns {
		if out := pat.re.ReplaceAllString(p, pat.repl); out != p {
			return out
		}
	}
	return p
}

// Period is a normalized and classified fiscal period
type Period struct {
	Text  string      // 정규화된 표기 ("FY 2022", "TTM")
	Class PeriodClass
	Year  int         // 스냅샷이면 0
}

// ParsePeriod normalizes raw and classifies it
func ParsePeriod(raw string) (Period, error) {
	text := NormalizePeriod(raw)

	switch text {
	case "LATEST":
		return Period{Text: text, Class: PeriodLatest}, nil
	case "TTM":
		return Period{Text: text, Class: PeriodTTM}, nil
	case "HISTORICAL":
		return Period{Text: text, Class: PeriodHistorical}, nil
	}

	m := canonicalPeriod.FindStringSubmatch(text)
	if m == nil {
		return Period{}, eris.Wrapf(ErrMalformedInput, "period: cannot parse %q", raw)
	}

	year, _ := strconv.Atoi(m[2])
	class := PeriodQuarter
	if m[1] == "FY" {
		class = PeriodAnnual
	}
	return Period{Text: text, Class: class, Year: year}, nil
}

// MustPeriod is ParsePeriod for literals known to be valid
func MustPeriod(raw string) Period {
	p, err := ParsePeriod(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the normalized text
func (p Period) String() string {
	return p.Text
}

// StorageKey is the period column value used by the metric store
func (p Period) StorageKey() string {
	if p.Class.IsSnapshot() {
		return string(p.Class)
	}
	return p.Text
}

// ReportDateFloor returns Jan 1 of the period year, or "" for snapshots
func (p Period) ReportDateFloor() string {
	if p.Year == 0 {
		return ""
	}
	return fmt.Sprintf("%04d-01-01", p.Year)
}
