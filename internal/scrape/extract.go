package scrape

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/wonny/finmetric/internal/contracts"
)

// skipKeys are statement keys that never carry a metric value
var skipKeys = map[string]struct{}{
	"date":             {},
	"symbol":           {},
	"reportedCurrency": {},
	"cik":              {},
	"fillingDate":      {},
	"acceptedDate":     {},
	"calendarYear":     {},
	"period":           {},
	"link":             {},
	"finalLink":        {},
	"label":            {},
	"recordDate":       {},
	"paymentDate":      {},
	"declarationDate":  {},
	"form":             {},
}

// Fact is one extracted value before it is bound to categories
type Fact struct {
	Tag        string
	Period     string // 저장 형태
	ReportDate string
	FilingDate string
	Value      decimal.Decimal
	Form       string
}

type factKey struct {
	period string
	tag    string
}

// Extract turns raw statements into facts for one classification.
// accepted 가 비어 있지 않으면 form 이 있는 statement 는 accepted 에 있어야 한다.
// historical 은 같은 (period, tag) 값을 합산하고, 나머지는 마지막 값이 남는다.
func Extract(statements []contracts.RawStatement, class contracts.PeriodClass, accepted map[string]struct{}) []Fact {
	facts := make(map[factKey]*Fact)
	order := make([]factKey, 0)

	for _, st := range statements {
		form := stringField(st, "form")
		if form != "" && len(accepted) > 0 {
			if _, ok := accepted[strings.ToUpper(form)]; !ok {
				continue
			}
		}

		period, report, filing, ok := deriveDates(st, class)
		if !ok {
			continue
		}

		for tag, raw := range st {
			if _, skip := skipKeys[tag]; skip {
				continue
			}
			value, ok := numeric(raw)
			if !ok {
				continue
			}

			key := factKey{period: period, tag: strings.ToLower(tag)}
			existing, seen := facts[key]
			if !seen {
				order = append(order, key)
			}

			if seen && class == contracts.PeriodHistorical {
				existing.Value = contracts.RoundValue(existing.Value.Add(value))
				if report > existing.ReportDate {
					existing.ReportDate = report
					existing.FilingDate = filing
				}
				continue
			}

			facts[key] = &Fact{
				Tag:        tag,
				Period:     period,
				ReportDate: report,
				FilingDate: filing,
				Value:      contracts.RoundValue(value),
				Form:       form,
			}
		}
	}

	out := make([]Fact, 0, len(order))
	for _, k := range order {
		out = append(out, *facts[k])
	}
	return out
}

// deriveDates returns the (period, report_date, filing_date) triple
func deriveDates(st contracts.RawStatement, class contracts.PeriodClass) (string, string, string, bool) {
	if class.IsSnapshot() && class != contracts.PeriodHistorical {
		token := string(class)
		return token, token, token, true
	}

	date := stringField(st, "date")
	year, month, ok := splitDate(date)
	if !ok {
		return "", "", "", false
	}

	if class == contracts.PeriodHistorical {
		return fmt.Sprintf("FY %d", year), date, date, true
	}

	filing := stringField(st, "fillingDate")
	if filing == "" {
		filing = date
	}

	var period string
	tag := strings.ToUpper(stringField(st, "period"))
	calendarYear := stringField(st, "calendarYear")

	switch {
	case tag != "" && calendarYear != "":
		period = contracts.NormalizePeriod(tag + " " + calendarYear)
	case class == contracts.PeriodAnnual:
		period = fmt.Sprintf("FY %d", year)
	default:
		period = fmt.Sprintf("Q%d %d", (month+2)/3, year)
	}

	p, err := contracts.ParsePeriod(period)
	if err != nil || p.Class.IsSnapshot() {
		return "", "", "", false
	}
	return p.StorageKey(), date, filing, true
}

func splitDate(date string) (int, int, bool) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

func stringField(st contracts.RawStatement, key string) string {
	switch v := st[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// numeric converts a decoded JSON value; strings and booleans are not values
func numeric(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	}
	return decimal.Decimal{}, false
}

// LabelFromTag builds a readable label from a camelCase source tag.
// "peRatioTTM" -> "pe ratio ttm", "EBITDA" -> "ebitda"
func LabelFromTag(tag string) string {
	runes := []rune(strings.TrimSpace(tag))
	var b strings.Builder

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		if r == '_' {
			r = ' '
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
