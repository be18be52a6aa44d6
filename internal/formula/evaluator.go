package formula

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/logger"
)

// Definitions supplies the ordered definitions of a label
type Definitions interface {
	DefinitionsFor(ctx context.Context, label string, onlyFormulas bool) ([]contracts.Category, error)
}

// Result is a resolved value and the record it came from or was written as.
// 상수(exact_value, 숫자 피연산자)는 Record 가 nil 이다.
type Result struct {
	Value  decimal.Decimal
	Record *contracts.MetricRecord
}

// Evaluator resolves a label by trying its definitions in priority order
// ⭐ SSOT: 수식 평가와 cycle 보호는 여기서만
type Evaluator struct {
	defs      Definitions
	metrics   contracts.MetricRepository
	companies contracts.CompanyRepository
	logger    *logger.Logger

	mu     sync.RWMutex
	parsed map[string]parsedEntry
}

type parsedEntry struct {
	formula ParsedFormula
	err     error
}

// NewEvaluator creates an evaluator
func NewEvaluator(defs Definitions, metrics contracts.MetricRepository, companies contracts.CompanyRepository, log *logger.Logger) *Evaluator {
	return &Evaluator{
		defs:      defs,
		metrics:   metrics,
		companies: companies,
		logger:    log.Module("formula"),
		parsed:    make(map[string]parsedEntry),
	}
}

// Options controls one top-level resolution
type Options struct {
	// Fresh ignores previously derived formula values so they are recomputed
	// from their operands (used right after a forced refresh)
	Fresh bool
}

// Resolve returns the value of label for ticker and period, or nil when no
// definition yields one. 에러는 context 취소일 때만 돌려준다.
func (e *Evaluator) Resolve(ctx context.Context, ticker, label string, period contracts.Period, opts Options) (*Result, error) {
	ns := newNamespace(opts.Fresh)
	ns.begin(label)

	r, err := e.resolve(ctx, ticker, label, period, ns)
	ns.finish(label, r)
	return r, err
}

func (e *Evaluator) resolve(ctx context.Context, ticker, label string, period contracts.Period, ns *Namespace) (*Result, error) {
	defs, err := e.defs.DefinitionsFor(ctx, label, false)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.WithError(err).WithField("label", label).Warn("Definition lookup failed")
		return nil, nil
	}

	for i := range defs {
		def := &defs[i]

		var r *Result
		switch def.Type {
		case contracts.DefinitionAPITag:
			r, err = e.fromTag(ctx, ticker, def.ValueDefinition, period)
		case contracts.DefinitionFormula:
			r, err = e.fromFormula(ctx, ticker, def, period, ns)
		case contracts.DefinitionExactValue:
			r = e.fromConstant(def)
		default:
			e.logger.WithField("type", string(def.Type)).WithField("category_id", def.ID).Warn("Unknown definition type")
		}

		if err != nil {
			return nil, err
		}
		if r != nil {
			return r, nil
		}
	}

	return nil, nil
}

// fromTag reads the best stored record for a source tag
func (e *Evaluator) fromTag(ctx context.Context, ticker, tag string, period contracts.Period) (*Result, error) {
	rec, err := e.metrics.GetMetric(ctx, contracts.MetricQuery{
		Ticker:          ticker,
		Tag:             tag,
		Period:          period.StorageKey(),
		ReportDateFloor: period.ReportDateFloor(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !eris.Is(err, contracts.ErrNotFound) {
			e.logger.WithError(err).WithField("tag", tag).Warn("Metric lookup failed")
		}
		return nil, nil
	}
	return &Result{Value: rec.Value, Record: rec}, nil
}

func (e *Evaluator) fromConstant(def *contracts.Category) *Result {
	v, err := decimal.NewFromString(strings.TrimSpace(def.ValueDefinition))
	if err != nil {
		e.logger.WithError(err).WithField("category_id", def.ID).Warn("Invalid exact value")
		return nil
	}
	return &Result{Value: contracts.RoundValue(v)}
}

func (e *Evaluator) fromFormula(ctx context.Context, ticker string, def *contracts.Category, period contracts.Period, ns *Namespace) (*Result, error) {
	// 이전에 계산해 둔 값이 있으면 그대로 사용
	if !ns.fresh {
		if r, err := e.fromTag(ctx, ticker, def.ValueDefinition, period); r != nil || err != nil {
			return r, err
		}
	}

	parsed, err := e.parse(def.ValueDefinition)
	if err != nil {
		e.logger.WithError(err).WithField("category_id", def.ID).Warn("Skipping malformed formula")
		return nil, nil
	}

	values := make([]decimal.Decimal, len(parsed.Operands))
	var base *contracts.MetricRecord

	for i, operand := range parsed.Operands {
		if IsConstant(operand) {
			values[i] = decimal.RequireFromString(operand)
			continue
		}

		var r *Result
		if seen, ok := ns.lookup(operand); ok {
			// inProgress 는 cycle: 이 정의는 실패
			if seen.state != resolved {
				e.logger.WithFields(map[string]interface{}{
					"label":   def.Label,
					"operand": operand,
				}).Debug("Operand unavailable in namespace")
				return nil, nil
			}
			r = seen.result
		} else {
			ns.begin(operand)
			r, err = e.resolve(ctx, ticker, operand, period, ns)
			ns.finish(operand, r)
			if err != nil {
				return nil, err
			}
			if r == nil {
				return nil, nil
			}
		}

		values[i] = r.Value
		if base == nil && r.Record != nil {
			base = r.Record
		}
	}

	value := parsed.Combine(values)

	rec, ok := e.derivedRecord(ctx, ticker, def, period, base, value)
	if !ok {
		return &Result{Value: value}, nil
	}

	if err := e.metrics.UpsertMetrics(ctx, []contracts.MetricRecord{*rec}); err != nil {
		e.logger.WithError(err).WithField("category_id", def.ID).Warn("Failed to persist derived metric")
	}
	return &Result{Value: value, Record: rec}, nil
}

// derivedRecord builds the write-back record. 날짜는 첫 번째 저장 레코드를
// 따르고, 피연산자가 모두 상수면 회사 조회 후 period 값을 날짜로 쓴다.
func (e *Evaluator) derivedRecord(ctx context.Context, ticker string, def *contracts.Category, period contracts.Period, base *contracts.MetricRecord, value decimal.Decimal) (*contracts.MetricRecord, bool) {
	rec := &contracts.MetricRecord{
		CategoryID: def.ID,
		Period:     period.StorageKey(),
		Value:      value,
	}

	if base != nil {
		rec.CompanyID = base.CompanyID
		rec.ReportDate = base.ReportDate
		rec.FilingDate = base.FilingDate
		return rec, true
	}

	company, err := e.companies.GetCompany(ctx, ticker)
	if err != nil {
		return nil, false
	}
	rec.CompanyID = company.ID
	rec.ReportDate = period.StorageKey()
	rec.FilingDate = period.StorageKey()
	return rec, true
}

// parse caches tokenized formulas by definition text
func (e *Evaluator) parse(definition string) (ParsedFormula, error) {
	e.mu.RLock()
	cached, ok := e.parsed[definition]
	e.mu.RUnlock()
	if ok {
		return cached.formula, cached.err
	}

	f, err := Parse(definition)

	e.mu.Lock()
	e.parsed[definition] = parsedEntry{formula: f, err: err}
	e.mu.Unlock()

	return f, err
}
