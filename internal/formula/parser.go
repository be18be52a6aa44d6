package formula

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/wonny/finmetric/internal/contracts"
)

// Sign is the contribution direction of one operand
type Sign int

const (
	Plus  Sign = 1
	Minus Sign = -1
)

func (s Sign) String() string {
	if s == Minus {
		return "(-)"
	}
	return "(+)"
}

var (
	// 단어(공백/하이픈/밑줄로 연결 가능) 또는 정수/소수
	operandPattern  = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]*(?:[ _-]+[A-Za-z0-9]+)*|\d+(?:\.\d+)?`)
	operatorPattern = regexp.MustCompile(`\((\+|-)\)`)
	numberPattern   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParsedFormula is a tokenized custom_formula definition.
// Operators 길이는 Operands-1, 선행 연산자가 있으면 Operands 와 같다.
type ParsedFormula struct {
	Operands  []string
	Operators []Sign
	Leading   bool // 첫 피연산자 앞에 연산자가 있음
}

// Parse tokenizes "a (+) b (-) c" with two independent pattern passes
func Parse(definition string) (ParsedFormula, error) {
	operandIdx := operandPattern.FindAllStringIndex(definition, -1)
	operatorIdx := operatorPattern.FindAllStringSubmatchIndex(definition, -1)

	if len(operandIdx) == 0 {
		return ParsedFormula{}, eris.Wrapf(contracts.ErrMalformedFormula, "formula: no operands in %q", definition)
	}

	p := ParsedFormula{
		Operands:  make([]string, 0, len(operandIdx)),
		Operators: make([]Sign, 0, len(operatorIdx)),
	}
	for _, loc := range operandIdx {
		p.Operands = append(p.Operands, strings.TrimSpace(definition[loc[0]:loc[1]]))
	}
	for _, loc := range operatorIdx {
		sign := Plus
		if definition[loc[2]:loc[3]] == "-" {
			sign = Minus
		}
		p.Operators = append(p.Operators, sign)
	}

	p.Leading = len(operatorIdx) > 0 && operatorIdx[0][0] < operandIdx[0][0]

	want := len(p.Operands) - 1
	if p.Leading {
		want = len(p.Operands)
	}
	if len(p.Operators) != want {
		return ParsedFormula{}, eris.Wrapf(contracts.ErrMalformedFormula,
			"formula: %d operands need %d operators, got %d in %q",
			len(p.Operands), want, len(p.Operators), definition)
	}

	return p, nil
}

// Signs returns the sign applied to each operand
func (p ParsedFormula) Signs() []Sign {
	signs := make([]Sign, len(p.Operands))
	for i := range p.Operands {
		switch {
		case p.Leading:
			signs[i] = p.Operators[i]
		case i == 0:
			signs[i] = Plus
		default:
			signs[i] = p.Operators[i-1]
		}
	}
	return signs
}

// Combine returns the signed sum of values, one per operand
func (p ParsedFormula) Combine(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i, sign := range p.Signs() {
		if sign == Minus {
			total = total.Sub(values[i])
		} else {
			total = total.Add(values[i])
		}
	}
	return contracts.RoundValue(total)
}

// IsConstant reports whether operand is a numeric literal
func IsConstant(operand string) bool {
	return numberPattern.MatchString(operand)
}
