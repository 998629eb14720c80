package compiler

// Precedence orders operator binding strength, weakest first.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // -
	PrecCall                  // ()
)

var precedenceNames = [...]string{
	PrecNone:       "None",
	PrecAssignment: "Assignment",
	PrecOr:         "Or",
	PrecAnd:        "And",
	PrecEquality:   "Equality",
	PrecComparison: "Comparison",
	PrecTerm:       "Term",
	PrecFactor:     "Factor",
	PrecUnary:      "Unary",
	PrecCall:       "Call",
}

func (p Precedence) String() string {
	if p >= 0 && int(p) < len(precedenceNames) {
		return precedenceNames[p]
	}
	return "Precedence(?)"
}

// Next returns the level one step tighter than p. Binary operators parse
// their right operand at Next so equal-precedence operators associate left.
// Call is the tightest level and is its own successor.
func (p Precedence) Next() Precedence {
	if p >= PrecCall {
		return PrecCall
	}
	return p + 1
}
