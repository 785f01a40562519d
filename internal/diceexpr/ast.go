// Package diceexpr defines the abstract syntax of roll expressions: the
// sum-type tree produced by the parser, consumed by the evaluator, and
// rendered back to text for responses and persisted aliases.
package diceexpr

import "fmt"

// Op is an arithmetic operator appearing in a Calculation.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
)

func (o Op) String() string {
	switch o {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	default:
		return "?"
	}
}

// Filter is a comparison applied to an individual die value.
type Filter int

const (
	Bigger Filter = iota
	BiggerEq
	Smaller
	SmallerEq
	NotEq
)

func (f Filter) String() string {
	switch f {
	case Bigger:
		return ">"
	case BiggerEq:
		return ">="
	case Smaller:
		return "<"
	case SmallerEq:
		return "<="
	case NotEq:
		return "!="
	default:
		return "?"
	}
}

// Holds reports whether v satisfies the filter against target.
//
// BiggerEq is evaluated with strict >, matching a quirk in the system this
// was ported from. It is not a typo; changing it would break the observable
// contract for expressions like "4d6>=3".
func (f Filter) Holds(v, target int64) bool {
	switch f {
	case Bigger, BiggerEq:
		return v > target
	case Smaller:
		return v < target
	case SmallerEq:
		return v <= target
	case NotEq:
		return v != target
	default:
		return false
	}
}

// Selector picks a subset of sorted dice values.
type Selector int

const (
	Higher Selector = iota
	Lower
)

func (s Selector) String() string {
	if s == Lower {
		return "l"
	}
	return "h"
}

// DiceKind is the face-value scheme of a single die.
type DiceKind struct {
	// Kind selects Number, Fudge, or Multiply.
	Kind  DiceKindTag
	Faces uint32 // meaningful for Number and Multiply
}

type DiceKindTag int

const (
	Number DiceKindTag = iota
	Fudge
	Multiply
)

func (k DiceKind) String() string {
	switch k.Kind {
	case Fudge:
		return "F"
	case Multiply:
		return fmt.Sprintf("%dx", k.Faces)
	default:
		return fmt.Sprintf("%d", k.Faces)
	}
}

// Dice is a request to throw N dice of a given kind.
type Dice struct {
	Throws uint32
	Kind   DiceKind
}

func (d Dice) String() string {
	return fmt.Sprintf("%dd%s", d.Throws, d.Kind)
}

// FilteredDice optionally retains only die values satisfying a filter.
type FilteredDice struct {
	Dice Dice
	// HasFilter is false for the "Simple" variant.
	HasFilter bool
	Filter    Filter
	Target    uint32
}

func (fd FilteredDice) String() string {
	if !fd.HasFilter {
		return fd.Dice.String()
	}
	return fmt.Sprintf("%s%s%d", fd.Dice, fd.Filter, fd.Target)
}

// SelectedDice optionally keeps only the top/bottom K of the filtered rolls.
type SelectedDice struct {
	Filtered FilteredDice
	// HasSelector is false for the "Unchanged" variant.
	HasSelector bool
	Selector    Selector
	K           uint32
}

func (sd SelectedDice) String() string {
	if !sd.HasSelector {
		return sd.Filtered.String()
	}
	return fmt.Sprintf("%s%s%d", sd.Filtered, sd.Selector, sd.K)
}

// TermTag discriminates the Term sum type.
type TermTag int

const (
	TermConstant TermTag = iota
	TermDiceThrow
	TermCalculation
	TermSubTerm
)

// Term is the recursive expression tree. Exactly one of the fields is
// meaningful depending on Tag; this mirrors a sum type without resorting
// to an interface per variant, since every variant shares the same shape
// of "maybe children, maybe scalar payload".
type Term struct {
	Tag TermTag

	Constant int64 // TermConstant

	DiceThrow SelectedDice // TermDiceThrow

	Left  *Term // TermCalculation, TermSubTerm
	Op    Op    // TermCalculation
	Right *Term // TermCalculation
}

func (t *Term) String() string {
	switch t.Tag {
	case TermConstant:
		return fmt.Sprintf("%d", t.Constant)
	case TermDiceThrow:
		return t.DiceThrow.String()
	case TermCalculation:
		return fmt.Sprintf("%s %s %s", t.Left, t.Op, t.Right)
	case TermSubTerm:
		return fmt.Sprintf("(%s)", t.Left)
	default:
		return "?"
	}
}

// Equal reports whether t and other denote the same logical tree.
func (t *Term) Equal(other *Term) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Tag != other.Tag {
		return false
	}
	switch t.Tag {
	case TermConstant:
		return t.Constant == other.Constant
	case TermDiceThrow:
		return t.DiceThrow == other.DiceThrow
	case TermCalculation:
		return t.Op == other.Op && t.Left.Equal(other.Left) && t.Right.Equal(other.Right)
	case TermSubTerm:
		return t.Left.Equal(other.Left)
	default:
		return false
	}
}

// ExpressionTag discriminates the Expression sum type.
type ExpressionTag int

const (
	ExprSimple ExpressionTag = iota
	ExprList
)

// Expression is either a single term or a repeated list of independent
// evaluations of the same term.
type Expression struct {
	Tag   ExpressionTag
	Count uint32 // ExprList, always ≥1
	Term  *Term
}

func (e Expression) String() string {
	if e.Tag == ExprList {
		return fmt.Sprintf("%d{%s}", e.Count, e.Term)
	}
	return e.Term.String()
}

// Equal reports whether e and other denote the same logical expression.
func (e Expression) Equal(other Expression) bool {
	return e.Tag == other.Tag && e.Count == other.Count && e.Term.Equal(other.Term)
}

// LabeledExpression is an Expression with an optional trailing "# label".
// Labels never participate in rendering — they are metadata carried
// alongside the expression for display by the caller.
type LabeledExpression struct {
	Expression Expression
	Label      *string
}

func (le LabeledExpression) String() string {
	return le.Expression.String()
}

// Equal reports structural equality including the label.
func (le LabeledExpression) Equal(other LabeledExpression) bool {
	if !le.Expression.Equal(other.Expression) {
		return false
	}
	if (le.Label == nil) != (other.Label == nil) {
		return false
	}
	return le.Label == nil || *le.Label == *other.Label
}
