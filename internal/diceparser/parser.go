// Package diceparser implements the tokenless, whitespace-tolerant
// recursive-descent grammar for roll expressions, plus the post-parse
// precedence rearrangement pass that gives '*' and '/' their usual
// left-associative binding without touching '+' and '-'.
package diceparser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/mrwong99/rollbot/internal/diceexpr"
)

// parser walks a rune slice left to right. Every parse* method either
// advances pos and returns (value, true), or leaves pos untouched and
// returns (zero, false) — standard backtracking recursive descent.
type parser struct {
	src []rune
	pos int
}

// Parse attempts to parse a LabeledExpression from the prefix of text. It
// returns the parsed value, the unconsumed remainder, and whether parsing
// succeeded. Parsing never errors — an unparsable prefix simply fails.
func Parse(text string) (diceexpr.LabeledExpression, string, bool) {
	p := &parser{src: []rune(text)}
	le, ok := p.parseLabeled()
	if !ok {
		return diceexpr.LabeledExpression{}, text, false
	}
	return le, string(p.src[p.pos:]), true
}

func (p *parser) rest() []rune { return p.src[p.pos:] }

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

// consumeFold consumes lit case-insensitively (ASCII only, matching the
// grammar's ASCII keyword set).
func (p *parser) consumeFold(lit string) bool {
	save := p.pos
	for _, want := range lit {
		if p.eof() || !runeEqualFold(p.peek(), want) {
			p.pos = save
			return false
		}
		p.pos++
	}
	return true
}

func runeEqualFold(a, b rune) bool {
	return unicode.ToLower(a) == unicode.ToLower(b)
}

func (p *parser) consume(lit string) bool {
	save := p.pos
	for _, want := range lit {
		if p.eof() || p.peek() != want {
			p.pos = save
			return false
		}
		p.pos++
	}
	return true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (p *parser) digits() string {
	start := p.pos
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// parseU32 parses [1-9][0-9]* and rejects 0 and overflow of uint32.
func (p *parser) parseU32() (uint32, bool) {
	save := p.pos
	d := p.digits()
	if d == "" {
		p.pos = save
		return 0, false
	}
	v, err := strconv.ParseUint(d, 10, 32)
	if err != nil || v == 0 {
		p.pos = save
		return 0, false
	}
	return uint32(v), true
}

// parseI64 parses [+-]?[0-9]+.
func (p *parser) parseI64() (int64, bool) {
	save := p.pos
	sign := ""
	if !p.eof() && (p.peek() == '+' || p.peek() == '-') {
		sign = string(p.peek())
		p.pos++
	}
	d := p.digits()
	if d == "" {
		p.pos = save
		return 0, false
	}
	v, err := strconv.ParseInt(sign+d, 10, 64)
	if err != nil {
		p.pos = save
		return 0, false
	}
	return v, true
}

func (p *parser) parseDiceIntro() bool {
	if p.consumeFold("d") {
		return true
	}
	return p.consumeFold("w")
}

// parseDiceKind tries Multiply, then Number, then Fudge, then Percent, in
// that order — Multiply must be tried before Number since both start with
// a u32.
func (p *parser) parseDiceKind() (diceexpr.DiceKind, bool) {
	save := p.pos
	if n, ok := p.parseU32(); ok {
		p.skipSpace()
		if p.consumeFold("x") {
			return diceexpr.DiceKind{Kind: diceexpr.Multiply, Faces: n}, true
		}
		p.pos = save
		if n2, ok := p.parseU32(); ok {
			return diceexpr.DiceKind{Kind: diceexpr.Number, Faces: n2}, true
		}
	}
	p.pos = save
	if p.consumeFold("f") {
		return diceexpr.DiceKind{Kind: diceexpr.Fudge}, true
	}
	p.pos = save
	if p.consume("%") {
		return diceexpr.DiceKind{Kind: diceexpr.Number, Faces: 100}, true
	}
	p.pos = save
	return diceexpr.DiceKind{}, false
}

// parseDice parses "(u32 | ε→1) dice_intro dice_kind" with inter-token
// whitespace permitted.
func (p *parser) parseDice() (diceexpr.Dice, bool) {
	save := p.pos
	throws, ok := p.parseU32()
	if !ok {
		throws = 1
	}
	p.skipSpace()
	if !p.parseDiceIntro() {
		p.pos = save
		return diceexpr.Dice{}, false
	}
	p.skipSpace()
	kind, ok := p.parseDiceKind()
	if !ok {
		p.pos = save
		return diceexpr.Dice{}, false
	}
	return diceexpr.Dice{Throws: throws, Kind: kind}, true
}

// parseFilter tries ">=", ">", "<=", "<", "!=" in that order — the two-rune
// operators must be attempted before their single-rune prefixes.
func (p *parser) parseFilter() (diceexpr.Filter, bool) {
	switch {
	case p.consume(">="):
		return diceexpr.BiggerEq, true
	case p.consume(">"):
		return diceexpr.Bigger, true
	case p.consume("<="):
		return diceexpr.SmallerEq, true
	case p.consume("<"):
		return diceexpr.Smaller, true
	case p.consume("!="):
		return diceexpr.NotEq, true
	default:
		return 0, false
	}
}

func (p *parser) parseFilteredDice() (diceexpr.FilteredDice, bool) {
	d, ok := p.parseDice()
	if !ok {
		return diceexpr.FilteredDice{}, false
	}
	mark := p.pos
	p.skipSpace()
	if f, ok := p.parseFilter(); ok {
		p.skipSpace()
		if target, ok := p.parseU32(); ok {
			return diceexpr.FilteredDice{Dice: d, HasFilter: true, Filter: f, Target: target}, true
		}
	}
	p.pos = mark
	return diceexpr.FilteredDice{Dice: d}, true
}

func (p *parser) parseSelector() (diceexpr.Selector, bool) {
	switch {
	case p.consumeFold("h"), p.consumeFold("k"):
		return diceexpr.Higher, true
	case p.consumeFold("l"):
		return diceexpr.Lower, true
	default:
		return 0, false
	}
}

func (p *parser) parseSelectedDice() (diceexpr.SelectedDice, bool) {
	fd, ok := p.parseFilteredDice()
	if !ok {
		return diceexpr.SelectedDice{}, false
	}
	mark := p.pos
	p.skipSpace()
	if sel, ok := p.parseSelector(); ok {
		p.skipSpace()
		if k, ok := p.parseU32(); ok {
			return diceexpr.SelectedDice{Filtered: fd, HasSelector: true, Selector: sel, K: k}, true
		}
	}
	p.pos = mark
	return diceexpr.SelectedDice{Filtered: fd}, true
}

func (p *parser) parseOp() (diceexpr.Op, bool) {
	switch {
	case p.consume("+"):
		return diceexpr.Add, true
	case p.consume("-"):
		return diceexpr.Sub, true
	case p.consume("*"):
		return diceexpr.Mul, true
	case p.consume("/"):
		return diceexpr.Div, true
	default:
		return 0, false
	}
}

// parseTermPrimary parses a roll, a constant, or a parenthesised subterm —
// the three alternatives a Calculation's left operand may take without
// recursing into Calculation itself.
func (p *parser) parseTermPrimary() (*diceexpr.Term, bool) {
	if sd, ok := p.parseSelectedDice(); ok {
		return &diceexpr.Term{Tag: diceexpr.TermDiceThrow, DiceThrow: sd}, true
	}
	if v, ok := p.parseI64(); ok {
		return &diceexpr.Term{Tag: diceexpr.TermConstant, Constant: v}, true
	}
	save := p.pos
	if p.consume("(") {
		p.skipSpace()
		if inner, ok := p.parseTerm(); ok {
			p.skipSpace()
			if p.consume(")") {
				return &diceexpr.Term{Tag: diceexpr.TermSubTerm, Left: inner}, true
			}
		}
		p.pos = save
	}
	return nil, false
}

// parseTerm parses "primary (op term)?", right-recursive so that a chain
// of operators parses fully right-associative; precedence is fixed up
// afterwards by Rearrange.
func (p *parser) parseTerm() (*diceexpr.Term, bool) {
	left, ok := p.parseTermPrimary()
	if !ok {
		return nil, false
	}
	mark := p.pos
	p.skipSpace()
	if op, ok := p.parseOp(); ok {
		p.skipSpace()
		if right, ok := p.parseTerm(); ok {
			return &diceexpr.Term{Tag: diceexpr.TermCalculation, Left: left, Op: op, Right: right}, true
		}
	}
	p.pos = mark
	return left, true
}

func (p *parser) parseRearrangedTerm() (*diceexpr.Term, bool) {
	t, ok := p.parseTerm()
	if !ok {
		return nil, false
	}
	return Rearrange(t), true
}

func (p *parser) parseExpression() (diceexpr.Expression, bool) {
	save := p.pos
	if count, ok := p.parseU32(); ok {
		p.skipSpace()
		if p.consume("{") {
			p.skipSpace()
			if t, ok := p.parseRearrangedTerm(); ok {
				p.skipSpace()
				if p.consume("}") {
					return diceexpr.Expression{Tag: diceexpr.ExprList, Count: count, Term: t}, true
				}
			}
		}
		p.pos = save
	}
	if t, ok := p.parseRearrangedTerm(); ok {
		return diceexpr.Expression{Tag: diceexpr.ExprSimple, Term: t}, true
	}
	return diceexpr.Expression{}, false
}

func (p *parser) parseLabeled() (diceexpr.LabeledExpression, bool) {
	expr, ok := p.parseExpression()
	if !ok {
		return diceexpr.LabeledExpression{}, false
	}
	mark := p.pos
	p.skipSpace()
	if !p.consume("#") {
		p.pos = mark
		return diceexpr.LabeledExpression{Expression: expr}, true
	}
	p.skipSpace()
	var words []string
	for {
		start := p.pos
		for !p.eof() && !unicode.IsSpace(p.peek()) {
			p.pos++
		}
		if p.pos == start {
			break
		}
		words = append(words, string(p.src[start:p.pos]))
		p.skipSpace()
	}
	label := strings.Join(words, " ")
	return diceexpr.LabeledExpression{Expression: expr, Label: &label}, true
}

// Rearrange fixes up a right-associative-everywhere parse tree so that '*'
// and '/' bind left-to-right and tighter than '+'/'-'; '+' and '-' are left
// exactly as parsed, right-associative. This mirrors the exact rotation
// used by the source this grammar was ported from, including its
// non-obvious tree shape for chains of three or more Mul/Div terms (the
// rotation recurses only into the new right child, not the new left one).
func Rearrange(root *diceexpr.Term) *diceexpr.Term {
	switch root.Tag {
	case diceexpr.TermCalculation:
		leftTop, opTop, rightTop := root.Left, root.Op, root.Right
		if opTop == diceexpr.Mul || opTop == diceexpr.Div {
			if rightTop.Tag == diceexpr.TermCalculation {
				leftChild, opChild, rightChild := rightTop.Left, rightTop.Op, rightTop.Right
				return &diceexpr.Term{
					Tag: diceexpr.TermCalculation,
					Left: &diceexpr.Term{
						Tag:  diceexpr.TermCalculation,
						Left: leftTop, Op: opTop, Right: leftChild,
					},
					Op:    opChild,
					Right: Rearrange(rightChild),
				}
			}
		}
		return &diceexpr.Term{Tag: diceexpr.TermCalculation, Left: leftTop, Op: opTop, Right: Rearrange(rightTop)}
	case diceexpr.TermSubTerm:
		return &diceexpr.Term{Tag: diceexpr.TermSubTerm, Left: Rearrange(root.Left)}
	default:
		return root
	}
}
