// Package rollcodec serializes and deserializes roll expressions for
// storage in the aliases column of a tenant's persisted row. It uses CBOR
// (github.com/fxamacker/cbor/v2) for a compact, self-describing binary
// encoding that is stable across restarts of this implementation.
//
// Two wire versions exist: V1 is unlabeled (legacy), V2 adds an optional
// label. Deserialize accepts both; Serialize always writes V2.
package rollcodec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/mrwong99/rollbot/internal/diceexpr"
)

const (
	versionV1 uint8 = 1
	versionV2 uint8 = 2
)

type wireDiceKind struct {
	Kind  uint8  `cbor:"k"`
	Faces uint32 `cbor:"f,omitempty"`
}

type wireDice struct {
	Throws uint32       `cbor:"t"`
	Kind   wireDiceKind `cbor:"dk"`
}

type wireFilteredDice struct {
	Dice      wireDice `cbor:"d"`
	HasFilter bool     `cbor:"hf,omitempty"`
	Filter    uint8    `cbor:"fl,omitempty"`
	Target    uint32   `cbor:"tg,omitempty"`
}

type wireSelectedDice struct {
	Filtered    wireFilteredDice `cbor:"fd"`
	HasSelector bool             `cbor:"hs,omitempty"`
	Selector    uint8            `cbor:"sl,omitempty"`
	K           uint32           `cbor:"k,omitempty"`
}

type wireTerm struct {
	Tag       uint8             `cbor:"tag"`
	Constant  int64             `cbor:"c,omitempty"`
	DiceThrow *wireSelectedDice `cbor:"dt,omitempty"`
	Left      *wireTerm         `cbor:"l,omitempty"`
	Op        uint8             `cbor:"op,omitempty"`
	Right     *wireTerm         `cbor:"r,omitempty"`
}

type wireExpression struct {
	List  bool      `cbor:"list,omitempty"`
	Count uint32    `cbor:"count,omitempty"`
	Term  *wireTerm `cbor:"term"`
}

type wireEnvelope struct {
	Version uint8          `cbor:"version"`
	Expr    wireExpression `cbor:"expr"`
	Label   *string        `cbor:"label,omitempty"`
}

// Serialize encodes le as a V2 wire envelope.
func Serialize(le diceexpr.LabeledExpression) ([]byte, error) {
	env := wireEnvelope{
		Version: versionV2,
		Expr:    toWireExpression(le.Expression),
		Label:   le.Label,
	}
	data, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("rollcodec: marshal: %w", err)
	}
	return data, nil
}

// Deserialize decodes data, accepting both the V1 (unlabeled) and V2
// (labeled) wire formats.
func Deserialize(data []byte) (diceexpr.LabeledExpression, error) {
	var env wireEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return diceexpr.LabeledExpression{}, fmt.Errorf("rollcodec: unmarshal: %w", err)
	}
	expr, err := fromWireExpression(env.Expr)
	if err != nil {
		return diceexpr.LabeledExpression{}, err
	}
	le := diceexpr.LabeledExpression{Expression: expr}
	if env.Version >= versionV2 {
		le.Label = env.Label
	}
	return le, nil
}

func toWireExpression(e diceexpr.Expression) wireExpression {
	return wireExpression{
		List:  e.Tag == diceexpr.ExprList,
		Count: e.Count,
		Term:  toWireTerm(e.Term),
	}
}

func fromWireExpression(w wireExpression) (diceexpr.Expression, error) {
	t, err := fromWireTerm(w.Term)
	if err != nil {
		return diceexpr.Expression{}, err
	}
	if w.List {
		return diceexpr.Expression{Tag: diceexpr.ExprList, Count: w.Count, Term: t}, nil
	}
	return diceexpr.Expression{Tag: diceexpr.ExprSimple, Term: t}, nil
}

func toWireTerm(t *diceexpr.Term) *wireTerm {
	if t == nil {
		return nil
	}
	w := &wireTerm{Tag: uint8(t.Tag)}
	switch t.Tag {
	case diceexpr.TermConstant:
		w.Constant = t.Constant
	case diceexpr.TermDiceThrow:
		w.DiceThrow = toWireSelectedDice(t.DiceThrow)
	case diceexpr.TermCalculation:
		w.Left = toWireTerm(t.Left)
		w.Op = uint8(t.Op)
		w.Right = toWireTerm(t.Right)
	case diceexpr.TermSubTerm:
		w.Left = toWireTerm(t.Left)
	}
	return w
}

func fromWireTerm(w *wireTerm) (*diceexpr.Term, error) {
	if w == nil {
		return nil, fmt.Errorf("rollcodec: nil term")
	}
	t := &diceexpr.Term{Tag: diceexpr.TermTag(w.Tag)}
	var err error
	switch t.Tag {
	case diceexpr.TermConstant:
		t.Constant = w.Constant
	case diceexpr.TermDiceThrow:
		if w.DiceThrow == nil {
			return nil, fmt.Errorf("rollcodec: missing dice throw")
		}
		t.DiceThrow = fromWireSelectedDice(w.DiceThrow)
	case diceexpr.TermCalculation:
		t.Left, err = fromWireTerm(w.Left)
		if err != nil {
			return nil, err
		}
		t.Op = diceexpr.Op(w.Op)
		t.Right, err = fromWireTerm(w.Right)
		if err != nil {
			return nil, err
		}
	case diceexpr.TermSubTerm:
		t.Left, err = fromWireTerm(w.Left)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("rollcodec: unknown term tag %d", w.Tag)
	}
	return t, nil
}

func toWireSelectedDice(sd diceexpr.SelectedDice) *wireSelectedDice {
	return &wireSelectedDice{
		Filtered:    toWireFilteredDice(sd.Filtered),
		HasSelector: sd.HasSelector,
		Selector:    uint8(sd.Selector),
		K:           sd.K,
	}
}

func fromWireSelectedDice(w *wireSelectedDice) diceexpr.SelectedDice {
	return diceexpr.SelectedDice{
		Filtered:    fromWireFilteredDice(w.Filtered),
		HasSelector: w.HasSelector,
		Selector:    diceexpr.Selector(w.Selector),
		K:           w.K,
	}
}

func toWireFilteredDice(fd diceexpr.FilteredDice) wireFilteredDice {
	return wireFilteredDice{
		Dice:      toWireDice(fd.Dice),
		HasFilter: fd.HasFilter,
		Filter:    uint8(fd.Filter),
		Target:    fd.Target,
	}
}

func fromWireFilteredDice(w wireFilteredDice) diceexpr.FilteredDice {
	return diceexpr.FilteredDice{
		Dice:      fromWireDice(w.Dice),
		HasFilter: w.HasFilter,
		Filter:    diceexpr.Filter(w.Filter),
		Target:    w.Target,
	}
}

func toWireDice(d diceexpr.Dice) wireDice {
	return wireDice{
		Throws: d.Throws,
		Kind:   wireDiceKind{Kind: uint8(d.Kind.Kind), Faces: d.Kind.Faces},
	}
}

func fromWireDice(w wireDice) diceexpr.Dice {
	return diceexpr.Dice{
		Throws: w.Throws,
		Kind:   diceexpr.DiceKind{Kind: diceexpr.DiceKindTag(w.Kind.Kind), Faces: w.Kind.Faces},
	}
}
