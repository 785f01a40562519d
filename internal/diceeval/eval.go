// Package diceeval implements interruptible, overflow-checked numeric
// reduction of a parsed roll expression into totals and per-die rolls.
package diceeval

import (
	"errors"
	"sort"

	"github.com/mrwong99/rollbot/internal/diceexpr"
)

// Sentinel evaluation errors. These are part of the user-visible contract
// of a roll result and are never wrapped.
var (
	ErrDivideByZero = errors.New("divide by zero")
	ErrOverflow     = errors.New("overflow")
	ErrTimeout      = errors.New("timeout")
)

// TimeoutFunc is a cheap, idempotent predicate: once it returns true it
// must keep returning true for the remainder of the evaluation.
type TimeoutFunc func() bool

// RNG is the fast, non-cryptographic source of randomness an evaluation
// draws from. It is seeded once per job and never shared between jobs.
type RNG interface {
	// IntN returns a value in [0, n).
	IntN(n int64) int64
}

// Result is one (total, rolls) pair, matching one term evaluation.
type Result struct {
	Total int64
	Rolls []int64
}

// Evaluate reduces expr to its list of (total, rolls) results. A Simple
// expression always yields exactly one Result; a List expression yields
// Count independent results, short-circuiting on the first error.
func Evaluate(expr diceexpr.Expression, timeoutFn TimeoutFunc, rng RNG) ([]Result, error) {
	switch expr.Tag {
	case diceexpr.ExprList:
		results := make([]Result, 0, expr.Count)
		for i := uint32(0); i < expr.Count; i++ {
			r, err := evalTerm(expr.Term, timeoutFn, rng)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
		return results, nil
	default:
		r, err := evalTerm(expr.Term, timeoutFn, rng)
		if err != nil {
			return nil, err
		}
		return []Result{r}, nil
	}
}

func evalTerm(t *diceexpr.Term, timeoutFn TimeoutFunc, rng RNG) (Result, error) {
	switch t.Tag {
	case diceexpr.TermConstant:
		return Result{Total: t.Constant}, nil
	case diceexpr.TermDiceThrow:
		rolls, err := evalSelectedDice(t.DiceThrow, timeoutFn, rng)
		if err != nil {
			return Result{}, err
		}
		var sum int64
		for _, v := range rolls {
			next := sum + v
			if (v > 0 && next < sum) || (v < 0 && next > sum) {
				return Result{}, ErrOverflow
			}
			sum = next
		}
		return Result{Total: sum, Rolls: rolls}, nil
	case diceexpr.TermSubTerm:
		return evalTerm(t.Left, timeoutFn, rng)
	case diceexpr.TermCalculation:
		left, err := evalTerm(t.Left, timeoutFn, rng)
		if err != nil {
			return Result{}, err
		}
		right, err := evalTerm(t.Right, timeoutFn, rng)
		if err != nil {
			return Result{}, err
		}
		total, err := applyOp(t.Op, left.Total, right.Total)
		if err != nil {
			return Result{}, err
		}
		rolls := make([]int64, 0, len(left.Rolls)+len(right.Rolls))
		rolls = append(rolls, left.Rolls...)
		rolls = append(rolls, right.Rolls...)
		return Result{Total: total, Rolls: rolls}, nil
	default:
		return Result{}, nil
	}
}

func applyOp(op diceexpr.Op, l, r int64) (int64, error) {
	switch op {
	case diceexpr.Add:
		sum := l + r
		if (r > 0 && sum < l) || (r < 0 && sum > l) {
			return 0, ErrOverflow
		}
		return sum, nil
	case diceexpr.Sub:
		diff := l - r
		if (r < 0 && diff < l) || (r > 0 && diff > l) {
			return 0, ErrOverflow
		}
		return diff, nil
	case diceexpr.Mul:
		if l == 0 || r == 0 {
			return 0, nil
		}
		prod := l * r
		if prod/r != l {
			return 0, ErrOverflow
		}
		return prod, nil
	case diceexpr.Div:
		if r == 0 {
			return 0, ErrDivideByZero
		}
		return l / r, nil
	default:
		return 0, ErrOverflow
	}
}

func evalSelectedDice(sd diceexpr.SelectedDice, timeoutFn TimeoutFunc, rng RNG) ([]int64, error) {
	rolls, err := evalFilteredDice(sd.Filtered, timeoutFn, rng)
	if err != nil {
		return nil, err
	}
	if !sd.HasSelector {
		return rolls, nil
	}
	k := int(sd.K)
	if len(rolls) <= k {
		return rolls, nil
	}
	sorted := append([]int64(nil), rolls...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if sd.Selector == diceexpr.Higher {
		return sorted[len(sorted)-k:], nil
	}
	return sorted[:k], nil
}

func evalFilteredDice(fd diceexpr.FilteredDice, timeoutFn TimeoutFunc, rng RNG) ([]int64, error) {
	rolls, err := evalDice(fd.Dice, timeoutFn, rng)
	if err != nil {
		return nil, err
	}
	if !fd.HasFilter {
		return rolls, nil
	}
	target := int64(fd.Target)
	filtered := make([]int64, 0, len(rolls))
	for _, v := range rolls {
		if fd.Filter.Holds(v, target) {
			filtered = append(filtered, v)
		}
	}
	return filtered, nil
}

// evalDice draws d.Throws values, checking the timeout predicate once at
// entry and then once per 256 throws via a wrapping 8-bit counter.
func evalDice(d diceexpr.Dice, timeoutFn TimeoutFunc, rng RNG) ([]int64, error) {
	if timeoutFn() {
		return nil, ErrTimeout
	}
	rolls := make([]int64, 0, d.Throws)
	var counter uint8
	for i := uint32(0); i < d.Throws; i++ {
		counter++
		if counter == 0 && timeoutFn() {
			return nil, ErrTimeout
		}
		switch d.Kind.Kind {
		case diceexpr.Fudge:
			rolls = append(rolls, rng.IntN(3)-1)
		case diceexpr.Multiply:
			faces := int64(d.Kind.Faces)
			a := rng.IntN(faces) + 1
			b := rng.IntN(faces) + 1
			prod := a * b
			if a != 0 && prod/a != b {
				return nil, ErrOverflow
			}
			rolls = append(rolls, prod)
		default: // Number
			faces := int64(d.Kind.Faces)
			rolls = append(rolls, rng.IntN(faces)+1)
		}
	}
	return rolls, nil
}
