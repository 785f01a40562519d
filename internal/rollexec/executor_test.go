package rollexec_test

import (
	"context"
	"testing"
	"time"

	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/rng"
	"github.com/mrwong99/rollbot/internal/rollexec"
)

func newTestExecutor(t *testing.T, workers int, timeout time.Duration) *rollexec.Executor {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	provider, err := rng.NewProvider(ctx)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return rollexec.New(ctx, workers, timeout, provider)
}

func TestExecutor_Roll_Constant(t *testing.T) {
	exec := newTestExecutor(t, 2, time.Second)
	label := "check"
	expr := diceexpr.LabeledExpression{
		Expression: diceexpr.Expression{
			Tag:  diceexpr.ExprSimple,
			Term: &diceexpr.Term{Tag: diceexpr.TermConstant, Constant: 10},
		},
		Label: &label,
	}

	res, err := exec.Roll(context.Background(), expr)
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("evaluation error: %v", res.Err)
	}
	if len(res.Outcome) != 1 || res.Outcome[0].Total != 10 {
		t.Errorf("Outcome = %+v, want total 10", res.Outcome)
	}
	if res.Label == nil || *res.Label != label {
		t.Errorf("Label = %v, want %q", res.Label, label)
	}
	if res.Text == "" {
		t.Error("Text should be the rendered expression")
	}
}

func TestExecutor_Roll_DiceThrowStaysInRange(t *testing.T) {
	exec := newTestExecutor(t, 4, time.Second)
	dice := diceexpr.SelectedDice{
		Filtered: diceexpr.FilteredDice{Dice: diceexpr.Dice{Throws: 2, Kind: diceexpr.DiceKind{Kind: diceexpr.Number, Faces: 20}}},
	}
	expr := diceexpr.LabeledExpression{
		Expression: diceexpr.Expression{
			Tag:  diceexpr.ExprSimple,
			Term: &diceexpr.Term{Tag: diceexpr.TermDiceThrow, DiceThrow: dice},
		},
	}

	for i := 0; i < 20; i++ {
		res, err := exec.Roll(context.Background(), expr)
		if err != nil {
			t.Fatalf("Roll: %v", err)
		}
		if res.Err != nil {
			t.Fatalf("evaluation error: %v", res.Err)
		}
		for _, v := range res.Outcome[0].Rolls {
			if v < 1 || v > 20 {
				t.Fatalf("roll %d out of range [1,20]", v)
			}
		}
	}
}

func TestExecutor_Roll_TimesOut(t *testing.T) {
	exec := newTestExecutor(t, 1, time.Nanosecond)
	dice := diceexpr.SelectedDice{
		Filtered: diceexpr.FilteredDice{Dice: diceexpr.Dice{Throws: 1 << 20, Kind: diceexpr.DiceKind{Kind: diceexpr.Number, Faces: 6}}},
	}
	expr := diceexpr.LabeledExpression{
		Expression: diceexpr.Expression{
			Tag:  diceexpr.ExprSimple,
			Term: &diceexpr.Term{Tag: diceexpr.TermDiceThrow, DiceThrow: dice},
		},
	}

	res, err := exec.Roll(context.Background(), expr)
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if res.Err == nil {
		t.Error("expected a timeout evaluation error for a huge throw with a nanosecond budget")
	}
}

func TestExecutor_Roll_ContextCancelledBeforeSubmit(t *testing.T) {
	exec := newTestExecutor(t, 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	expr := diceexpr.LabeledExpression{
		Expression: diceexpr.Expression{Tag: diceexpr.ExprSimple, Term: &diceexpr.Term{Tag: diceexpr.TermConstant, Constant: 1}},
	}
	if _, err := exec.Roll(ctx, expr); err == nil {
		t.Error("expected an error from an already-cancelled context")
	}
}
