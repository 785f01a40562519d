package command_test

import (
	"testing"

	"github.com/mrwong99/rollbot/internal/command"
)

func TestParseWithPrefix_SetCommandPrefix(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!cp set !!", "!")
	if !ok {
		t.Fatal("expected a match")
	}
	if cmd.Tag != command.SetCommandPrefix {
		t.Fatalf("Tag = %v, want SetCommandPrefix", cmd.Tag)
	}
	if cmd.StringArg != "!!" {
		t.Errorf("StringArg = %q, want %q", cmd.StringArg, "!!")
	}
}

func TestParseWithPrefix_CaseInsensitiveAbbreviations(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!CP S rrb", "!")
	if !ok {
		t.Fatal("expected a match")
	}
	if cmd.Tag != command.SetCommandPrefix || cmd.StringArg != "rrb" {
		t.Fatalf("got %+v", cmd)
	}
}

func TestParseWithPrefix_NoSubcommandFallsBackToHelp(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!", "!")
	if !ok {
		t.Fatal("expected a match")
	}
	if cmd.Tag != command.Help {
		t.Errorf("Tag = %v, want Help", cmd.Tag)
	}
}

func TestParseWithPrefix_WrongPrefixFails(t *testing.T) {
	if _, ok := command.ParseWithPrefix("?help", "!"); ok {
		t.Error("expected no match for a non-matching prefix")
	}
}

func TestParseWithPrefix_RollPrefixAddAndRemove(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!rp add r!", "!")
	if !ok || cmd.Tag != command.AddRollPrefix || cmd.StringArg != "r!" {
		t.Fatalf("add: got %+v, ok=%v", cmd, ok)
	}

	cmd, ok = command.ParseWithPrefix("!rp remove r!", "!")
	if !ok || cmd.Tag != command.RemoveRollPrefix || cmd.StringArg != "r!" {
		t.Fatalf("remove: got %+v, ok=%v", cmd, ok)
	}

	cmd, ok = command.ParseWithPrefix("!rp list", "!")
	if !ok || cmd.Tag != command.ListRollPrefix {
		t.Fatalf("list: got %+v, ok=%v", cmd, ok)
	}
}

func TestParseWithPrefix_AliasAddGetsExpression(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!alias add atk 1d20+5", "!")
	if !ok {
		t.Fatal("expected a match")
	}
	if cmd.Tag != command.AddAlias || cmd.StringArg != "atk" {
		t.Fatalf("got %+v", cmd)
	}
}

func TestParseWithPrefix_AliasRemoveAndList(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!alias remove atk", "!")
	if !ok || cmd.Tag != command.RemoveAlias || cmd.StringArg != "atk" {
		t.Fatalf("remove: got %+v, ok=%v", cmd, ok)
	}

	cmd, ok = command.ParseWithPrefix("!alias list", "!")
	if !ok || cmd.Tag != command.ListAliases {
		t.Fatalf("list: got %+v, ok=%v", cmd, ok)
	}
}

func TestParseWithPrefix_RollInfoSetTrueFalse(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!ri set true", "!")
	if !ok || cmd.Tag != command.SetRollInfo || !cmd.BoolArg {
		t.Fatalf("true: got %+v, ok=%v", cmd, ok)
	}

	cmd, ok = command.ParseWithPrefix("!ri set f", "!")
	if !ok || cmd.Tag != command.SetRollInfo || cmd.BoolArg {
		t.Fatalf("false: got %+v, ok=%v", cmd, ok)
	}
}

func TestParseWithPrefix_RollHelpAndInfoAndHelp(t *testing.T) {
	for _, tc := range []struct {
		text string
		tag  command.Tag
	}{
		{"!roll-help", command.RollHelp},
		{"!rh", command.RollHelp},
		{"!info", command.Info},
		{"!i", command.Info},
		{"!help", command.Help},
		{"!h", command.Help},
	} {
		cmd, ok := command.ParseWithPrefix(tc.text, "!")
		if !ok || cmd.Tag != tc.tag {
			t.Errorf("%q: got %+v, ok=%v, want tag %v", tc.text, cmd, ok, tc.tag)
		}
	}
}

func TestParseWithPrefix_TrailingGarbageFallsBackToHelp(t *testing.T) {
	cmd, ok := command.ParseWithPrefix("!cp set abc extra garbage", "!")
	if !ok {
		t.Fatal("expected a match (help fallback)")
	}
	if cmd.Tag != command.Help {
		t.Errorf("Tag = %v, want Help for unconsumed trailing text", cmd.Tag)
	}
}

func TestParseRoll(t *testing.T) {
	cmd, ok := command.ParseRoll("!! 1d20+5", "!!")
	if !ok {
		t.Fatal("expected a match")
	}
	if cmd.Tag != command.Roll {
		t.Errorf("Tag = %v, want Roll", cmd.Tag)
	}
}

func TestParseRoll_TrailingGarbageFails(t *testing.T) {
	if _, ok := command.ParseRoll("!! 1d20 garbage", "!!"); ok {
		t.Error("expected no match when trailing text is not part of the expression")
	}
}

func TestExtraAliasNames(t *testing.T) {
	got := command.ExtraAliasNames("roll $atk plus $dmg for fun")
	want := []string{"atk", "dmg"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtraAliasNames_NoneFound(t *testing.T) {
	if got := command.ExtraAliasNames("plain text with no aliases"); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestCandidateAliasNames_FallsBackToTrimmedWholeMessage(t *testing.T) {
	got := command.CandidateAliasNames("  atk  ")
	want := []string{"atk"}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveAliasRoll_EmptyFails(t *testing.T) {
	if _, ok := command.ResolveAliasRoll(nil); ok {
		t.Error("expected failure for an empty expression list")
	}
}
