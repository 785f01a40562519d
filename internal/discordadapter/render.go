// Package discordadapter is the Discord transport front-end: it turns
// plain-text messages into command.Dispatcher calls and renders the
// resulting CommandResult back into chat.
package discordadapter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrwong99/rollbot/internal/command"
	"github.com/mrwong99/rollbot/internal/diceeval"
)

// Render turns a CommandResult into the text to send back to the channel.
func Render(res command.CommandResult) string {
	switch res.Tag {
	case command.ResHelp:
		return fmt.Sprintf(
			"Commands (prefix `%s`): help, roll-help, info, command_prefix get|set, roll_prefix list|add|remove, alias add|remove|list, roll_info get|set, roll <expr>",
			res.CommandPrefix,
		)
	case command.ResRollHelp:
		return "Roll grammar: `NdM`, `NwM`, `NdF` (fudge), `Nd%`, filters `>`, `>=`, `<`, `<=`, `!=`, selectors `h`/`k` (highest) and `l` (lowest), arithmetic `+ - * /`, labels with `#`."
	case command.ResInfo:
		return "rollbot — multi-tenant dice roller."
	case command.ResSetCommandPrefix:
		return fmt.Sprintf("Command prefix set to `%s`.", res.CommandPrefix)
	case command.ResGetCommandPrefix:
		return fmt.Sprintf("Command prefix is `%s`.", res.CommandPrefix)
	case command.ResAddRollPrefix:
		if res.Ok {
			return "Roll prefix added."
		}
		return "❌ That roll prefix already exists."
	case command.ResRemoveRollPrefix:
		if res.Ok {
			return "Roll prefix removed."
		}
		return "❌ That roll prefix does not exist."
	case command.ResListRollPrefix:
		if len(res.RollPrefixes) == 0 {
			return "No roll prefixes configured."
		}
		return "Roll prefixes: " + strings.Join(quoteAll(res.RollPrefixes), ", ")
	case command.ResAddAlias:
		return "Alias added."
	case command.ResRemoveAlias:
		if res.Ok {
			return "Alias removed."
		}
		return "❌ That alias does not exist."
	case command.ResListAliases:
		if len(res.Aliases) == 0 {
			return "No aliases configured."
		}
		lines := make([]string, 0, len(res.Aliases))
		for _, a := range res.Aliases {
			lines = append(lines, fmt.Sprintf("`%s`: %s", a.Name, a.Expr))
		}
		return strings.Join(lines, "\n")
	case command.ResRoll:
		return renderRolls(res.Rolls, res.VerboseRolls)
	case command.ResGetRollInfo:
		return fmt.Sprintf("Verbose rolls: %t", res.VerboseRolls)
	case command.ResSetRollInfo:
		return "Verbose roll setting updated."
	case command.ResInsufficientPermission:
		return "❌ You do not have permission to do that."
	default:
		return "❌ unrecognised command"
	}
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = "`" + s + "`"
	}
	return out
}

func renderRolls(outcomes []command.RollOutcome, verbose bool) string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		lines = append(lines, renderOutcome(o, verbose))
	}
	return strings.Join(lines, "\n")
}

func renderOutcome(o command.RollOutcome, verbose bool) string {
	label := o.Text
	if o.Label != nil && *o.Label != "" {
		label = fmt.Sprintf("%s (%s)", o.Text, *o.Label)
	}
	if o.Err != nil {
		return fmt.Sprintf("❌ %s: %s", label, describeEvalErr(o.Err))
	}
	parts := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		parts = append(parts, renderResult(r, verbose))
	}
	return fmt.Sprintf("%s → %s", label, strings.Join(parts, "; "))
}

func renderResult(r diceeval.Result, verbose bool) string {
	if !verbose || len(r.Rolls) == 0 {
		return fmt.Sprintf("%d", r.Total)
	}
	rolls := make([]string, len(r.Rolls))
	for i, v := range r.Rolls {
		rolls[i] = fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%d [%s]", r.Total, strings.Join(rolls, ", "))
}

func describeEvalErr(err error) string {
	switch {
	case errors.Is(err, diceeval.ErrDivideByZero):
		return "division by zero"
	case errors.Is(err, diceeval.ErrOverflow):
		return "arithmetic overflow"
	case errors.Is(err, diceeval.ErrTimeout):
		return "roll timed out"
	default:
		return err.Error()
	}
}
