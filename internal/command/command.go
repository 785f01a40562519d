// Package command implements the plain-text command grammar used by every
// transport adapter: a tenant configures a command prefix and any number of
// roll prefixes, and every inbound message is matched against both before
// falling back to bare alias references.
package command

import "github.com/mrwong99/rollbot/internal/diceexpr"

// Tag identifies which command variant a parsed Command holds.
type Tag int

const (
	Help Tag = iota
	RollHelp
	Info
	SetCommandPrefix
	GetCommandPrefix
	SetRollInfo
	GetRollInfo
	AddRollPrefix
	RemoveRollPrefix
	ListRollPrefix
	AddAlias
	RemoveAlias
	ListAliases
	AliasRoll
	Roll
)

// Command is a single parsed instruction. Only the fields relevant to Tag
// are populated; the rest hold zero values.
type Command struct {
	Tag        Tag
	StringArg  string // prefix text, roll-prefix text, or alias name (add/remove)
	BoolArg    bool   // SetRollInfo's new value
	Expr       diceexpr.LabeledExpression
	AliasExprs []diceexpr.LabeledExpression // AliasRoll
}
