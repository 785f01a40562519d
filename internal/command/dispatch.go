package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrwong99/rollbot/internal/diceeval"
	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/observe"
	"github.com/mrwong99/rollbot/internal/rollexec"
	"github.com/mrwong99/rollbot/internal/storage"
)

// ResultTag identifies which CommandResult variant was produced.
type ResultTag int

const (
	ResHelp ResultTag = iota
	ResRollHelp
	ResInfo
	ResSetCommandPrefix
	ResGetCommandPrefix
	ResAddRollPrefix
	ResRemoveRollPrefix
	ResListRollPrefix
	ResAddAlias
	ResRemoveAlias
	ResListAliases
	ResRoll
	ResGetRollInfo
	ResSetRollInfo
	ResInsufficientPermission
)

// AliasEntry is a name/rendered-expression pair, as returned by ListAliases.
type AliasEntry struct {
	Name string
	Expr string
}

// RollOutcome is the outcome of evaluating a single labeled roll expression.
type RollOutcome struct {
	Results []diceeval.Result
	Err     error
	Text    string
	Label   *string
}

// CommandResult is the outcome of dispatching a parsed Command. Only the
// fields relevant to Tag carry meaningful values.
type CommandResult struct {
	Tag           ResultTag
	CommandPrefix string // Help, SetCommandPrefix, GetCommandPrefix
	Ok            bool   // AddRollPrefix, RemoveRollPrefix, RemoveAlias
	RollPrefixes  []string
	Aliases       []AliasEntry
	Rolls         []RollOutcome
	VerboseRolls  bool
}

// PermissionFunc reports whether the caller may perform a mutating
// operation. It is only consulted for SetCommandPrefix, AddRollPrefix,
// RemoveRollPrefix, AddAlias, and RemoveAlias.
type PermissionFunc func(ctx context.Context) bool

// Dispatcher wires the storage actor and roll executor for one client_type
// into a single message-evaluation entry point.
type Dispatcher struct {
	clientType string
	storage    *storage.Actor
	exec       *rollexec.Executor
	metrics    *observe.Metrics
}

// NewDispatcher builds a Dispatcher over storageActor and exec. metrics may
// be nil, in which case dispatch and roll outcomes are not recorded.
func NewDispatcher(clientType string, storageActor *storage.Actor, exec *rollexec.Executor, metrics *observe.Metrics) *Dispatcher {
	return &Dispatcher{clientType: clientType, storage: storageActor, exec: exec, metrics: metrics}
}

// Eval interprets text as a command for id. It returns ok=false if text
// matches no command at all (neither a prefix, a roll prefix, nor a bare
// alias reference), in which case the caller should stay silent.
func (d *Dispatcher) Eval(ctx context.Context, id, text string, checkPermission PermissionFunc) (CommandResult, bool, error) {
	candidates := CandidateAliasNames(text)
	bundle, err := d.storage.GetBundle(ctx, id, candidates)
	if err != nil {
		return CommandResult{}, false, fmt.Errorf("command: eval %q: %w", id, err)
	}

	cmd, matched := ParseWithPrefix(text, bundle.CommandPrefix)
	if !matched {
		for _, rp := range bundle.RollPrefixes {
			if c, ok := ParseRoll(text, rp); ok {
				cmd, matched = c, true
				break
			}
		}
	}
	if !matched {
		if c, ok := ResolveAliasRoll(bundle.ResolvedAliases); ok {
			cmd, matched = c, true
		}
	}
	if !matched {
		return CommandResult{}, false, nil
	}

	result, err := d.dispatch(ctx, id, cmd, bundle, checkPermission)
	if err != nil {
		return CommandResult{}, true, err
	}
	if d.metrics != nil {
		d.metrics.RecordCommand(ctx, d.clientType, resultTagName(result.Tag))
	}
	return result, true, nil
}

func resultTagName(tag ResultTag) string {
	switch tag {
	case ResHelp:
		return "help"
	case ResRollHelp:
		return "roll_help"
	case ResInfo:
		return "info"
	case ResSetCommandPrefix:
		return "set_command_prefix"
	case ResGetCommandPrefix:
		return "get_command_prefix"
	case ResAddRollPrefix:
		return "add_roll_prefix"
	case ResRemoveRollPrefix:
		return "remove_roll_prefix"
	case ResListRollPrefix:
		return "list_roll_prefix"
	case ResAddAlias:
		return "add_alias"
	case ResRemoveAlias:
		return "remove_alias"
	case ResListAliases:
		return "list_aliases"
	case ResRoll:
		return "roll"
	case ResGetRollInfo:
		return "get_roll_info"
	case ResSetRollInfo:
		return "set_roll_info"
	case ResInsufficientPermission:
		return "insufficient_permission"
	default:
		return "unknown"
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, id string, cmd Command, bundle storage.Bundle, checkPermission PermissionFunc) (CommandResult, error) {
	permitted := func() bool { return checkPermission != nil && checkPermission(ctx) }

	switch cmd.Tag {
	case Help:
		return CommandResult{Tag: ResHelp, CommandPrefix: bundle.CommandPrefix}, nil

	case RollHelp:
		return CommandResult{Tag: ResRollHelp}, nil

	case Info:
		return CommandResult{Tag: ResInfo}, nil

	case SetCommandPrefix:
		if !permitted() {
			return CommandResult{Tag: ResInsufficientPermission}, nil
		}
		if err := d.storage.SetCommandPrefix(ctx, id, cmd.StringArg); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Tag: ResSetCommandPrefix, CommandPrefix: cmd.StringArg}, nil

	case GetCommandPrefix:
		return CommandResult{Tag: ResGetCommandPrefix, CommandPrefix: bundle.CommandPrefix}, nil

	case AddRollPrefix:
		if !permitted() {
			return CommandResult{Tag: ResInsufficientPermission}, nil
		}
		ok, err := d.storage.AddRollPrefix(ctx, id, cmd.StringArg)
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Tag: ResAddRollPrefix, Ok: ok}, nil

	case RemoveRollPrefix:
		if !permitted() {
			return CommandResult{Tag: ResInsufficientPermission}, nil
		}
		ok, err := d.storage.RemoveRollPrefix(ctx, id, cmd.StringArg)
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Tag: ResRemoveRollPrefix, Ok: ok}, nil

	case ListRollPrefix:
		prefixes, err := d.storage.GetRollPrefixes(ctx, id)
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Tag: ResListRollPrefix, RollPrefixes: prefixes}, nil

	case AddAlias:
		if !permitted() {
			return CommandResult{Tag: ResInsufficientPermission}, nil
		}
		if _, err := d.storage.AddAlias(ctx, id, cmd.StringArg, cmd.Expr); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Tag: ResAddAlias}, nil

	case RemoveAlias:
		if !permitted() {
			return CommandResult{Tag: ResInsufficientPermission}, nil
		}
		ok, err := d.storage.RemoveAlias(ctx, id, cmd.StringArg)
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Tag: ResRemoveAlias, Ok: ok}, nil

	case ListAliases:
		all, err := d.storage.GetAllAliases(ctx, id)
		if err != nil {
			return CommandResult{}, err
		}
		entries := make([]AliasEntry, 0, len(all))
		for name, expr := range all {
			entries = append(entries, AliasEntry{Name: name, Expr: expr.String()})
		}
		return CommandResult{Tag: ResListAliases, Aliases: entries}, nil

	case AliasRoll:
		outcomes := make([]RollOutcome, 0, len(cmd.AliasExprs))
		for _, expr := range cmd.AliasExprs {
			outcomes = append(outcomes, d.rollOne(ctx, expr))
		}
		return CommandResult{Tag: ResRoll, Rolls: outcomes, VerboseRolls: bundle.VerboseRolls}, nil

	case Roll:
		outcome := d.rollOne(ctx, cmd.Expr)
		return CommandResult{Tag: ResRoll, Rolls: []RollOutcome{outcome}, VerboseRolls: bundle.VerboseRolls}, nil

	case GetRollInfo:
		return CommandResult{Tag: ResGetRollInfo, VerboseRolls: bundle.VerboseRolls}, nil

	case SetRollInfo:
		if err := d.storage.SetRollInfo(ctx, id, cmd.BoolArg); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Tag: ResSetRollInfo}, nil

	default:
		return CommandResult{}, fmt.Errorf("command: unhandled command tag %v", cmd.Tag)
	}
}

func (d *Dispatcher) rollOne(ctx context.Context, expr diceexpr.LabeledExpression) RollOutcome {
	start := time.Now()
	res, err := d.exec.Roll(ctx, expr)
	if d.metrics != nil {
		d.metrics.RecordRoll(ctx, d.clientType, err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		return RollOutcome{Err: err, Text: expr.String(), Label: expr.Label}
	}
	if res.Err != nil && d.metrics != nil {
		d.metrics.RecordRollError(ctx, evalErrCause(res.Err))
	}
	return RollOutcome{Results: res.Outcome, Err: res.Err, Text: res.Text, Label: res.Label}
}

func evalErrCause(err error) string {
	switch {
	case errors.Is(err, diceeval.ErrDivideByZero):
		return "divide_by_zero"
	case errors.Is(err, diceeval.ErrOverflow):
		return "overflow"
	case errors.Is(err, diceeval.ErrTimeout):
		return "timeout"
	default:
		return "other"
	}
}
