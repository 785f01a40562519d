package command

import (
	"strings"
	"unicode"

	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/diceparser"
	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

type cparser struct {
	src []rune
	pos int
}

func (p *cparser) eof() bool  { return p.pos >= len(p.src) }
func (p *cparser) rest() string { return string(p.src[p.pos:]) }

func runeEqualFold(a, b rune) bool { return unicode.ToLower(a) == unicode.ToLower(b) }

// consumeFold matches lit against the input ignoring case, advancing on
// success and leaving pos untouched on failure.
func (p *cparser) consumeFold(lit string) bool {
	litRunes := []rune(lit)
	if p.pos+len(litRunes) > len(p.src) {
		return false
	}
	for i, r := range litRunes {
		if !runeEqualFold(p.src[p.pos+i], r) {
			return false
		}
	}
	p.pos += len(litRunes)
	return true
}

func (p *cparser) consume(lit string) bool {
	litRunes := []rune(lit)
	if p.pos+len(litRunes) > len(p.src) {
		return false
	}
	for i, r := range litRunes {
		if p.src[p.pos+i] != r {
			return false
		}
	}
	p.pos += len(litRunes)
	return true
}

func (p *cparser) skipSpace0() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *cparser) skipSpace1() bool {
	start := p.pos
	p.skipSpace0()
	return p.pos > start
}

// charsSet takes as many consecutive valid chars (per tenantcfg.ValidRune)
// as it can find, requiring at least min of them.
func (p *cparser) charsSet(min int) (string, bool) {
	start := p.pos
	for !p.eof() && tenantcfg.ValidRune(p.src[p.pos]) {
		p.pos++
	}
	if p.pos-start < min {
		p.pos = start
		return "", false
	}
	return string(p.src[start:p.pos]), true
}

func (p *cparser) parseHelp() (Command, bool) {
	save := p.pos
	if p.consumeFold("help") || p.consumeFold("h") {
		return Command{Tag: Help}, true
	}
	p.pos = save
	return Command{}, false
}

func (p *cparser) parseRollHelp() (Command, bool) {
	save := p.pos
	for _, lit := range []string{"roll-help", "roll_help", "roll help", "rh"} {
		if p.consumeFold(lit) {
			return Command{Tag: RollHelp}, true
		}
	}
	p.pos = save
	return Command{}, false
}

func (p *cparser) parseInfo() (Command, bool) {
	save := p.pos
	if p.consumeFold("info") || p.consumeFold("i") {
		return Command{Tag: Info}, true
	}
	p.pos = save
	return Command{}, false
}

func (p *cparser) parseCommandPrefix() (Command, bool) {
	save := p.pos
	matched := false
	for _, lit := range []string{"command_prefix", "command-prefix", "command prefix", "cp"} {
		if p.consumeFold(lit) {
			matched = true
			break
		}
	}
	if !matched {
		p.pos = save
		return Command{}, false
	}
	p.skipSpace0()

	sub := p.pos
	if p.consumeFold("get") || p.consumeFold("g") {
		return Command{Tag: GetCommandPrefix}, true
	}
	p.pos = sub
	if p.consumeFold("set") || p.consumeFold("s") {
		p.skipSpace0()
		if s, ok := p.charsSet(1); ok {
			return Command{Tag: SetCommandPrefix, StringArg: s}, true
		}
	}
	p.pos = save
	return Command{}, false
}

func (p *cparser) parseRollPrefix() (Command, bool) {
	save := p.pos
	matched := false
	for _, lit := range []string{"roll-prefix", "roll_prefix", "roll prefix", "rp"} {
		if p.consumeFold(lit) {
			matched = true
			break
		}
	}
	if !matched {
		p.pos = save
		return Command{}, false
	}
	p.skipSpace0()

	sub := p.pos
	if p.consumeFold("list") || p.consumeFold("l") {
		return Command{Tag: ListRollPrefix}, true
	}
	p.pos = sub
	if p.consumeFold("add") || p.consumeFold("a") {
		p.skipSpace0()
		s, _ := p.charsSet(0)
		return Command{Tag: AddRollPrefix, StringArg: s}, true
	}
	p.pos = sub
	if p.consumeFold("remove") || p.consumeFold("r") {
		p.skipSpace0()
		s, _ := p.charsSet(0)
		return Command{Tag: RemoveRollPrefix, StringArg: s}, true
	}
	p.pos = save
	return Command{}, false
}

func (p *cparser) parseRollCommand() (Command, bool) {
	save := p.pos
	if !(p.consumeFold("roll") || p.consumeFold("r")) {
		p.pos = save
		return Command{}, false
	}
	p.skipSpace0()
	le, rest, ok := diceparser.Parse(p.rest())
	if !ok {
		p.pos = save
		return Command{}, false
	}
	p.pos = len(p.src) - len([]rune(rest))
	return Command{Tag: Roll, Expr: le}, true
}

func (p *cparser) parseAlias() (Command, bool) {
	save := p.pos
	if !(p.consumeFold("alias") || p.consumeFold("a")) {
		p.pos = save
		return Command{}, false
	}
	p.skipSpace0()

	sub := p.pos
	if p.consumeFold("add") || p.consumeFold("a") {
		p.skipSpace0()
		name, ok := p.charsSet(1)
		if ok && p.skipSpace1() {
			if le, rest, pok := diceparser.Parse(p.rest()); pok {
				p.pos = len(p.src) - len([]rune(rest))
				return Command{Tag: AddAlias, StringArg: name, Expr: le}, true
			}
		}
		p.pos = sub
	}

	if p.consumeFold("remove") || p.consumeFold("r") {
		p.skipSpace0()
		if name, ok := p.charsSet(1); ok {
			return Command{Tag: RemoveAlias, StringArg: name}, true
		}
		p.pos = sub
	}

	if p.consumeFold("list") || p.consumeFold("l") {
		return Command{Tag: ListAliases}, true
	}

	p.pos = save
	return Command{}, false
}

func (p *cparser) parseRollInfo() (Command, bool) {
	save := p.pos
	matched := false
	for _, lit := range []string{"roll-info", "roll_info", "roll info", "ri"} {
		if p.consumeFold(lit) {
			matched = true
			break
		}
	}
	if !matched {
		p.pos = save
		return Command{}, false
	}
	p.skipSpace0()

	sub := p.pos
	if p.consumeFold("get") || p.consumeFold("g") {
		return Command{Tag: GetRollInfo}, true
	}
	p.pos = sub
	if p.consumeFold("set") || p.consumeFold("s") {
		p.skipSpace0()
		if p.consumeFold("true") || p.consumeFold("t") || p.consume("1") {
			return Command{Tag: SetRollInfo, BoolArg: true}, true
		}
		if p.consumeFold("false") || p.consumeFold("f") || p.consumeFold("0") {
			return Command{Tag: SetRollInfo, BoolArg: false}, true
		}
	}
	p.pos = save
	return Command{}, false
}

func (p *cparser) parseSubcommand() (Command, bool) {
	type fn func() (Command, bool)
	for _, f := range []fn{
		p.parseHelp, p.parseRollHelp, p.parseInfo,
		p.parseCommandPrefix, p.parseRollPrefix, p.parseAlias,
		p.parseRollInfo, p.parseRollCommand,
	} {
		save := p.pos
		if cmd, ok := f(); ok {
			return cmd, true
		}
		p.pos = save
	}
	return Command{}, false
}

// ParseWithPrefix tries to interpret text as a full command under prefix:
// "<prefix> <subcommand>". If the prefix matches but nothing usable follows,
// it falls back to Help (matching the tenant's own command prefix with no
// subcommand is itself the help request). If the prefix does not match at
// all, ok is false.
func ParseWithPrefix(text, prefix string) (Command, bool) {
	p := &cparser{src: []rune(text)}
	if !p.consume(prefix) {
		return Command{}, false
	}
	save := p.pos
	p.skipSpace0()
	if cmd, ok := p.parseSubcommand(); ok {
		p.skipSpace0()
		if p.eof() {
			return cmd, true
		}
	}
	p.pos = save
	return Command{Tag: Help}, true
}

// ParseRoll tries to interpret text as "<prefix> <labeled expression>" with
// nothing else trailing.
func ParseRoll(text, prefix string) (Command, bool) {
	p := &cparser{src: []rune(text)}
	if !p.consume(prefix) {
		return Command{}, false
	}
	p.skipSpace0()
	le, rest, ok := diceparser.Parse(p.rest())
	if !ok {
		return Command{}, false
	}
	restP := &cparser{src: []rune(rest)}
	restP.skipSpace0()
	if !restP.eof() {
		return Command{}, false
	}
	return Command{Tag: Roll, Expr: le}, true
}

// ExtraAliasNames scans text for every "$name" reference, in order of
// appearance, using the same character set as roll prefixes and aliases.
func ExtraAliasNames(text string) []string {
	runes := []rune(text)
	var names []string
	i := 0
	for i < len(runes) {
		if runes[i] != '$' {
			i++
			continue
		}
		j := i + 1
		for j < len(runes) && tenantcfg.ValidRune(runes[j]) {
			j++
		}
		if j > i+1 {
			names = append(names, string(runes[i+1:j]))
		}
		i = j
	}
	return names
}

// ResolveAliasRoll builds an AliasRoll command from the alias expressions
// already resolved against a tenant's bundle (only names present in the
// tenant's table, in call order).
func ResolveAliasRoll(exprs []diceexpr.LabeledExpression) (Command, bool) {
	if len(exprs) == 0 {
		return Command{}, false
	}
	return Command{Tag: AliasRoll, AliasExprs: exprs}, true
}

// CandidateAliasNames returns every alias name a message could reference:
// its $-prefixed names plus, as a fallback, the whole trimmed message
// treated as a bare alias name (matching a message that is exactly an
// alias invocation with no leading prefix at all). Callers use this to
// build the bundle lookup before dispatching.
func CandidateAliasNames(text string) []string {
	names := ExtraAliasNames(text)
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		names = append(names, trimmed)
	}
	return names
}
