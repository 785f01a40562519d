// Package tenantcfg defines the per-tenant configuration row and the
// validation rules that gate every mutation of it.
package tenantcfg

import "github.com/mrwong99/rollbot/internal/diceexpr"

// DefaultCommandPrefix is used for every newly created tenant.
const DefaultCommandPrefix = "rrb!"

// Config is one tenant's mutable settings: the command prefix, the
// ordered set of bare roll prefixes, the alias table, and the verbosity
// flag. Zero value is not meaningful — use [New] or a loaded row.
type Config struct {
	CommandPrefix string
	RollPrefixes  []string // ordered, no duplicates
	Aliases       map[string]diceexpr.LabeledExpression
	VerboseRolls  bool
}

// New returns a freshly defaulted Config, matching the row a persistence
// worker inserts the first time it sees an unknown tenant id.
func New() Config {
	return Config{
		CommandPrefix: DefaultCommandPrefix,
		RollPrefixes:  nil,
		Aliases:       make(map[string]diceexpr.LabeledExpression),
		VerboseRolls:  false,
	}
}

// DirtyBits tracks which mutable fields of a cached entry have changed
// since the last write-back, one independent bit per field.
type DirtyBits struct {
	CommandPrefix bool
	RollPrefixes  bool
	Aliases       bool
	VerboseRolls  bool
}

// Any reports whether at least one bit is set.
func (d DirtyBits) Any() bool {
	return d.CommandPrefix || d.RollPrefixes || d.Aliases || d.VerboseRolls
}

// Or sets every bit that is set in other.
func (d *DirtyBits) Or(other DirtyBits) {
	d.CommandPrefix = d.CommandPrefix || other.CommandPrefix
	d.RollPrefixes = d.RollPrefixes || other.RollPrefixes
	d.Aliases = d.Aliases || other.Aliases
	d.VerboseRolls = d.VerboseRolls || other.VerboseRolls
}

// HasRollPrefix reports whether prefix is already present.
func (c *Config) HasRollPrefix(prefix string) bool {
	for _, p := range c.RollPrefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

// AddRollPrefix appends prefix if it is not already present. It reports
// whether the prefix was added.
func (c *Config) AddRollPrefix(prefix string) bool {
	if c.HasRollPrefix(prefix) {
		return false
	}
	c.RollPrefixes = append(c.RollPrefixes, prefix)
	return true
}

// RemoveRollPrefix removes prefix, preserving the order of the remaining
// entries. It reports whether anything was removed.
func (c *Config) RemoveRollPrefix(prefix string) bool {
	for i, p := range c.RollPrefixes {
		if p == prefix {
			c.RollPrefixes = append(c.RollPrefixes[:i], c.RollPrefixes[i+1:]...)
			return true
		}
	}
	return false
}

// AddAlias inserts name → expr unless an alias with the same name and an
// identical expression already exists, in which case it reports false
// (the "same-expr" idempotency failure from the storage contract).
func (c *Config) AddAlias(name string, expr diceexpr.LabeledExpression) bool {
	if existing, ok := c.Aliases[name]; ok && existing.Equal(expr) {
		return false
	}
	c.Aliases[name] = expr
	return true
}

// RemoveAlias deletes name if present, reporting whether it existed.
func (c *Config) RemoveAlias(name string) bool {
	if _, ok := c.Aliases[name]; !ok {
		return false
	}
	delete(c.Aliases, name)
	return true
}
