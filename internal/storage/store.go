package storage

import (
	"context"

	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

// Store is the relational persistence backend consulted by the
// persistence worker. A production implementation lives in
// internal/storage/pgstore; tests substitute an in-memory fake.
type Store interface {
	// LoadOrInsertDefault looks up the (clientType, clientID) row. If
	// absent, it inserts and returns a defaulted row. Errors are returned
	// to the persistence worker, which logs them and continues with a
	// defaulted Config, so a failed read never reaches the bucket as an
	// error.
	LoadOrInsertDefault(ctx context.Context, clientType, clientID string) (tenantcfg.Config, error)

	// WriteChangeset updates only the fields named by dirty.
	WriteChangeset(ctx context.Context, clientType, clientID string, cfg tenantcfg.Config, dirty tenantcfg.DirtyBits) error
}

// Bundle is the result of GetBundle, the hot-path read used on every
// inbound message: the tenant's command prefix, its roll prefixes, the
// alias expressions matching candidateAliasNames (in the order those
// names were given), and the verbose-rolls flag.
type Bundle struct {
	CommandPrefix   string
	RollPrefixes    []string
	ResolvedAliases []diceexpr.LabeledExpression
	VerboseRolls    bool
}
