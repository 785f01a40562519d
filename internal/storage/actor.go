package storage

import (
	"context"
	"fmt"

	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

// Actor owns one client_type's worth of tenant configuration. Internally
// it shards the id space across several independent single-goroutine
// buckets to reduce lock contention; ordering is preserved per-id because
// a given id always hashes to the same bucket.
type Actor struct {
	clientType string
	buckets    []*bucket
}

// Config configures a new Actor.
type Config struct {
	ClientType string
	Persist    *PersistWorker
	Shards     int // number of independent cache buckets
	CacheSize  int // per-bucket LRU capacity
	QueueSize  int // per-bucket inbox capacity
}

// NewActor starts the bucket goroutines and returns a handle for issuing
// operations.
func NewActor(ctx context.Context, cfg Config) *Actor {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	a := &Actor{clientType: cfg.ClientType, buckets: make([]*bucket, cfg.Shards)}
	for i := range a.buckets {
		b := newBucket(cfg.ClientType, cfg.Persist, cfg.CacheSize, cfg.QueueSize)
		a.buckets[i] = b
		go b.run(ctx)
	}
	return a
}

func (a *Actor) bucketFor(id string) *bucket {
	return a.buckets[bucketFor(id, len(a.buckets))]
}

// do submits apply against id and returns whatever it produced.
func (a *Actor) do(ctx context.Context, id string, apply func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits)) (any, error) {
	reply := make(chan any, 1)
	req := opRequest{id: id, apply: apply, reply: reply}
	b := a.bucketFor(id)
	select {
	case b.ops <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetCommandPrefix returns the tenant's command prefix.
func (a *Actor) GetCommandPrefix(ctx context.Context, id string) (string, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		return cfg.CommandPrefix, tenantcfg.DirtyBits{}
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetCommandPrefix overwrites the tenant's command prefix.
func (a *Actor) SetCommandPrefix(ctx context.Context, id, prefix string) error {
	_, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		cfg.CommandPrefix = prefix
		return nil, tenantcfg.DirtyBits{CommandPrefix: true}
	})
	return err
}

// GetRollPrefixes returns the ordered list of roll prefixes.
func (a *Actor) GetRollPrefixes(ctx context.Context, id string) ([]string, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		out := append([]string(nil), cfg.RollPrefixes...)
		return out, tenantcfg.DirtyBits{}
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// AddRollPrefix adds prefix, reporting false if it was already present
// (the "duplicate" idempotency failure).
func (a *Actor) AddRollPrefix(ctx context.Context, id, prefix string) (bool, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		added := cfg.AddRollPrefix(prefix)
		if !added {
			return false, tenantcfg.DirtyBits{}
		}
		return true, tenantcfg.DirtyBits{RollPrefixes: true}
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// RemoveRollPrefix removes prefix, reporting false if it was absent.
func (a *Actor) RemoveRollPrefix(ctx context.Context, id, prefix string) (bool, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		removed := cfg.RemoveRollPrefix(prefix)
		if !removed {
			return false, tenantcfg.DirtyBits{}
		}
		return true, tenantcfg.DirtyBits{RollPrefixes: true}
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// GetAllAliases returns a copy of the tenant's full alias table.
func (a *Actor) GetAllAliases(ctx context.Context, id string) (map[string]diceexpr.LabeledExpression, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		out := make(map[string]diceexpr.LabeledExpression, len(cfg.Aliases))
		for k, e := range cfg.Aliases {
			out[k] = e
		}
		return out, tenantcfg.DirtyBits{}
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]diceexpr.LabeledExpression), nil
}

// GetAlias returns the alias named name, if any.
func (a *Actor) GetAlias(ctx context.Context, id, name string) (diceexpr.LabeledExpression, bool, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		e, ok := cfg.Aliases[name]
		return aliasLookup{expr: e, ok: ok}, tenantcfg.DirtyBits{}
	})
	if err != nil {
		return diceexpr.LabeledExpression{}, false, err
	}
	al := v.(aliasLookup)
	return al.expr, al.ok, nil
}

type aliasLookup struct {
	expr diceexpr.LabeledExpression
	ok   bool
}

// AddAlias inserts name → expr, reporting false if an alias with the same
// name and an identical expression already exists.
func (a *Actor) AddAlias(ctx context.Context, id, name string, expr diceexpr.LabeledExpression) (bool, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		added := cfg.AddAlias(name, expr)
		if !added {
			return false, tenantcfg.DirtyBits{}
		}
		return true, tenantcfg.DirtyBits{Aliases: true}
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// RemoveAlias deletes name, reporting false if it was absent.
func (a *Actor) RemoveAlias(ctx context.Context, id, name string) (bool, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		removed := cfg.RemoveAlias(name)
		if !removed {
			return false, tenantcfg.DirtyBits{}
		}
		return true, tenantcfg.DirtyBits{Aliases: true}
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// GetRollInfo returns the verbose-rolls flag.
func (a *Actor) GetRollInfo(ctx context.Context, id string) (bool, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		return cfg.VerboseRolls, tenantcfg.DirtyBits{}
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// SetRollInfo overwrites the verbose-rolls flag.
func (a *Actor) SetRollInfo(ctx context.Context, id string, verbose bool) error {
	_, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		cfg.VerboseRolls = verbose
		return nil, tenantcfg.DirtyBits{VerboseRolls: true}
	})
	return err
}

// GetBundle is the hot-path read used for every inbound message: it
// returns the command prefix, roll prefixes, the alias expressions
// matching candidateAliasNames (only those present, in candidate order),
// and the verbose flag, in a single round-trip.
func (a *Actor) GetBundle(ctx context.Context, id string, candidateAliasNames []string) (Bundle, error) {
	v, err := a.do(ctx, id, func(cfg *tenantcfg.Config) (any, tenantcfg.DirtyBits) {
		resolved := make([]diceexpr.LabeledExpression, 0, len(candidateAliasNames))
		for _, name := range candidateAliasNames {
			if e, ok := cfg.Aliases[name]; ok {
				resolved = append(resolved, e)
			}
		}
		b := Bundle{
			CommandPrefix:   cfg.CommandPrefix,
			RollPrefixes:    append([]string(nil), cfg.RollPrefixes...),
			ResolvedAliases: resolved,
			VerboseRolls:    cfg.VerboseRolls,
		}
		return b, tenantcfg.DirtyBits{}
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("storage: get bundle %q: %w", id, err)
	}
	return v.(Bundle), nil
}
