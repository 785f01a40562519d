// Package pgstore is the PostgreSQL-backed [storage.Store] implementation.
// It mirrors the client_config table described by the wire format: one row
// per (client_type, client_id) pair, with the roll prefix list and alias
// table stored as JSONB.
package pgstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/rollcodec"
	"github.com/mrwong99/rollbot/internal/storage"
	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

// Schema is the SQL DDL for the client_config table.
const Schema = `
CREATE TABLE IF NOT EXISTS client_config (
    client_type    TEXT NOT NULL,
    client_id      TEXT NOT NULL,
    command_prefix TEXT NOT NULL DEFAULT 'rrb!',
    roll_prefix    JSONB NOT NULL DEFAULT '[]',
    aliases        JSONB NOT NULL DEFAULT '{}',
    roll_info      BOOLEAN NOT NULL DEFAULT false,
    PRIMARY KEY (client_type, client_id)
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [storage.Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ storage.Store = (*PostgresStore)(nil)

// New creates a PostgresStore over db. Call Migrate before issuing queries
// against a fresh database.
func New(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the Schema DDL, creating the table if absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// LoadOrInsertDefault implements [storage.Store].
func (s *PostgresStore) LoadOrInsertDefault(ctx context.Context, clientType, clientID string) (tenantcfg.Config, error) {
	const selectQuery = `
		SELECT command_prefix, roll_prefix, aliases, roll_info
		FROM client_config
		WHERE client_type = $1 AND client_id = $2`

	var prefix string
	var rollPrefixJSON, aliasesJSON []byte
	var verbose bool

	err := s.db.QueryRow(ctx, selectQuery, clientType, clientID).Scan(&prefix, &rollPrefixJSON, &aliasesJSON, &verbose)
	if err == nil {
		return decodeRow(prefix, rollPrefixJSON, aliasesJSON, verbose)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return tenantcfg.Config{}, fmt.Errorf("pgstore: load %s/%s: %w", clientType, clientID, err)
	}

	def := tenantcfg.New()
	rollPrefixJSON, _ = json.Marshal([]string{})
	aliasesJSON, _ = json.Marshal(map[string]string{})

	const insertQuery = `
		INSERT INTO client_config (client_type, client_id, command_prefix, roll_prefix, aliases, roll_info)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_type, client_id) DO NOTHING`
	if _, err := s.db.Exec(ctx, insertQuery, clientType, clientID, def.CommandPrefix, rollPrefixJSON, aliasesJSON, def.VerboseRolls); err != nil {
		return tenantcfg.Config{}, fmt.Errorf("pgstore: insert default %s/%s: %w", clientType, clientID, err)
	}
	return def, nil
}

// WriteChangeset implements [storage.Store], updating only the columns
// named by dirty.
func (s *PostgresStore) WriteChangeset(ctx context.Context, clientType, clientID string, cfg tenantcfg.Config, dirty tenantcfg.DirtyBits) error {
	if !dirty.Any() {
		return nil
	}

	sets := make([]string, 0, 4)
	args := []any{clientType, clientID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if dirty.CommandPrefix {
		sets = append(sets, "command_prefix = "+next(cfg.CommandPrefix))
	}
	if dirty.RollPrefixes {
		encoded, err := json.Marshal(nonNilStrings(cfg.RollPrefixes))
		if err != nil {
			return fmt.Errorf("pgstore: marshal roll_prefix: %w", err)
		}
		sets = append(sets, "roll_prefix = "+next(encoded))
	}
	if dirty.Aliases {
		encoded, err := encodeAliases(cfg.Aliases)
		if err != nil {
			return fmt.Errorf("pgstore: marshal aliases: %w", err)
		}
		sets = append(sets, "aliases = "+next(encoded))
	}
	if dirty.VerboseRolls {
		sets = append(sets, "roll_info = "+next(cfg.VerboseRolls))
	}

	query := "UPDATE client_config SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE client_type = $1 AND client_id = $2"

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("pgstore: write changeset %s/%s: %w", clientType, clientID, err)
	}
	return nil
}

func decodeRow(prefix string, rollPrefixJSON, aliasesJSON []byte, verbose bool) (tenantcfg.Config, error) {
	var rollPrefixes []string
	if err := json.Unmarshal(rollPrefixJSON, &rollPrefixes); err != nil {
		return tenantcfg.Config{}, fmt.Errorf("pgstore: unmarshal roll_prefix: %w", err)
	}
	aliases, err := decodeAliases(aliasesJSON)
	if err != nil {
		return tenantcfg.Config{}, err
	}
	return tenantcfg.Config{
		CommandPrefix: prefix,
		RollPrefixes:  rollPrefixes,
		Aliases:       aliases,
		VerboseRolls:  verbose,
	}, nil
}

// encodeAliases renders a tenant's alias table as a JSON object mapping
// name to a base64 CBOR envelope, so each alias carries its own V1/V2
// version tag independent of its neighbours.
func encodeAliases(aliases map[string]diceexpr.LabeledExpression) ([]byte, error) {
	out := make(map[string]string, len(aliases))
	for name, expr := range aliases {
		wire, err := rollcodec.Serialize(expr)
		if err != nil {
			return nil, fmt.Errorf("alias %q: %w", name, err)
		}
		out[name] = base64.StdEncoding.EncodeToString(wire)
	}
	return json.Marshal(out)
}

func decodeAliases(data []byte) (map[string]diceexpr.LabeledExpression, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("pgstore: unmarshal aliases: %w", err)
	}
	out := make(map[string]diceexpr.LabeledExpression, len(raw))
	for name, encoded := range raw {
		wire, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("pgstore: decode alias %q: %w", name, err)
		}
		expr, err := rollcodec.Deserialize(wire)
		if err != nil {
			return nil, fmt.Errorf("pgstore: deserialize alias %q: %w", name, err)
		}
		out[name] = expr
	}
	return out, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
