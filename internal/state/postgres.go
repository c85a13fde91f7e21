package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

// Postgres persists the registry state in PostgreSQL via database/sql
// (lib/pq driver). Each RunInTx call maps to one sql.Tx.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the state tables when they do not exist yet. The four maps
// here plus the commitment store are the durable state an instance must
// retain across restarts.
func Migrate(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS registry_nodes (
	id       BYTEA PRIMARY KEY,
	owner    TEXT NOT NULL,
	resolver TEXT NOT NULL DEFAULT '',
	ttl      BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS leases (
	label      BYTEA PRIMARY KEY,
	holder     TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS lease_approvals (
	label    BYTEA PRIMARY KEY,
	delegate TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reservations (
	label BYTEA PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS resolver_records (
	node  BYTEA NOT NULL,
	kind  TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (node, kind, key)
);
CREATE TABLE IF NOT EXISTS reverse_bindings (
	principal TEXT PRIMARY KEY,
	name      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS balances (
	principal TEXT PRIMARY KEY,
	amount    BIGINT NOT NULL DEFAULT 0
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate state schema: %w", err)
	}
	return nil
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state tx: %w", err)
	}
	return nil
}

func (p *Postgres) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin state view: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	return fn(&pgTx{ctx: ctx, tx: tx})
}

type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) GetNode(id namehash.Hash) (Node, bool, error) {
	var n Node
	var owner, resolver string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT owner, resolver, ttl FROM registry_nodes WHERE id = $1`, id[:],
	).Scan(&owner, &resolver, &n.TTL)
	if err == sql.ErrNoRows {
		return Node{}, false, nil
	}
	if err != nil {
		return Node{}, false, fmt.Errorf("get node: %w", err)
	}
	n.Owner = domain.Principal(owner)
	n.Resolver = domain.Principal(resolver)
	return n, true, nil
}

func (t *pgTx) PutNode(id namehash.Hash, n Node) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO registry_nodes (id, owner, resolver, ttl) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET owner = $2, resolver = $3, ttl = $4`,
		id[:], n.Owner.String(), n.Resolver.String(), n.TTL)
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	return nil
}

func (t *pgTx) GetLease(label namehash.Hash) (Lease, bool, error) {
	var holder string
	var expires time.Time
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT holder, expires_at FROM leases WHERE label = $1`, label[:],
	).Scan(&holder, &expires)
	if err == sql.ErrNoRows {
		return Lease{}, false, nil
	}
	if err != nil {
		return Lease{}, false, fmt.Errorf("get lease: %w", err)
	}
	return Lease{Holder: domain.Principal(holder), ExpiresAt: expires.UTC()}, true, nil
}

func (t *pgTx) PutLease(label namehash.Hash, l Lease) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO leases (label, holder, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (label) DO UPDATE SET holder = $2, expires_at = $3`,
		label[:], l.Holder.String(), l.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("put lease: %w", err)
	}
	return nil
}

func (t *pgTx) GetApproval(label namehash.Hash) (domain.Principal, bool, error) {
	var delegate string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT delegate FROM lease_approvals WHERE label = $1`, label[:],
	).Scan(&delegate)
	if err == sql.ErrNoRows {
		return domain.Zero, false, nil
	}
	if err != nil {
		return domain.Zero, false, fmt.Errorf("get approval: %w", err)
	}
	return domain.Principal(delegate), true, nil
}

func (t *pgTx) PutApproval(label namehash.Hash, delegate domain.Principal) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO lease_approvals (label, delegate) VALUES ($1, $2)
		 ON CONFLICT (label) DO UPDATE SET delegate = $2`,
		label[:], delegate.String())
	if err != nil {
		return fmt.Errorf("put approval: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteApproval(label namehash.Hash) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM lease_approvals WHERE label = $1`, label[:])
	if err != nil {
		return fmt.Errorf("delete approval: %w", err)
	}
	return nil
}

func (t *pgTx) Reserved(label namehash.Hash) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT 1 FROM reservations WHERE label = $1`, label[:],
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get reservation: %w", err)
	}
	return true, nil
}

func (t *pgTx) PutReservation(label namehash.Hash) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO reservations (label) VALUES ($1) ON CONFLICT DO NOTHING`, label[:])
	if err != nil {
		return fmt.Errorf("put reservation: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteReservation(label namehash.Hash) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM reservations WHERE label = $1`, label[:])
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

func (t *pgTx) GetRecord(node namehash.Hash, kind RecordKind, key string) (string, bool, error) {
	var value string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT value FROM resolver_records WHERE node = $1 AND kind = $2 AND key = $3`,
		node[:], string(kind), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get record: %w", err)
	}
	return value, true, nil
}

func (t *pgTx) PutRecord(node namehash.Hash, rec Record) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO resolver_records (node, kind, key, value) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (node, kind, key) DO UPDATE SET value = $4`,
		node[:], string(rec.Kind), rec.Key, rec.Value)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (t *pgTx) ListRecords(node namehash.Hash) ([]Record, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT kind, key, value FROM resolver_records WHERE node = $1 ORDER BY kind, key`,
		node[:])
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var kind string
		if err := rows.Scan(&kind, &rec.Key, &rec.Value); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = RecordKind(kind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

func (t *pgTx) GetReverse(p domain.Principal) (string, bool, error) {
	var name string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT name FROM reverse_bindings WHERE principal = $1`, p.String(),
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get reverse binding: %w", err)
	}
	return name, true, nil
}

func (t *pgTx) PutReverse(p domain.Principal, name string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO reverse_bindings (principal, name) VALUES ($1, $2)
		 ON CONFLICT (principal) DO UPDATE SET name = $2`,
		p.String(), name)
	if err != nil {
		return fmt.Errorf("put reverse binding: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteReverse(p domain.Principal) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM reverse_bindings WHERE principal = $1`, p.String())
	if err != nil {
		return fmt.Errorf("delete reverse binding: %w", err)
	}
	return nil
}

func (t *pgTx) Balance(p domain.Principal) (uint64, error) {
	var amount int64
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT amount FROM balances WHERE principal = $1`, p.String(),
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return uint64(amount), nil
}

func (t *pgTx) SetBalance(p domain.Principal, amount uint64) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO balances (principal, amount) VALUES ($1, $2)
		 ON CONFLICT (principal) DO UPDATE SET amount = $2`,
		p.String(), int64(amount))
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}
