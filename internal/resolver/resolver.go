// Package resolver stores the fixed-schema resolver records bound to
// registry nodes: principal addresses, text records, and multichain
// addresses. Reads are open; writes require node ownership.
package resolver

import (
	"context"
	"log/slog"

	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

// Service mediates resolver record access.
type Service struct {
	store  state.Store
	logger *slog.Logger
}

func New(store state.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// SetRecord writes one record on a node. Only the node owner may write.
func (s *Service) SetRecord(ctx context.Context, caller domain.Principal, node namehash.Hash, rec state.Record) error {
	if !state.ValidRecordKind(rec.Kind) {
		return dErrors.Newf(dErrors.CodeBadRequest, "unsupported record kind %q", rec.Kind)
	}
	if rec.Kind == state.RecordAddr {
		if _, err := domain.ParsePrincipal(rec.Value); err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "addr record value must be a principal address")
		}
	}
	if rec.Kind != state.RecordAddr && rec.Key == "" {
		return dErrors.Newf(dErrors.CodeBadRequest, "%s record requires a key", rec.Kind)
	}

	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		n, ok, err := tx.GetNode(node)
		if err != nil {
			return err
		}
		if !ok || n.Owner != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "caller does not own the node")
		}
		return tx.PutRecord(node, rec)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "resolver record set", "node", node.Hex(), "kind", rec.Kind, "key", rec.Key)
	return nil
}

// Record reads one record from a node.
func (s *Service) Record(ctx context.Context, node namehash.Hash, kind state.RecordKind, key string) (string, error) {
	if !state.ValidRecordKind(kind) {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unsupported record kind %q", kind)
	}
	var value string
	err := s.store.View(ctx, func(tx state.Tx) error {
		v, ok, err := tx.GetRecord(node, kind, key)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		value = v
		return nil
	})
	return value, err
}

// Records lists every record bound to a node.
func (s *Service) Records(ctx context.Context, node namehash.Hash) ([]state.Record, error) {
	var records []state.Record
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		records, err = tx.ListRecords(node)
		return err
	})
	return records, err
}
