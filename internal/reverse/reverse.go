// Package reverse maintains the principal-to-primary-name bindings.
package reverse

import (
	"context"
	"log/slog"
	"strings"

	"selns/internal/names"
	"selns/internal/registrar"
	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

// Service mediates reverse binding access. A principal may only bind a name
// whose forward node it owns, so a reverse lookup can always be verified
// against the forward tree.
type Service struct {
	store  state.Store
	logger *slog.Logger
}

func New(store state.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Set binds the caller's principal to a fully qualified name such as
// "alice.sel".
func (s *Service) Set(ctx context.Context, caller domain.Principal, name string) error {
	label, ok := strings.CutSuffix(name, "."+registrar.TLD)
	if !ok {
		return dErrors.Newf(dErrors.CodeBadRequest, "name must end in .%s", registrar.TLD)
	}
	if err := names.Check(label); err != nil {
		return err
	}

	node := namehash.Combine(registrar.BaseNode(), namehash.LabelHash(label))
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		n, ok, err := tx.GetNode(node)
		if err != nil {
			return err
		}
		if !ok || n.Owner != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "caller does not own the forward node")
		}
		return tx.PutReverse(caller, name)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "reverse binding set", "principal", caller, "name", name)
	return nil
}

// Clear removes the caller's reverse binding.
func (s *Service) Clear(ctx context.Context, caller domain.Principal) error {
	return s.store.RunInTx(ctx, func(tx state.Tx) error {
		return tx.DeleteReverse(caller)
	})
}

// Name returns the primary name bound to a principal.
func (s *Service) Name(ctx context.Context, p domain.Principal) (string, error) {
	var name string
	err := s.store.View(ctx, func(tx state.Tx) error {
		n, ok, err := tx.GetReverse(p)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "no reverse binding for principal")
		}
		name = n
		return nil
	})
	return name, err
}
