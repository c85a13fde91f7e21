package state

import (
	"context"

	"selns/pkg/domain"
	"selns/pkg/namehash"
)

// SeedRoots creates the root node and the TLD node when they are missing.
// The root belongs to the administrator; the TLD subtree belongs to the
// registrar system principal so lease mutations can push owner updates into
// the tree. Existing nodes are left untouched, which keeps the call safe on
// every startup.
func SeedRoots(ctx context.Context, store Store, tld string, admin, registrar domain.Principal) error {
	tldNode := namehash.Combine(namehash.Root, namehash.LabelHash(tld))
	return store.RunInTx(ctx, func(tx Tx) error {
		if _, ok, err := tx.GetNode(namehash.Root); err != nil {
			return err
		} else if !ok {
			if err := tx.PutNode(namehash.Root, Node{Owner: admin}); err != nil {
				return err
			}
		}
		if _, ok, err := tx.GetNode(tldNode); err != nil {
			return err
		} else if !ok {
			if err := tx.PutNode(tldNode, Node{Owner: registrar}); err != nil {
				return err
			}
		}
		return nil
	})
}
