// Package registrar maintains the exclusive, time-bounded leases on leaf
// labels under the TLD. A lease is also the transferable ownership token
// whose token id equals the labelhash. Every lease mutation pushes a
// matching subnode-owner update into the registry tree inside the same
// state transaction.
package registrar

import (
	"time"

	"selns/internal/registry"
	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

const (
	// TLD is the label of the registrar's subtree root.
	TLD = "sel"

	// DefaultGracePeriod follows lease expiry: the label stays
	// unregistrable while renewal is still possible.
	DefaultGracePeriod = 90 * 24 * time.Hour
)

// RenewPolicy names who may renew once a lease has expired into its grace
// window. The permissive default matches the ledger behavior; the strict
// variant can be selected without an API break.
type RenewPolicy string

const (
	// RenewAnyoneWhileNotAvailable lets any caller renew while the label
	// is held or in grace.
	RenewAnyoneWhileNotAvailable RenewPolicy = "anyone_while_not_available"
	// RenewHolderOnlyDuringGrace restricts renewal to the previous holder
	// once the lease has expired.
	RenewHolderOnlyDuringGrace RenewPolicy = "holder_only_during_grace"
)

// BaseNode is the registry node of the TLD subtree.
func BaseNode() namehash.Hash {
	return namehash.Combine(namehash.Root, namehash.LabelHash(TLD))
}

// AvailableTx reports lease-level availability: true iff no lease exists or
// the lease expired beyond the grace period. Reservations are layered on top
// by the registration service.
func AvailableTx(tx state.Tx, label namehash.Hash, now time.Time, grace time.Duration) (bool, error) {
	lease, ok, err := tx.GetLease(label)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return now.After(lease.ExpiresAt.Add(grace)), nil
}

// RegisterTx creates (or re-mints) the lease for label and writes the
// corresponding subnode owner in the registry tree. A non-zero resolver is
// bound in the same step so the name never has an owner without a resolver.
// Fails with NameNotAvailable when the label is still held or in grace.
func RegisterTx(tx state.Tx, registrarPrincipal domain.Principal, label namehash.Hash, holder domain.Principal, duration time.Duration, resolver domain.Principal, now time.Time, grace time.Duration) (time.Time, error) {
	available, err := AvailableTx(tx, label, now, grace)
	if err != nil {
		return time.Time{}, err
	}
	if !available {
		return time.Time{}, dErrors.New(dErrors.CodeNameNotAvailable, "name is not available")
	}

	expires := now.Add(duration).UTC()
	if err := tx.PutLease(label, state.Lease{Holder: holder, ExpiresAt: expires}); err != nil {
		return time.Time{}, err
	}
	// A fresh mint clears any approval left on a previous lease.
	if err := tx.DeleteApproval(label); err != nil {
		return time.Time{}, err
	}

	child, err := registry.SetSubnodeOwnerTx(tx, registrarPrincipal, BaseNode(), label, holder)
	if err != nil {
		return time.Time{}, err
	}
	if !resolver.IsZero() {
		if err := registry.SetResolverTx(tx, holder, child, resolver); err != nil {
			return time.Time{}, err
		}
	}
	return expires, nil
}

// RenewTx extends the lease by extra. The label must NOT be available: the
// lease is still held or within grace. Expiry never shortens; renewing in
// grace extends from the old expiry, not from now.
func RenewTx(tx state.Tx, label namehash.Hash, caller domain.Principal, extra time.Duration, now time.Time, grace time.Duration, policy RenewPolicy) (time.Time, error) {
	lease, ok, err := tx.GetLease(label)
	if err != nil {
		return time.Time{}, err
	}
	if !ok || now.After(lease.ExpiresAt.Add(grace)) {
		return time.Time{}, dErrors.New(dErrors.CodeNameNotAvailable, "name is not under an active or grace-period lease")
	}
	if policy == RenewHolderOnlyDuringGrace && now.After(lease.ExpiresAt) && caller != lease.Holder {
		return time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "only the previous holder may renew during the grace period")
	}

	lease.ExpiresAt = lease.ExpiresAt.Add(extra).UTC()
	if err := tx.PutLease(label, lease); err != nil {
		return time.Time{}, err
	}
	return lease.ExpiresAt, nil
}
