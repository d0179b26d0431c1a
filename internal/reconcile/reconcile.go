// Package reconcile keeps the local cart mirror convergent with the backend.
//
// Engine runs every cart operation through an optimistic-update protocol:
// the mirror is updated first so readers see the change immediately, the
// backend is called, and the mirror is then confirmed or rolled back.
// DiffCarts describes how two cart states differ and is used to report
// mirror drift when a fresh backend read disagrees with the mirror.
package reconcile

import "cartsync/internal/model"

// CartDiff describes how a local cart differs from the remote one.
type CartDiff struct {
	Missing  []model.CartLine   // Lines on the remote but not local
	Phantom  []model.CartLine   // Lines local but not on the remote
	Quantity []QuantityMismatch // Lines on both with different quantities
}

// QuantityMismatch is a line present on both sides with diverging quantities.
type QuantityMismatch struct {
	ItemID uint
	Local  int
	Remote int
}

// IsEmpty returns true if both carts hold the same lines.
func (d *CartDiff) IsEmpty() bool {
	return len(d.Missing) == 0 && len(d.Phantom) == 0 && len(d.Quantity) == 0
}

// DiffCarts compares local against remote by item id.
// Results follow the line order of the cart they come from. Nil carts are empty.
func DiffCarts(local, remote *model.Cart) *CartDiff {
	diff := &CartDiff{}

	localByID := make(map[uint]model.CartLine)
	if local != nil {
		for _, line := range local.Lines {
			localByID[line.ItemID] = line
		}
	}
	remoteByID := make(map[uint]model.CartLine)
	if remote != nil {
		for _, line := range remote.Lines {
			remoteByID[line.ItemID] = line
		}
	}

	if remote != nil {
		for _, r := range remote.Lines {
			l, exists := localByID[r.ItemID]
			switch {
			case !exists:
				diff.Missing = append(diff.Missing, r)
			case l.Quantity != r.Quantity:
				diff.Quantity = append(diff.Quantity, QuantityMismatch{
					ItemID: r.ItemID,
					Local:  l.Quantity,
					Remote: r.Quantity,
				})
			}
		}
	}

	if local != nil {
		for _, l := range local.Lines {
			if _, exists := remoteByID[l.ItemID]; !exists {
				diff.Phantom = append(diff.Phantom, l)
			}
		}
	}

	return diff
}
