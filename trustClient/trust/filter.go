package trust

import (
	"github.com/pushchain/validator-trust/trustClient/validators"
)

// Filter picks the validators the node actually trusts out of the known set.
// Implementations must not modify known.
type Filter interface {
	Choose(known validators.Set) validators.Set
}

type FilterFunc func(known validators.Set) validators.Set

func (f FilterFunc) Choose(known validators.Set) validators.Set { return f(known) }

// KnownFilter trusts every known validator.
type KnownFilter struct{}

func (KnownFilter) Choose(known validators.Set) validators.Set {
	return known.Clone()
}
