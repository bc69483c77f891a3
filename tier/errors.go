package tier

import "github.com/cockroachdb/errors"

// ErrInvalidCost marks a Put that supplied a negative cost. The entry is
// not stored and the ledger is left untouched.
var ErrInvalidCost = errors.New("tier: invalid cost")
