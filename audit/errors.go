package audit

import "errors"

// ErrChainBroken is returned by Open/Verify when a replayed or held
// chain fails the prev_hash/this_hash linkage invariant. It is fatal at
// startup: the node refuses to run rather than trust a tampered log.
var ErrChainBroken = errors.New("audit: chain broken")
