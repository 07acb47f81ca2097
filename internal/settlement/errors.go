package settlement

import "errors"

// Settlement failure taxonomy. Each sentinel is wrapped with context at the
// failure site; callers branch with errors.Is.
var (
	// ErrKeyFormat means the signing secret matched neither accepted
	// encoding (base58 string or comma-separated 64-byte array).
	ErrKeyFormat = errors.New("unrecognized signing key format")

	// ErrOwnerMismatch means the secret's derived public key differs from
	// the declared owner. Fatal: no transaction is ever signed with an
	// unverified key.
	ErrOwnerMismatch = errors.New("signing key does not match owner")

	// ErrBurnFailed means the residual balance could not be burned. The
	// close is never attempted while a balance remains.
	ErrBurnFailed = errors.New("burn transaction failed")

	// ErrSettlementFailed means the close-account retries were exhausted.
	ErrSettlementFailed = errors.New("failed to close token account")
)
