package types

// Account represents account state as of a certain height. An account is
// created on first credit and never deleted. Nonce is the counter of
// applied transactions: the next transaction from this account must carry
// Nonce+1.
type Account struct {
	Address Address
	Balance uint64
	Nonce   uint64
	Height  Height
}
