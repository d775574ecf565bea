// Package txs provides stateless and stateful transaction validation and the
// mempool feeding block production.
package txs

import (
	"errors"
	"fmt"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/signing"
)

// ErrInvalidSignature is returned when the transaction signature does not
// verify against the sender key, or the sender address does not belong to
// that key.
var ErrInvalidSignature = errors.New("invalid signature")

// stateView resolves committed account state at a fixed point in the chain.
// *ledger.Snapshot satisfies it.
type stateView interface {
	Account(types.Address) types.Account
}

// Validator checks transactions against a state view. The same checks run on
// gossip admission, block assembly and block verification, always against the
// parent state of the block in question.
type Validator struct {
	verifier *signing.EdVerifier
}

// NewValidator creates a Validator using the given signature verifier.
func NewValidator(verifier *signing.EdVerifier) *Validator {
	return &Validator{verifier: verifier}
}

// ValidateStateless checks everything that does not depend on account state.
func (v *Validator) ValidateStateless(tx *types.Transaction) error {
	if tx.Amount == 0 {
		return ledger.ErrNonPositiveAmount
	}
	if tx.SenderKey.ToAddress() != tx.Sender {
		return fmt.Errorf("%w: sender address does not match key", ErrInvalidSignature)
	}
	if !v.verifier.Verify(signing.TRANSACTION, tx.SenderKey, tx.SignedBytes(), tx.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Validate runs the full check against the view: signature, positive amount,
// gapless nonce and sufficient balance.
func (v *Validator) Validate(tx *types.Transaction, view stateView) error {
	if err := v.ValidateStateless(tx); err != nil {
		return err
	}
	account := view.Account(tx.Sender)
	if tx.Nonce != account.Nonce+1 {
		return fmt.Errorf("%w: account %d, transaction %d", ledger.ErrNonceMismatch, account.Nonce, tx.Nonce)
	}
	if account.Balance < tx.Amount {
		return fmt.Errorf("%w: balance %d, amount %d", ledger.ErrInsufficientBalance, account.Balance, tx.Amount)
	}
	return nil
}
