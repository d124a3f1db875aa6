package pswap

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	// Migration needs to be registered for every message introduced in the codec.
	// This is the convention to message versioning.
	migration.MustRegister(1, &CreateMsg{}, migration.NoModification)
	migration.MustRegister(1, &EscrowPremiumMsg{}, migration.NoModification)
	migration.MustRegister(1, &EscrowAssetMsg{}, migration.NoModification)
	migration.MustRegister(1, &RedeemAssetMsg{}, migration.NoModification)
	migration.MustRegister(1, &RefundPremiumMsg{}, migration.NoModification)
	migration.MustRegister(1, &RefundAssetMsg{}, migration.NoModification)
	migration.MustRegister(1, &RedeemPremiumMsg{}, migration.NoModification)
}

const (
	pathCreate        = "pswap/create"
	pathEscrowPremium = "pswap/escrow_premium"
	pathEscrowAsset   = "pswap/escrow_asset"
	pathRedeemAsset   = "pswap/redeem_asset"
	pathRefundPremium = "pswap/refund_premium"
	pathRefundAsset   = "pswap/refund_asset"
	pathRedeemPremium = "pswap/redeem_premium"

	maxMemoSize int = 128
	// preimage size in bytes
	preimageSize int = 32
	// preimageHash size in bytes
	preimageHashSize int = 32
)

var _ weave.Msg = (*CreateMsg)(nil)
var _ weave.Msg = (*EscrowPremiumMsg)(nil)
var _ weave.Msg = (*EscrowAssetMsg)(nil)
var _ weave.Msg = (*RedeemAssetMsg)(nil)
var _ weave.Msg = (*RefundPremiumMsg)(nil)
var _ weave.Msg = (*RefundAssetMsg)(nil)
var _ weave.Msg = (*RedeemPremiumMsg)(nil)

// ROUTING, Path method fulfills weave.Msg interface to allow routing

func (CreateMsg) Path() string {
	return pathCreate
}

func (EscrowPremiumMsg) Path() string {
	return pathEscrowPremium
}

func (EscrowAssetMsg) Path() string {
	return pathEscrowAsset
}

func (RedeemAssetMsg) Path() string {
	return pathRedeemAsset
}

func (RefundPremiumMsg) Path() string {
	return pathRefundPremium
}

func (RefundAssetMsg) Path() string {
	return pathRefundAsset
}

func (RedeemPremiumMsg) Path() string {
	return pathRedeemPremium
}

// VALIDATION, Validate method makes sure basic rules are enforced upon input data and fulfills weave.Msg interface

func (m *CreateMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := validatePreimageHash(m.PreimageHash); err != nil {
		return err
	}
	if err := m.AssetEscrower.Validate(); err != nil {
		return errors.Wrap(err, "asset escrower")
	}
	if err := m.PremiumEscrower.Validate(); err != nil {
		return errors.Wrap(err, "premium escrower")
	}
	if m.AssetEscrower.Equals(m.PremiumEscrower) {
		return errors.Wrap(errors.ErrInput, "same party on both sides of the swap")
	}
	if err := validateAmount(m.Asset); err != nil {
		return errors.Wrap(err, "asset")
	}
	if err := validateAmount(m.Premium); err != nil {
		return errors.Wrap(err, "premium")
	}
	if m.StartTime == 0 {
		// Zero start is a valid value that dates to 1970-01-01. We know
		// that this value is in the past and makes no sense. Most likely
		// value was not provided and a zero value remained.
		return errors.Wrap(errors.ErrInput, "start time is required")
	}
	if err := m.StartTime.Validate(); err != nil {
		return errors.Wrap(err, "invalid start time value")
	}
	if m.Delta <= 0 {
		return errors.Wrap(errors.ErrInput, "delta must be positive")
	}
	if len(m.Memo) > maxMemoSize {
		return errors.Wrapf(errors.ErrInput, "memo %s", m.Memo)
	}
	return nil
}

func (m *EscrowPremiumMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return validatePreimageHash(m.PreimageHash)
}

func (m *EscrowAssetMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return validatePreimageHash(m.PreimageHash)
}

func (m *RedeemAssetMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := validatePreimageHash(m.PreimageHash); err != nil {
		return err
	}
	if len(m.Preimage) != preimageSize {
		return errors.Wrapf(errors.ErrInput, "preimage should be exactly %d byte long", preimageSize)
	}
	return nil
}

func (m *RefundPremiumMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return validatePreimageHash(m.PreimageHash)
}

func (m *RefundAssetMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return validatePreimageHash(m.PreimageHash)
}

func (m *RedeemPremiumMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return validatePreimageHash(m.PreimageHash)
}

// validateAmount makes sure the amount is positive and the coin is of valid format
func validateAmount(amount *coin.Coin) error {
	if amount == nil || !amount.IsPositive() {
		return errors.Wrapf(errors.ErrAmount, "non-positive amount: %#v", amount)
	}
	return amount.Validate()
}

func validatePreimageHash(preimageHash []byte) error {
	if len(preimageHash) != preimageHashSize {
		return errors.Wrapf(errors.ErrInput, "preimage hash is sha256 and therefore should be exactly "+
			"%d bytes", preimageHashSize)
	}
	return nil
}
