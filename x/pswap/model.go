package pswap

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Swap{}, migration.NoModification)
}

var _ orm.CloneableData = (*Swap)(nil)

// Validate ensures the Swap is valid
func (s *Swap) Validate() error {
	if err := s.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := validatePreimageHash(s.PreimageHash); err != nil {
		return err
	}
	if err := s.AssetEscrower.Validate(); err != nil {
		return errors.Wrap(err, "asset escrower")
	}
	if err := s.PremiumEscrower.Validate(); err != nil {
		return errors.Wrap(err, "premium escrower")
	}
	if err := s.Asset.Validate(); err != nil {
		return errors.Wrap(err, "asset")
	}
	if err := s.Premium.Validate(); err != nil {
		return errors.Wrap(err, "premium")
	}
	if s.Timeout == 0 {
		// Zero timeout is a valid value that dates to 1970-01-01. We
		// know that this value is in the past and makes no sense. Most
		// likely value was not provided and a zero value remained.
		return errors.Wrap(errors.ErrInput, "timeout is required")
	}
	if err := s.Timeout.Validate(); err != nil {
		return errors.Wrap(err, "invalid timeout value")
	}
	if len(s.Memo) > maxMemoSize {
		return errors.Wrapf(errors.ErrInput, "memo %s", s.Memo)
	}
	if err := s.Address.Validate(); err != nil {
		return errors.Wrap(err, "address")
	}
	return nil
}

// Copy makes a new swap
func (s *Swap) Copy() orm.CloneableData {
	return &Swap{
		Metadata:        s.Metadata.Copy(),
		PreimageHash:    s.PreimageHash,
		AssetEscrower:   s.AssetEscrower.Clone(),
		PremiumEscrower: s.PremiumEscrower.Clone(),
		Asset:           s.Asset.Copy(),
		Premium:         s.Premium.Copy(),
		Timeout:         s.Timeout,
		Address:         s.Address.Clone(),
		Memo:            s.Memo,
	}
}

// Validate ensures one side of a swap is consistent.
func (p *Position) Validate() error {
	if p == nil {
		return errors.Wrap(errors.ErrEmpty, "missing position")
	}
	if p.Expected == nil || !p.Expected.IsPositive() {
		return errors.Wrapf(errors.ErrAmount, "non-positive expected amount: %#v", p.Expected)
	}
	if err := p.Expected.Validate(); err != nil {
		return errors.Wrap(err, "expected")
	}
	if p.Current == nil {
		return errors.Wrap(errors.ErrEmpty, "current amount is required")
	}
	if err := p.Current.Validate(); err != nil {
		return errors.Wrap(err, "current")
	}
	if p.Current.Ticker != p.Expected.Ticker {
		return errors.Wrapf(errors.ErrCurrency, "current ticker %q", p.Current.Ticker)
	}
	if p.Deadline == 0 {
		return errors.Wrap(errors.ErrInput, "deadline is required")
	}
	if err := p.Deadline.Validate(); err != nil {
		return errors.Wrap(err, "invalid deadline value")
	}
	if _, ok := Settlement_name[int32(p.State)]; !ok {
		return errors.Wrapf(errors.ErrState, "invalid settlement state %d", p.State)
	}
	return nil
}

// Copy makes a new position
func (p *Position) Copy() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Expected: p.Expected.Clone(),
		Current:  p.Current.Clone(),
		Deadline: p.Deadline,
		State:    p.State,
	}
}

// NewBucket returns a bucket for keeping swaps, keyed by the preimage
// hash. A hash that was used once can never key another swap.
func NewBucket() orm.ModelBucket {
	b := orm.NewModelBucket("pswap", &Swap{},
		orm.WithIndex("asset_escrower", idxAssetEscrower, false),
		orm.WithIndex("premium_escrower", idxPremiumEscrower, false),
	)
	return migration.NewModelBucket("pswap", b)
}

// SwapAddr is the address of the custody account holding both deposits
// of the swap with the given preimage hash.
func SwapAddr(preimageHash []byte) weave.Address {
	return weave.NewCondition("pswap", "swap", preimageHash).Address()
}

func toSwap(obj orm.Object) (*Swap, error) {
	if obj == nil {
		return nil, errors.Wrap(errors.ErrHuman, "Cannot take index of nil")
	}
	swp, ok := obj.Value().(*Swap)
	if !ok {
		return nil, errors.Wrap(errors.ErrHuman, "Can only take index of Swap")
	}
	return swp, nil
}

func idxAssetEscrower(obj orm.Object) ([]byte, error) {
	swp, err := toSwap(obj)
	if err != nil {
		return nil, err
	}
	return swp.AssetEscrower, nil
}

func idxPremiumEscrower(obj orm.Object) ([]byte, error) {
	swp, err := toSwap(obj)
	if err != nil {
		return nil, err
	}
	return swp.PremiumEscrower, nil
}
