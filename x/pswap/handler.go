package pswap

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"
	"github.com/tendermint/tendermint/libs/common"
)

const (
	// pay swap cost up-front
	createSwapCost int64 = 300
	escrowCost     int64 = 0
	redeemCost     int64 = 0
	refundCost     int64 = 0
)

// RegisterRoutes will instantiate and register
// all handlers in this package
func RegisterRoutes(r weave.Registry, auth x.Authenticator, cashctrl cash.Controller) {
	r = migration.SchemaMigratingRegistry("pswap", r)
	bucket := NewBucket()

	r.Handle(&CreateMsg{}, CreateSwapHandler{auth, bucket})
	r.Handle(&EscrowPremiumMsg{}, EscrowPremiumHandler{auth, bucket, cashctrl})
	r.Handle(&EscrowAssetMsg{}, EscrowAssetHandler{auth, bucket, cashctrl})
	r.Handle(&RedeemAssetMsg{}, RedeemAssetHandler{auth, bucket, cashctrl})
	r.Handle(&RefundPremiumMsg{}, RefundPremiumHandler{auth, bucket, cashctrl})
	r.Handle(&RefundAssetMsg{}, RefundAssetHandler{auth, bucket, cashctrl})
	r.Handle(&RedeemPremiumMsg{}, RedeemPremiumHandler{auth, bucket, cashctrl})
}

// RegisterQuery will register this bucket as "/pswaps"
func RegisterQuery(qr weave.QueryRouter) {
	NewBucket().Register("pswaps", qr)
}

//---- create

// CreateSwapHandler opens a swap record with both positions pending. No
// coins are moved until the premium is escrowed.
type CreateSwapHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
}

var _ weave.Handler = CreateSwapHandler{}

// Check does the validation and sets the cost of the transaction
func (h CreateSwapHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	_, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	res := &weave.CheckResult{
		GasAllocated: createSwapCost,
	}
	return res, nil
}

// Deliver stores the new swap if all preconditions are met.
func (h CreateSwapHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	deadlines := SwapDeadlines(msg.StartTime, msg.Delta, msg.AssetFirst)
	swap := &Swap{
		Metadata:        msg.Metadata,
		PreimageHash:    msg.PreimageHash,
		AssetEscrower:   msg.AssetEscrower,
		PremiumEscrower: msg.PremiumEscrower,
		Asset: &Position{
			Expected: msg.Asset,
			Current:  coin.NewCoinp(0, 0, msg.Asset.Ticker),
			Deadline: deadlines.Asset,
			State:    Settlement_PENDING,
		},
		Premium: &Position{
			Expected: msg.Premium,
			Current:  coin.NewCoinp(0, 0, msg.Premium.Ticker),
			Deadline: deadlines.Premium,
			State:    Settlement_PENDING,
		},
		Timeout: deadlines.Timeout,
		Address: SwapAddr(msg.PreimageHash),
		Memo:    msg.Memo,
	}

	if _, err := h.bucket.Put(db, msg.PreimageHash, swap); err != nil {
		return nil, errors.Wrap(err, "cannot store swap")
	}

	res := &weave.DeliverResult{Data: msg.PreimageHash}
	res.Tags = swapTags(swap, "setup", nil)
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h CreateSwapHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CreateMsg, error) {
	var msg CreateMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}

	// One of the two parties must authorize this, otherwise a stranger
	// could permanently burn a commitment hash for them.
	if !h.auth.HasAddress(ctx, msg.AssetEscrower) && !h.auth.HasAddress(ctx, msg.PremiumEscrower) {
		return nil, errors.ErrUnauthorized
	}

	switch err := h.bucket.Has(db, msg.PreimageHash); {
	case err == nil:
		return nil, errors.Wrapf(errors.ErrDuplicate, "swap with preimage hash %X exists", msg.PreimageHash)
	case errors.ErrNotFound.Is(err):
		// All good, the hash was never used.
	default:
		return nil, errors.Wrap(err, "cannot check preimage hash")
	}

	deadlines := SwapDeadlines(msg.StartTime, msg.Delta, msg.AssetFirst)
	if weave.IsExpired(ctx, deadlines.Premium) {
		return nil, errors.Wrap(errors.ErrInput, "premium deadline in the past")
	}

	return &msg, nil
}

//---- escrow premium

// EscrowPremiumHandler moves the premium collateral from the premium
// escrower to the custody account.
type EscrowPremiumHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	bank   cash.Controller
}

var _ weave.Handler = EscrowPremiumHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h EscrowPremiumHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	_, _, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	return &weave.CheckResult{GasAllocated: escrowCost}, nil
}

// Deliver deposits the premium if all preconditions are met.
func (h EscrowPremiumHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, swap, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := cash.MoveCoins(db, h.bank, swap.PremiumEscrower, swap.Address, coin.Coins{swap.Premium.Expected}); err != nil {
		return nil, err
	}

	swap.Premium.State = Settlement_ESCROWED
	swap.Premium.Current = swap.Premium.Expected.Clone()
	if _, err := h.bucket.Put(db, msg.PreimageHash, swap); err != nil {
		return nil, errors.Wrap(err, "cannot update swap")
	}

	res := &weave.DeliverResult{Data: msg.PreimageHash}
	res.Tags = swapTags(swap, "escrow_premium", swap.PremiumEscrower)
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h EscrowPremiumHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*EscrowPremiumMsg, *Swap, error) {
	var msg EscrowPremiumMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}

	swap, err := loadSwap(h.bucket, db, msg.PreimageHash)
	if err != nil {
		return nil, nil, err
	}

	if weave.IsExpired(ctx, swap.Premium.Deadline) {
		return nil, nil, errors.Wrapf(errors.ErrExpired, "premium deadline %v passed", swap.Premium.Deadline)
	}

	// Premium escrower must authorize this.
	if !h.auth.HasAddress(ctx, swap.PremiumEscrower) {
		return nil, nil, errors.ErrUnauthorized
	}

	if swap.Premium.State != Settlement_PENDING {
		return nil, nil, errors.Wrapf(ErrSettled, "premium is %s", swap.Premium.State)
	}

	return &msg, swap, nil
}

//---- escrow asset

// EscrowAssetHandler moves the asset from the asset escrower to the
// custody account. The premium must already be escrowed.
type EscrowAssetHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	bank   cash.Controller
}

var _ weave.Handler = EscrowAssetHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h EscrowAssetHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	_, _, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	return &weave.CheckResult{GasAllocated: escrowCost}, nil
}

// Deliver deposits the asset if all preconditions are met.
func (h EscrowAssetHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, swap, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := cash.MoveCoins(db, h.bank, swap.AssetEscrower, swap.Address, coin.Coins{swap.Asset.Expected}); err != nil {
		return nil, err
	}

	swap.Asset.State = Settlement_ESCROWED
	swap.Asset.Current = swap.Asset.Expected.Clone()
	if _, err := h.bucket.Put(db, msg.PreimageHash, swap); err != nil {
		return nil, errors.Wrap(err, "cannot update swap")
	}

	res := &weave.DeliverResult{Data: msg.PreimageHash}
	res.Tags = swapTags(swap, "escrow_asset", swap.AssetEscrower)
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h EscrowAssetHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*EscrowAssetMsg, *Swap, error) {
	var msg EscrowAssetMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}

	swap, err := loadSwap(h.bucket, db, msg.PreimageHash)
	if err != nil {
		return nil, nil, err
	}

	if weave.IsExpired(ctx, swap.Asset.Deadline) {
		return nil, nil, errors.Wrapf(errors.ErrExpired, "asset deadline %v passed", swap.Asset.Deadline)
	}

	// Asset escrower must authorize this.
	if !h.auth.HasAddress(ctx, swap.AssetEscrower) {
		return nil, nil, errors.ErrUnauthorized
	}

	// Collateral first. The asset must never sit in custody without the
	// premium backing it.
	if swap.Premium.State != Settlement_ESCROWED {
		return nil, nil, errors.Wrapf(ErrCollateral, "premium is %s", swap.Premium.State)
	}

	if swap.Asset.State != Settlement_PENDING {
		return nil, nil, errors.Wrapf(ErrSettled, "asset is %s", swap.Asset.State)
	}

	return &msg, swap, nil
}

//---- redeem asset

// RedeemAssetHandler releases the asset to the premium escrower in
// exchange for disclosing the preimage of the commitment hash.
type RedeemAssetHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	bank   cash.Controller
}

var _ weave.Handler = RedeemAssetHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h RedeemAssetHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	_, _, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	return &weave.CheckResult{GasAllocated: redeemCost}, nil
}

// Deliver moves the asset from custody to the premium escrower if all
// preconditions are met. The preimage becomes public through the tags.
func (h RedeemAssetHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, swap, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := cash.MoveCoins(db, h.bank, swap.Address, swap.PremiumEscrower, coin.Coins{swap.Asset.Expected}); err != nil {
		return nil, err
	}

	swap.Asset.State = Settlement_REDEEMED
	swap.Asset.Current = coin.NewCoinp(0, 0, swap.Asset.Expected.Ticker)
	if _, err := h.bucket.Put(db, msg.PreimageHash, swap); err != nil {
		return nil, errors.Wrap(err, "cannot update swap")
	}

	res := &weave.DeliverResult{Data: msg.PreimageHash}
	res.Tags = append(swapTags(swap, "redeem_asset", swap.PremiumEscrower), common.KVPair{
		Key:   []byte("preimage"),
		Value: []byte(hex.EncodeToString(msg.Preimage)),
	})
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h RedeemAssetHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RedeemAssetMsg, *Swap, error) {
	var msg RedeemAssetMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}

	swap, err := loadSwap(h.bucket, db, msg.PreimageHash)
	if err != nil {
		return nil, nil, err
	}

	if weave.IsExpired(ctx, swap.Asset.Deadline) {
		return nil, nil, errors.Wrapf(errors.ErrExpired, "asset deadline %v passed", swap.Asset.Deadline)
	}

	// Premium escrower must authorize this.
	if !h.auth.HasAddress(ctx, swap.PremiumEscrower) {
		return nil, nil, errors.ErrUnauthorized
	}

	switch swap.Asset.State {
	case Settlement_ESCROWED:
	case Settlement_PENDING:
		return nil, nil, errors.Wrap(errors.ErrState, "asset not escrowed")
	default:
		return nil, nil, errors.Wrapf(ErrSettled, "asset is %s", swap.Asset.State)
	}

	if swap.Premium.State != Settlement_ESCROWED {
		return nil, nil, errors.Wrapf(errors.ErrState, "premium is %s", swap.Premium.State)
	}

	if !bytes.Equal(swap.PreimageHash, HashBytes(msg.Preimage)) {
		return nil, nil, errors.Wrap(ErrPreimage, "sha256 of preimage does not match commitment")
	}

	return &msg, swap, nil
}

//---- refund premium

// RefundPremiumHandler returns the premium to the premium escrower after
// the protocol timeout, when the collateral is not forfeit.
type RefundPremiumHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	bank   cash.Controller
}

var _ weave.Handler = RefundPremiumHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h RefundPremiumHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	_, _, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	return &weave.CheckResult{GasAllocated: refundCost}, nil
}

// Deliver moves the premium from custody back to the premium escrower if
// all preconditions are met. The destination is fixed, so no caller
// restriction applies.
func (h RefundPremiumHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, swap, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := cash.MoveCoins(db, h.bank, swap.Address, swap.PremiumEscrower, coin.Coins{swap.Premium.Expected}); err != nil {
		return nil, err
	}

	swap.Premium.State = Settlement_REFUNDED
	swap.Premium.Current = coin.NewCoinp(0, 0, swap.Premium.Expected.Ticker)
	if _, err := h.bucket.Put(db, msg.PreimageHash, swap); err != nil {
		return nil, errors.Wrap(err, "cannot update swap")
	}

	res := &weave.DeliverResult{Data: msg.PreimageHash}
	res.Tags = swapTags(swap, "refund_premium", swap.PremiumEscrower)
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h RefundPremiumHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RefundPremiumMsg, *Swap, error) {
	var msg RefundPremiumMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}

	swap, err := loadSwap(h.bucket, db, msg.PreimageHash)
	if err != nil {
		return nil, nil, err
	}

	if !weave.IsExpired(ctx, swap.Timeout) {
		return nil, nil, errors.Wrapf(ErrNotExpired, "swap timeout %v not reached", swap.Timeout)
	}

	switch swap.Premium.State {
	case Settlement_ESCROWED:
	case Settlement_PENDING:
		return nil, nil, errors.Wrap(errors.ErrState, "premium not escrowed")
	default:
		return nil, nil, errors.Wrapf(ErrSettled, "premium is %s", swap.Premium.State)
	}

	switch swap.Asset.State {
	case Settlement_PENDING, Settlement_REDEEMED:
		// The counterparty never deposited, or the swap completed. In
		// both cases the collateral comes home.
	default:
		return nil, nil, errors.Wrapf(errors.ErrState, "premium is forfeit, asset is %s", swap.Asset.State)
	}

	return &msg, swap, nil
}

//---- refund asset

// RefundAssetHandler returns a deposited but never redeemed asset to the
// asset escrower after the protocol timeout.
type RefundAssetHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	bank   cash.Controller
}

var _ weave.Handler = RefundAssetHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h RefundAssetHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	_, _, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	return &weave.CheckResult{GasAllocated: refundCost}, nil
}

// Deliver moves the asset from custody back to the asset escrower if all
// preconditions are met. The destination is fixed, so no caller
// restriction applies.
func (h RefundAssetHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, swap, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := cash.MoveCoins(db, h.bank, swap.Address, swap.AssetEscrower, coin.Coins{swap.Asset.Expected}); err != nil {
		return nil, err
	}

	swap.Asset.State = Settlement_REFUNDED
	swap.Asset.Current = coin.NewCoinp(0, 0, swap.Asset.Expected.Ticker)
	if _, err := h.bucket.Put(db, msg.PreimageHash, swap); err != nil {
		return nil, errors.Wrap(err, "cannot update swap")
	}

	res := &weave.DeliverResult{Data: msg.PreimageHash}
	res.Tags = swapTags(swap, "refund_asset", swap.AssetEscrower)
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h RefundAssetHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RefundAssetMsg, *Swap, error) {
	var msg RefundAssetMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}

	swap, err := loadSwap(h.bucket, db, msg.PreimageHash)
	if err != nil {
		return nil, nil, err
	}

	if !weave.IsExpired(ctx, swap.Timeout) {
		return nil, nil, errors.Wrapf(ErrNotExpired, "swap timeout %v not reached", swap.Timeout)
	}

	// The premium state is not consulted. Collateral first ordering means
	// an escrowed asset implies the premium was deposited, and a forfeit
	// premium must not block the depositor from reclaiming their asset.
	switch swap.Asset.State {
	case Settlement_ESCROWED:
	case Settlement_PENDING:
		return nil, nil, errors.Wrap(errors.ErrEmpty, "asset was never escrowed")
	default:
		return nil, nil, errors.Wrapf(ErrSettled, "asset is %s", swap.Asset.State)
	}

	return &msg, swap, nil
}

//---- redeem premium

// RedeemPremiumHandler claims a forfeit premium as a penalty after the
// protocol timeout. The premium is forfeit when the asset was deposited
// in time but the secret was never disclosed.
type RedeemPremiumHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	bank   cash.Controller
}

var _ weave.Handler = RedeemPremiumHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h RedeemPremiumHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	_, _, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	return &weave.CheckResult{GasAllocated: redeemCost}, nil
}

// Deliver pays the premium to the main signer of the transaction. Any
// signer may claim it once the conditions hold.
func (h RedeemPremiumHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, swap, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	payee := x.AnySigner(ctx, h.auth).Address()
	if err := cash.MoveCoins(db, h.bank, swap.Address, payee, coin.Coins{swap.Premium.Expected}); err != nil {
		return nil, err
	}

	swap.Premium.State = Settlement_FORFEITED
	swap.Premium.Current = coin.NewCoinp(0, 0, swap.Premium.Expected.Ticker)
	if _, err := h.bucket.Put(db, msg.PreimageHash, swap); err != nil {
		return nil, errors.Wrap(err, "cannot update swap")
	}

	res := &weave.DeliverResult{Data: msg.PreimageHash}
	res.Tags = swapTags(swap, "redeem_premium", payee)
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h RedeemPremiumHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RedeemPremiumMsg, *Swap, error) {
	var msg RedeemPremiumMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}

	swap, err := loadSwap(h.bucket, db, msg.PreimageHash)
	if err != nil {
		return nil, nil, err
	}

	if !weave.IsExpired(ctx, swap.Timeout) {
		return nil, nil, errors.Wrapf(ErrNotExpired, "swap timeout %v not reached", swap.Timeout)
	}

	switch swap.Premium.State {
	case Settlement_ESCROWED:
	case Settlement_PENDING:
		return nil, nil, errors.Wrap(errors.ErrState, "premium was never escrowed")
	default:
		return nil, nil, errors.Wrapf(ErrSettled, "premium is %s", swap.Premium.State)
	}

	switch swap.Asset.State {
	case Settlement_ESCROWED, Settlement_REFUNDED:
		// Asset was deposited in time but the secret never came, so the
		// collateral is forfeit.
	case Settlement_PENDING:
		return nil, nil, errors.Wrap(errors.ErrState, "asset was never escrowed, premium is refundable")
	default:
		return nil, nil, errors.Wrap(errors.ErrState, "swap was redeemed, premium is refundable")
	}

	if x.AnySigner(ctx, h.auth) == nil {
		return nil, nil, errors.ErrUnauthorized
	}

	return &msg, swap, nil
}

// loadSwap loads swap by preimage hash, returns error if not present.
func loadSwap(bucket orm.ModelBucket, db weave.KVStore, preimageHash []byte) (*Swap, error) {
	var swap Swap
	if err := bucket.One(db, preimageHash, &swap); err != nil {
		return nil, errors.Wrapf(err, "swap %X", preimageHash)
	}
	return &swap, nil
}

func HashBytes(preimage []byte) []byte {
	hash := sha256.Sum256(preimage)
	return hash[:]
}

// swapTags reports a transition together with both positions' custody
// amounts after it.
func swapTags(swap *Swap, action string, sender weave.Address) []common.KVPair {
	tags := []common.KVPair{
		{Key: []byte("action"), Value: []byte(action)},
		{Key: []byte("preimage-hash"), Value: []byte(hex.EncodeToString(swap.PreimageHash))},
		{Key: []byte("asset-current"), Value: []byte(swap.Asset.Current.String())},
		{Key: []byte("premium-current"), Value: []byte(swap.Premium.Current.String())},
	}
	if sender != nil {
		tags = append(tags, common.KVPair{Key: []byte("sender"), Value: []byte(sender.String())})
	}
	return tags
}
