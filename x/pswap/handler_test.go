package pswap_test

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"

	"github.com/iov-one/pswapd/x/pswap"
)

var (
	// alice deposits the asset, bob posts the premium collateral and
	// holds the secret. claimer is an unrelated third party.
	alice   = weavetest.NewCondition()
	bob     = weavetest.NewCondition()
	claimer = weavetest.NewCondition()
)

// Schedule used throughout: start 1000000, delta 10s, asset first, so
// premium deadline is start+20, asset deadline start+30, timeout
// start+60. All test times are offsets from start.
const (
	startTime    = weave.UnixTime(1000000)
	swapDelta    = weave.UnixDuration(10)
	premiumAt    = 5
	assetAt      = 25
	redeemAt     = 29
	afterTimeout = 61
)

type env struct {
	db     weave.CacheableKVStore
	r      *app.Router
	auth   *weavetest.CtxAuth
	bank   cash.Bucket
	ctrl   cash.Controller
	bucket orm.ModelBucket

	preimage []byte
	hash     []byte
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := store.MemStore()
	migration.MustInitPkg(db, "pswap", "cash")

	bank := cash.NewBucket()
	ctrl := cash.NewController(bank)
	r := app.NewRouter()
	authenticator := &weavetest.CtxAuth{Key: "auth"}
	pswap.RegisterRoutes(r, x.ChainAuth(authenticator), ctrl)

	preimage := make([]byte, 32)
	return &env{
		db:       db,
		r:        r,
		auth:     authenticator,
		bank:     bank,
		ctrl:     ctrl,
		bucket:   pswap.NewBucket(),
		preimage: preimage,
		hash:     pswap.HashBytes(preimage),
	}
}

func (e *env) at(offset int64) weave.Context {
	ctx := weave.WithHeight(context.Background(), 500)
	blockTime := startTime.Time().Add(time.Duration(offset) * time.Second)
	return weave.WithBlockTime(ctx, blockTime)
}

func (e *env) signed(ctx weave.Context, conds ...weave.Condition) weave.Context {
	return e.auth.SetConditions(ctx, conds...)
}

func (e *env) deliver(ctx weave.Context, msg weave.Msg) error {
	_, err := e.r.Deliver(ctx, e.db, &weavetest.Tx{Msg: msg})
	return err
}

func (e *env) fund(t *testing.T, addr weave.Address, coins coin.Coins) {
	t.Helper()
	acct, err := cash.WalletWith(addr, coins...)
	assert.Nil(t, err)
	assert.Nil(t, e.bank.Save(e.db, acct))
}

func (e *env) balance(t *testing.T, addr weave.Address) coin.Coins {
	t.Helper()
	acct, err := e.bank.Get(e.db, addr)
	assert.Nil(t, err)
	return cash.AsCoins(acct)
}

func (e *env) loadSwap(t *testing.T) *pswap.Swap {
	t.Helper()
	var swap pswap.Swap
	assert.Nil(t, e.bucket.One(e.db, e.hash, &swap))
	return &swap
}

func (e *env) createMsg() *pswap.CreateMsg {
	return &pswap.CreateMsg{
		Metadata:        &weave.Metadata{Schema: 1},
		PreimageHash:    e.hash,
		AssetEscrower:   alice.Address(),
		PremiumEscrower: bob.Address(),
		Asset:           coin.NewCoinp(100, 0, "GLD"),
		Premium:         coin.NewCoinp(10, 0, "PRM"),
		StartTime:       startTime,
		Delta:           swapDelta,
		AssetFirst:      true,
	}
}

func (e *env) create(t *testing.T) {
	t.Helper()
	assert.Nil(t, e.deliver(e.signed(e.at(0), alice), e.createMsg()))
}

func (e *env) escrowPremium(t *testing.T, offset int64) {
	t.Helper()
	e.fund(t, bob.Address(), mustCombine(t, prm(10)))
	msg := &pswap.EscrowPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	assert.Nil(t, e.deliver(e.signed(e.at(offset), bob), msg))
}

func (e *env) escrowAsset(t *testing.T, offset int64) {
	t.Helper()
	e.fund(t, alice.Address(), mustCombine(t, gld(100)))
	msg := &pswap.EscrowAssetMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	assert.Nil(t, e.deliver(e.signed(e.at(offset), alice), msg))
}

func (e *env) redeemAsset(t *testing.T, offset int64) {
	t.Helper()
	msg := &pswap.RedeemAssetMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash, Preimage: e.preimage}
	assert.Nil(t, e.deliver(e.signed(e.at(offset), bob), msg))
}

func (e *env) refundPremium(t *testing.T, offset int64) {
	t.Helper()
	msg := &pswap.RefundPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	assert.Nil(t, e.deliver(e.signed(e.at(offset), claimer), msg))
}

func (e *env) refundAsset(t *testing.T, offset int64) {
	t.Helper()
	msg := &pswap.RefundAssetMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	assert.Nil(t, e.deliver(e.signed(e.at(offset), claimer), msg))
}

func (e *env) redeemPremium(t *testing.T, offset int64, signer weave.Condition) {
	t.Helper()
	msg := &pswap.RedeemPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	assert.Nil(t, e.deliver(e.signed(e.at(offset), signer), msg))
}

func gld(n int64) coin.Coin { return coin.NewCoin(n, 0, "GLD") }
func prm(n int64) coin.Coin { return coin.NewCoin(n, 0, "PRM") }

func mustCombine(t *testing.T, cs ...coin.Coin) coin.Coins {
	t.Helper()
	coins, err := coin.CombineCoins(cs...)
	assert.Nil(t, err)
	return coins
}

// runCase executes Check on a throwaway cache and Deliver on the real
// store, comparing both errors.
func runCase(t *testing.T, e *env, ctx weave.Context, msg weave.Msg, wantCheckErr, wantDeliverErr *errors.Error) {
	t.Helper()
	tx := &weavetest.Tx{Msg: msg}

	cache := e.db.CacheWrap()
	if _, err := e.r.Check(ctx, cache, tx); !wantCheckErr.Is(err) {
		t.Fatalf("check expected: %+v  but got %+v", wantCheckErr, err)
	}
	cache.Discard()

	if _, err := e.r.Deliver(ctx, e.db, tx); !wantDeliverErr.Is(err) {
		t.Fatalf("deliver expected: %+v  but got %+v", wantDeliverErr, err)
	}
}

func TestCreateSwapHandler(t *testing.T) {
	cases := map[string]struct {
		prep           func(t *testing.T, e *env)
		at             int64
		signer         weave.Condition
		mutator        func(msg *pswap.CreateMsg)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, e *env)
	}{
		"happy path": {
			at:     0,
			signer: alice,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_PENDING, swap.Asset.State)
				assert.Equal(t, pswap.Settlement_PENDING, swap.Premium.State)
				assert.Equal(t, startTime.Add(20*time.Second), swap.Premium.Deadline)
				assert.Equal(t, startTime.Add(30*time.Second), swap.Asset.Deadline)
				assert.Equal(t, startTime.Add(60*time.Second), swap.Timeout)
				assert.Equal(t, true, swap.Asset.Current.IsZero())
				assert.Equal(t, true, swap.Premium.Current.IsZero())
				assert.Equal(t, pswap.SwapAddr(e.hash), swap.Address)
			},
		},
		"premium party can open": {
			at:     0,
			signer: bob,
		},
		"missing preimage hash": {
			at:     0,
			signer: alice,
			mutator: func(msg *pswap.CreateMsg) {
				msg.PreimageHash = nil
			},
			wantCheckErr:   errors.ErrInput,
			wantDeliverErr: errors.ErrInput,
		},
		"third party cannot open": {
			at:             0,
			signer:         claimer,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"duplicate preimage hash": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
			},
			at:             1,
			signer:         alice,
			wantCheckErr:   errors.ErrDuplicate,
			wantDeliverErr: errors.ErrDuplicate,
		},
		"premium deadline in the past": {
			at:             30,
			signer:         alice,
			wantCheckErr:   errors.ErrInput,
			wantDeliverErr: errors.ErrInput,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			if spec.prep != nil {
				spec.prep(t, e)
			}
			msg := e.createMsg()
			if spec.mutator != nil {
				spec.mutator(msg)
			}
			ctx := e.signed(e.at(spec.at), spec.signer)
			runCase(t, e, ctx, msg, spec.wantCheckErr, spec.wantDeliverErr)
			if spec.check != nil {
				spec.check(t, e)
			}
		})
	}
}

func TestEscrowPremiumHandler(t *testing.T) {
	cases := map[string]struct {
		prep           func(t *testing.T, e *env)
		at             int64
		signer         weave.Condition
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, e *env)
	}{
		"happy path": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.fund(t, bob.Address(), mustCombine(t, prm(10)))
			},
			at:     premiumAt,
			signer: bob,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_ESCROWED, swap.Premium.State)
				assert.Equal(t, true, swap.Premium.Current.Equals(prm(10)))
				custody := e.balance(t, swap.Address)
				assert.Equal(t, true, custody.Equals(mustCombine(t, prm(10))))
				assert.Equal(t, true, e.balance(t, bob.Address()).IsEmpty())
			},
		},
		"deadline passed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.fund(t, bob.Address(), mustCombine(t, prm(10)))
			},
			at:             20,
			signer:         bob,
			wantCheckErr:   errors.ErrExpired,
			wantDeliverErr: errors.ErrExpired,
		},
		"only the premium escrower may deposit": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
			},
			at:             premiumAt,
			signer:         alice,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"already escrowed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
				e.fund(t, bob.Address(), mustCombine(t, prm(10)))
			},
			at:             premiumAt + 1,
			signer:         bob,
			wantCheckErr:   pswap.ErrSettled,
			wantDeliverErr: pswap.ErrSettled,
		},
		"empty account": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
			},
			at:             premiumAt,
			signer:         bob,
			wantDeliverErr: errors.ErrEmpty,
		},
		"insufficient balance": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.fund(t, bob.Address(), mustCombine(t, prm(5)))
			},
			at:             premiumAt,
			signer:         bob,
			wantDeliverErr: errors.ErrAmount,
			check: func(t *testing.T, e *env) {
				// nothing may move on a short wallet
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_PENDING, swap.Premium.State)
				assert.Equal(t, true, e.balance(t, swap.Address).IsEmpty())
				assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, prm(5))))
			},
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			spec.prep(t, e)
			msg := &pswap.EscrowPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
			ctx := e.signed(e.at(spec.at), spec.signer)
			runCase(t, e, ctx, msg, spec.wantCheckErr, spec.wantDeliverErr)
			if spec.check != nil {
				spec.check(t, e)
			}
		})
	}
}

func TestEscrowAssetHandler(t *testing.T) {
	cases := map[string]struct {
		prep           func(t *testing.T, e *env)
		at             int64
		signer         weave.Condition
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, e *env)
	}{
		"happy path": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
				e.fund(t, alice.Address(), mustCombine(t, gld(100)))
			},
			at:     assetAt,
			signer: alice,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_ESCROWED, swap.Asset.State)
				assert.Equal(t, true, swap.Asset.Current.Equals(gld(100)))
				custody := e.balance(t, swap.Address)
				assert.Equal(t, true, custody.Equals(mustCombine(t, gld(100), prm(10))))
			},
		},
		"premium not escrowed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.fund(t, alice.Address(), mustCombine(t, gld(100)))
			},
			at:             premiumAt,
			signer:         alice,
			wantCheckErr:   pswap.ErrCollateral,
			wantDeliverErr: pswap.ErrCollateral,
		},
		"deadline passed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
				e.fund(t, alice.Address(), mustCombine(t, gld(100)))
			},
			at:             30,
			signer:         alice,
			wantCheckErr:   errors.ErrExpired,
			wantDeliverErr: errors.ErrExpired,
		},
		"only the asset escrower may deposit": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
			},
			at:             assetAt,
			signer:         bob,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"already escrowed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
				e.escrowAsset(t, assetAt)
			},
			at:             assetAt + 1,
			signer:         alice,
			wantCheckErr:   pswap.ErrSettled,
			wantDeliverErr: pswap.ErrSettled,
		},
		"empty account": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
			},
			at:             assetAt,
			signer:         alice,
			wantDeliverErr: errors.ErrEmpty,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			spec.prep(t, e)
			msg := &pswap.EscrowAssetMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
			ctx := e.signed(e.at(spec.at), spec.signer)
			runCase(t, e, ctx, msg, spec.wantCheckErr, spec.wantDeliverErr)
			if spec.check != nil {
				spec.check(t, e)
			}
		})
	}
}

func TestRedeemAssetHandler(t *testing.T) {
	bothEscrowed := func(t *testing.T, e *env) {
		e.create(t)
		e.escrowPremium(t, premiumAt)
		e.escrowAsset(t, assetAt)
	}

	cases := map[string]struct {
		prep           func(t *testing.T, e *env)
		at             int64
		signer         weave.Condition
		preimage       []byte
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, e *env)
	}{
		"happy path": {
			prep:   bothEscrowed,
			at:     redeemAt,
			signer: bob,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_REDEEMED, swap.Asset.State)
				assert.Equal(t, true, swap.Asset.Current.IsZero())
				assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, gld(100))))
				custody := e.balance(t, swap.Address)
				assert.Equal(t, true, custody.Equals(mustCombine(t, prm(10))))
			},
		},
		"wrong preimage": {
			prep:           bothEscrowed,
			at:             redeemAt,
			signer:         bob,
			preimage:       append(make([]byte, 31), 1),
			wantCheckErr:   pswap.ErrPreimage,
			wantDeliverErr: pswap.ErrPreimage,
		},
		"deadline passed": {
			prep:           bothEscrowed,
			at:             30,
			signer:         bob,
			wantCheckErr:   errors.ErrExpired,
			wantDeliverErr: errors.ErrExpired,
		},
		"asset not escrowed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
			},
			at:             redeemAt,
			signer:         bob,
			wantCheckErr:   errors.ErrState,
			wantDeliverErr: errors.ErrState,
		},
		"only the premium escrower may redeem": {
			prep:           bothEscrowed,
			at:             redeemAt,
			signer:         alice,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"already redeemed": {
			prep: func(t *testing.T, e *env) {
				bothEscrowed(t, e)
				e.redeemAsset(t, redeemAt - 1)
			},
			at:             redeemAt,
			signer:         bob,
			wantCheckErr:   pswap.ErrSettled,
			wantDeliverErr: pswap.ErrSettled,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			spec.prep(t, e)
			preimage := spec.preimage
			if preimage == nil {
				preimage = e.preimage
			}
			msg := &pswap.RedeemAssetMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash, Preimage: preimage}
			ctx := e.signed(e.at(spec.at), spec.signer)
			runCase(t, e, ctx, msg, spec.wantCheckErr, spec.wantDeliverErr)
			if spec.check != nil {
				spec.check(t, e)
			}
		})
	}
}

func TestRefundPremiumHandler(t *testing.T) {
	cases := map[string]struct {
		prep           func(t *testing.T, e *env)
		at             int64
		signer         weave.Condition
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, e *env)
	}{
		"asset never arrived": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
			},
			at:     afterTimeout,
			signer: claimer,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_REFUNDED, swap.Premium.State)
				assert.Equal(t, true, swap.Premium.Current.IsZero())
				assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, prm(10))))
				assert.Equal(t, true, e.balance(t, swap.Address).IsEmpty())
			},
		},
		"collateral comes home after redeem": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
				e.escrowAsset(t, assetAt)
				e.redeemAsset(t, redeemAt)
			},
			at:     afterTimeout,
			signer: claimer,
			check: func(t *testing.T, e *env) {
				assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, gld(100), prm(10))))
			},
		},
		"before timeout": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
			},
			at:             59,
			signer:         claimer,
			wantCheckErr:   pswap.ErrNotExpired,
			wantDeliverErr: pswap.ErrNotExpired,
		},
		"premium is forfeit": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
				e.escrowAsset(t, assetAt)
			},
			at:             afterTimeout,
			signer:         claimer,
			wantCheckErr:   errors.ErrState,
			wantDeliverErr: errors.ErrState,
		},
		"premium never escrowed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
			},
			at:             afterTimeout,
			signer:         claimer,
			wantCheckErr:   errors.ErrState,
			wantDeliverErr: errors.ErrState,
		},
		"already refunded": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
				e.refundPremium(t, afterTimeout)
			},
			at:             afterTimeout + 1,
			signer:         claimer,
			wantCheckErr:   pswap.ErrSettled,
			wantDeliverErr: pswap.ErrSettled,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			spec.prep(t, e)
			msg := &pswap.RefundPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
			ctx := e.signed(e.at(spec.at), spec.signer)
			runCase(t, e, ctx, msg, spec.wantCheckErr, spec.wantDeliverErr)
			if spec.check != nil {
				spec.check(t, e)
			}
		})
	}
}

func TestRefundAssetHandler(t *testing.T) {
	bothEscrowed := func(t *testing.T, e *env) {
		e.create(t)
		e.escrowPremium(t, premiumAt)
		e.escrowAsset(t, assetAt)
	}

	cases := map[string]struct {
		prep           func(t *testing.T, e *env)
		at             int64
		signer         weave.Condition
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, e *env)
	}{
		"happy path": {
			prep:   bothEscrowed,
			at:     afterTimeout,
			signer: claimer,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_REFUNDED, swap.Asset.State)
				assert.Equal(t, true, swap.Asset.Current.IsZero())
				assert.Equal(t, true, e.balance(t, alice.Address()).Equals(mustCombine(t, gld(100))))
				custody := e.balance(t, swap.Address)
				assert.Equal(t, true, custody.Equals(mustCombine(t, prm(10))))
			},
		},
		"before timeout": {
			prep:           bothEscrowed,
			at:             59,
			signer:         claimer,
			wantCheckErr:   pswap.ErrNotExpired,
			wantDeliverErr: pswap.ErrNotExpired,
		},
		"asset never escrowed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
			},
			at:             afterTimeout,
			signer:         claimer,
			wantCheckErr:   errors.ErrEmpty,
			wantDeliverErr: errors.ErrEmpty,
		},
		"already redeemed": {
			prep: func(t *testing.T, e *env) {
				bothEscrowed(t, e)
				e.redeemAsset(t, redeemAt)
			},
			at:             afterTimeout,
			signer:         claimer,
			wantCheckErr:   pswap.ErrSettled,
			wantDeliverErr: pswap.ErrSettled,
		},
		"already refunded": {
			prep: func(t *testing.T, e *env) {
				bothEscrowed(t, e)
				e.refundAsset(t, afterTimeout)
			},
			at:             afterTimeout + 1,
			signer:         claimer,
			wantCheckErr:   pswap.ErrSettled,
			wantDeliverErr: pswap.ErrSettled,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			spec.prep(t, e)
			msg := &pswap.RefundAssetMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
			ctx := e.signed(e.at(spec.at), spec.signer)
			runCase(t, e, ctx, msg, spec.wantCheckErr, spec.wantDeliverErr)
			if spec.check != nil {
				spec.check(t, e)
			}
		})
	}
}

func TestRedeemPremiumHandler(t *testing.T) {
	bothEscrowed := func(t *testing.T, e *env) {
		e.create(t)
		e.escrowPremium(t, premiumAt)
		e.escrowAsset(t, assetAt)
	}

	cases := map[string]struct {
		prep           func(t *testing.T, e *env)
		at             int64
		signer         weave.Condition
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, e *env)
	}{
		// The penalty claim is deliberately open to any signer. The
		// payout goes to whoever claims it first.
		"any signer may claim the penalty": {
			prep:   bothEscrowed,
			at:     afterTimeout,
			signer: claimer,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_FORFEITED, swap.Premium.State)
				assert.Equal(t, true, swap.Premium.Current.IsZero())
				assert.Equal(t, true, e.balance(t, claimer.Address()).Equals(mustCombine(t, prm(10))))
			},
		},
		"claim after asset refund": {
			prep: func(t *testing.T, e *env) {
				bothEscrowed(t, e)
				e.refundAsset(t, afterTimeout)
			},
			at:     afterTimeout + 1,
			signer: bob,
			check: func(t *testing.T, e *env) {
				swap := e.loadSwap(t)
				assert.Equal(t, pswap.Settlement_FORFEITED, swap.Premium.State)
				assert.Equal(t, true, e.balance(t, swap.Address).IsEmpty())
			},
		},
		"before timeout": {
			prep:           bothEscrowed,
			at:             59,
			signer:         claimer,
			wantCheckErr:   pswap.ErrNotExpired,
			wantDeliverErr: pswap.ErrNotExpired,
		},
		"asset never escrowed": {
			prep: func(t *testing.T, e *env) {
				e.create(t)
				e.escrowPremium(t, premiumAt)
			},
			at:             afterTimeout,
			signer:         claimer,
			wantCheckErr:   errors.ErrState,
			wantDeliverErr: errors.ErrState,
		},
		"swap was redeemed": {
			prep: func(t *testing.T, e *env) {
				bothEscrowed(t, e)
				e.redeemAsset(t, redeemAt)
			},
			at:             afterTimeout,
			signer:         claimer,
			wantCheckErr:   errors.ErrState,
			wantDeliverErr: errors.ErrState,
		},
		"already claimed": {
			prep: func(t *testing.T, e *env) {
				bothEscrowed(t, e)
				e.redeemPremium(t, afterTimeout, claimer)
			},
			at:             afterTimeout + 1,
			signer:         claimer,
			wantCheckErr:   pswap.ErrSettled,
			wantDeliverErr: pswap.ErrSettled,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			spec.prep(t, e)
			msg := &pswap.RedeemPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
			ctx := e.signed(e.at(spec.at), spec.signer)
			runCase(t, e, ctx, msg, spec.wantCheckErr, spec.wantDeliverErr)
			if spec.check != nil {
				spec.check(t, e)
			}
		})
	}
}

// TestLifecycleCompleted walks the full happy path: premium at t+5,
// asset at t+25, redeem at t+29, collateral refund after the timeout.
func TestLifecycleCompleted(t *testing.T) {
	e := newEnv(t)

	e.create(t)
	e.escrowPremium(t, premiumAt)
	e.escrowAsset(t, assetAt)
	e.redeemAsset(t, redeemAt)

	assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, gld(100))))

	e.refundPremium(t, afterTimeout)
	assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, gld(100), prm(10))))
	assert.Equal(t, true, e.balance(t, e.loadSwap(t).Address).IsEmpty())

	// the forfeit path must be closed now
	msg := &pswap.RedeemPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	err := e.deliver(e.signed(e.at(afterTimeout+1), claimer), msg)
	assert.IsErr(t, pswap.ErrSettled, err)
}

// TestLifecyclePremiumFirst runs the full happy path on the premium
// first schedule: deadlines start+10 and start+40, timeout start+50.
// Escrowing the asset at t+35 and refunding the premium at t+51 would
// both be rejected on the asset first schedule, so this pins the
// deadline branch end to end.
func TestLifecyclePremiumFirst(t *testing.T) {
	e := newEnv(t)

	msg := e.createMsg()
	msg.AssetFirst = false
	assert.Nil(t, e.deliver(e.signed(e.at(0), alice), msg))

	swap := e.loadSwap(t)
	assert.Equal(t, startTime.Add(10*time.Second), swap.Premium.Deadline)
	assert.Equal(t, startTime.Add(40*time.Second), swap.Asset.Deadline)
	assert.Equal(t, startTime.Add(50*time.Second), swap.Timeout)

	e.escrowPremium(t, 5)
	e.escrowAsset(t, 35)
	e.redeemAsset(t, 39)
	assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, gld(100))))

	e.refundPremium(t, 51)
	assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, gld(100), prm(10))))
	assert.Equal(t, true, e.balance(t, e.loadSwap(t).Address).IsEmpty())
}

// TestLifecycleAbandoned covers the counterparty never depositing: after
// the timeout the premium is refundable and the asset refund rejects
// without moving anything.
func TestLifecycleAbandoned(t *testing.T) {
	e := newEnv(t)

	e.create(t)
	e.escrowPremium(t, premiumAt)

	refundAsset := &pswap.RefundAssetMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	err := e.deliver(e.signed(e.at(afterTimeout), claimer), refundAsset)
	assert.IsErr(t, errors.ErrEmpty, err)
	custody := e.balance(t, e.loadSwap(t).Address)
	assert.Equal(t, true, custody.Equals(mustCombine(t, prm(10))))

	e.refundPremium(t, afterTimeout)
	assert.Equal(t, true, e.balance(t, bob.Address()).Equals(mustCombine(t, prm(10))))
	assert.Equal(t, true, e.balance(t, e.loadSwap(t).Address).IsEmpty())
}

// TestLifecycleForfeited covers a deposited but never redeemed asset:
// the depositor reclaims the asset, the collateral is forfeit and goes
// to whoever claims it.
func TestLifecycleForfeited(t *testing.T) {
	e := newEnv(t)

	e.create(t)
	e.escrowPremium(t, premiumAt)
	e.escrowAsset(t, assetAt)

	// the premium cannot come home
	refundPremium := &pswap.RefundPremiumMsg{Metadata: &weave.Metadata{Schema: 1}, PreimageHash: e.hash}
	err := e.deliver(e.signed(e.at(afterTimeout), claimer), refundPremium)
	assert.IsErr(t, errors.ErrState, err)

	e.refundAsset(t, afterTimeout)
	assert.Equal(t, true, e.balance(t, alice.Address()).Equals(mustCombine(t, gld(100))))

	e.redeemPremium(t, afterTimeout+1, claimer)
	assert.Equal(t, true, e.balance(t, claimer.Address()).Equals(mustCombine(t, prm(10))))
	assert.Equal(t, true, e.balance(t, e.loadSwap(t).Address).IsEmpty())

	swap := e.loadSwap(t)
	assert.Equal(t, pswap.Settlement_REFUNDED, swap.Asset.State)
	assert.Equal(t, pswap.Settlement_FORFEITED, swap.Premium.State)
}
