package pswap_test

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"

	"github.com/iov-one/pswapd/x/pswap"
)

func TestCreateMsgValidate(t *testing.T) {
	party := weavetest.NewCondition().Address()
	counterparty := weavetest.NewCondition().Address()

	cases := map[string]struct {
		mutator func(msg *pswap.CreateMsg)
		wantErr *errors.Error
	}{
		"valid": {},
		"missing metadata": {
			mutator: func(msg *pswap.CreateMsg) { msg.Metadata = nil },
			wantErr: errors.ErrMetadata,
		},
		"short preimage hash": {
			mutator: func(msg *pswap.CreateMsg) { msg.PreimageHash = make([]byte, 31) },
			wantErr: errors.ErrInput,
		},
		"same party on both sides": {
			mutator: func(msg *pswap.CreateMsg) { msg.PremiumEscrower = msg.AssetEscrower },
			wantErr: errors.ErrInput,
		},
		"missing asset amount": {
			mutator: func(msg *pswap.CreateMsg) { msg.Asset = nil },
			wantErr: errors.ErrAmount,
		},
		"non-positive premium": {
			mutator: func(msg *pswap.CreateMsg) { msg.Premium = coin.NewCoinp(0, 0, "PRM") },
			wantErr: errors.ErrAmount,
		},
		"missing start time": {
			mutator: func(msg *pswap.CreateMsg) { msg.StartTime = 0 },
			wantErr: errors.ErrInput,
		},
		"zero delta": {
			mutator: func(msg *pswap.CreateMsg) { msg.Delta = 0 },
			wantErr: errors.ErrInput,
		},
		"negative delta": {
			mutator: func(msg *pswap.CreateMsg) { msg.Delta = -1 },
			wantErr: errors.ErrInput,
		},
		"memo too long": {
			mutator: func(msg *pswap.CreateMsg) { msg.Memo = string(make([]byte, 129)) },
			wantErr: errors.ErrInput,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			msg := &pswap.CreateMsg{
				Metadata:        &weave.Metadata{Schema: 1},
				PreimageHash:    make([]byte, 32),
				AssetEscrower:   party,
				PremiumEscrower: counterparty,
				Asset:           coin.NewCoinp(100, 0, "GLD"),
				Premium:         coin.NewCoinp(10, 0, "PRM"),
				StartTime:       weave.UnixTime(1000000),
				Delta:           weave.UnixDuration(10),
				AssetFirst:      true,
			}
			if spec.mutator != nil {
				spec.mutator(msg)
			}
			if err := msg.Validate(); !spec.wantErr.Is(err) {
				t.Fatalf("expected %+v but got %+v", spec.wantErr, err)
			}
		})
	}
}

func TestRedeemAssetMsgValidate(t *testing.T) {
	cases := map[string]struct {
		mutator func(msg *pswap.RedeemAssetMsg)
		wantErr *errors.Error
	}{
		"valid": {},
		"short preimage": {
			mutator: func(msg *pswap.RedeemAssetMsg) { msg.Preimage = make([]byte, 31) },
			wantErr: errors.ErrInput,
		},
		"missing preimage": {
			mutator: func(msg *pswap.RedeemAssetMsg) { msg.Preimage = nil },
			wantErr: errors.ErrInput,
		},
		"short preimage hash": {
			mutator: func(msg *pswap.RedeemAssetMsg) { msg.PreimageHash = make([]byte, 16) },
			wantErr: errors.ErrInput,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			msg := &pswap.RedeemAssetMsg{
				Metadata:     &weave.Metadata{Schema: 1},
				PreimageHash: make([]byte, 32),
				Preimage:     make([]byte, 32),
			}
			if spec.mutator != nil {
				spec.mutator(msg)
			}
			if err := msg.Validate(); !spec.wantErr.Is(err) {
				t.Fatalf("expected %+v but got %+v", spec.wantErr, err)
			}
		})
	}
}

func TestMsgPaths(t *testing.T) {
	paths := map[weave.Msg]string{
		&pswap.CreateMsg{}:        "pswap/create",
		&pswap.EscrowPremiumMsg{}: "pswap/escrow_premium",
		&pswap.EscrowAssetMsg{}:   "pswap/escrow_asset",
		&pswap.RedeemAssetMsg{}:   "pswap/redeem_asset",
		&pswap.RefundPremiumMsg{}: "pswap/refund_premium",
		&pswap.RefundAssetMsg{}:   "pswap/refund_asset",
		&pswap.RedeemPremiumMsg{}: "pswap/redeem_premium",
	}
	for msg, want := range paths {
		if got := msg.Path(); got != want {
			t.Fatalf("%T path: expected %q, got %q", msg, want, got)
		}
	}
}
