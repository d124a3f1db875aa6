package app

import (
	"bytes"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/sigs"

	"github.com/iov-one/pswapd/x/pswap"
)

func TestGetMsg(t *testing.T) {
	cases := map[string]struct {
		sum      isTx_Sum
		wantPath string
	}{
		"send":           {&Tx_SendMsg{&cash.SendMsg{}}, "cash/send"},
		"create swap":    {&Tx_CreateSwapMsg{&pswap.CreateMsg{}}, "pswap/create"},
		"escrow premium": {&Tx_EscrowPremiumMsg{&pswap.EscrowPremiumMsg{}}, "pswap/escrow_premium"},
		"escrow asset":   {&Tx_EscrowAssetMsg{&pswap.EscrowAssetMsg{}}, "pswap/escrow_asset"},
		"redeem asset":   {&Tx_RedeemAssetMsg{&pswap.RedeemAssetMsg{}}, "pswap/redeem_asset"},
		"refund premium": {&Tx_RefundPremiumMsg{&pswap.RefundPremiumMsg{}}, "pswap/refund_premium"},
		"refund asset":   {&Tx_RefundAssetMsg{&pswap.RefundAssetMsg{}}, "pswap/refund_asset"},
		"redeem premium": {&Tx_RedeemPremiumMsg{&pswap.RedeemPremiumMsg{}}, "pswap/redeem_premium"},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			tx := &Tx{Sum: spec.sum}
			msg, err := tx.GetMsg()
			assert.Nil(t, err)
			assert.Equal(t, spec.wantPath, msg.Path())
		})
	}
}

func TestTxRoundTrip(t *testing.T) {
	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()

	tx := &Tx{
		Sum: &Tx_CreateSwapMsg{&pswap.CreateMsg{
			Metadata:        &weave.Metadata{Schema: 1},
			PreimageHash:    make([]byte, 32),
			AssetEscrower:   alice,
			PremiumEscrower: bob,
			Asset:           coin.NewCoinp(100, 0, "GLD"),
			Premium:         coin.NewCoinp(10, 0, "PRM"),
			StartTime:       weave.UnixTime(1000000),
			Delta:           weave.UnixDuration(3600),
			AssetFirst:      true,
			Memo:            "spot deal",
		}},
	}
	raw, err := tx.Marshal()
	assert.Nil(t, err)

	var loaded Tx
	assert.Nil(t, loaded.Unmarshal(raw))
	msg, err := loaded.GetMsg()
	assert.Nil(t, err)
	create, ok := msg.(*pswap.CreateMsg)
	if !ok {
		t.Fatalf("unexpected message type %T", msg)
	}
	assert.Equal(t, "spot deal", create.Memo)
	assert.Equal(t, alice, create.AssetEscrower)
}

func TestGetSignBytesIgnoresSignatures(t *testing.T) {
	tx := &Tx{
		Sum: &Tx_SendMsg{&cash.SendMsg{Memo: "ping"}},
	}
	unsigned, err := tx.GetSignBytes()
	assert.Nil(t, err)

	tx.Signatures = []*sigs.StdSignature{{Sequence: 4}}
	signed, err := tx.GetSignBytes()
	assert.Nil(t, err)

	if !bytes.Equal(unsigned, signed) {
		t.Fatal("sign bytes must not depend on signatures")
	}
	if len(tx.Signatures) != 1 {
		t.Fatal("signatures must be restored after computing sign bytes")
	}
}
