package pswap_test

import (
	"testing"
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"

	"github.com/iov-one/pswapd/x/pswap"
)

// Deadlines are unix timestamps, so every varint field in a realistic
// record is several bytes long. Size must agree with the bytes actually
// written or marshalling panics.
func TestPositionMarshalSize(t *testing.T) {
	pos := &pswap.Position{
		Expected: coin.NewCoinp(100, 0, "GLD"),
		Current:  coin.NewCoinp(0, 0, "GLD"),
		Deadline: weave.UnixTime(1000030),
		State:    pswap.Settlement_PENDING,
	}
	raw, err := pos.Marshal()
	assert.Nil(t, err)
	assert.Equal(t, pos.Size(), len(raw))

	var loaded pswap.Position
	assert.Nil(t, loaded.Unmarshal(raw))
	assert.Equal(t, pos.Deadline, loaded.Deadline)
	assert.Equal(t, true, loaded.Expected.Equals(*pos.Expected))
}

func TestSwapRoundTrip(t *testing.T) {
	start := weave.UnixTime(1000000)
	hash := pswap.HashBytes(make([]byte, 32))
	swap := &pswap.Swap{
		Metadata:        &weave.Metadata{Schema: 1},
		PreimageHash:    hash,
		AssetEscrower:   weavetest.NewCondition().Address(),
		PremiumEscrower: weavetest.NewCondition().Address(),
		Asset: &pswap.Position{
			Expected: coin.NewCoinp(100, 0, "GLD"),
			Current:  coin.NewCoinp(100, 0, "GLD"),
			Deadline: start.Add(30 * time.Second),
			State:    pswap.Settlement_ESCROWED,
		},
		Premium: &pswap.Position{
			Expected: coin.NewCoinp(10, 0, "PRM"),
			Current:  coin.NewCoinp(10, 0, "PRM"),
			Deadline: start.Add(20 * time.Second),
			State:    pswap.Settlement_ESCROWED,
		},
		Timeout: start.Add(60 * time.Second),
		Address: pswap.SwapAddr(hash),
		Memo:    "spot deal",
	}
	raw, err := swap.Marshal()
	assert.Nil(t, err)
	assert.Equal(t, swap.Size(), len(raw))

	var loaded pswap.Swap
	assert.Nil(t, loaded.Unmarshal(raw))
	assert.Equal(t, swap.Timeout, loaded.Timeout)
	assert.Equal(t, swap.Address, loaded.Address)
	assert.Equal(t, pswap.Settlement_ESCROWED, loaded.Asset.State)
	assert.Equal(t, swap.Premium.Deadline, loaded.Premium.Deadline)
	assert.Equal(t, true, loaded.Asset.Current.Equals(*swap.Asset.Current))
	assert.Equal(t, swap.Memo, loaded.Memo)
}
