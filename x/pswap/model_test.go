package pswap_test

import (
	"testing"
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"

	"github.com/iov-one/pswapd/x/pswap"
)

func TestSwapValidate(t *testing.T) {
	start := weave.UnixTime(1000000)
	hash := pswap.HashBytes(make([]byte, 32))

	cases := map[string]struct {
		mutator func(swap *pswap.Swap)
		wantErr *errors.Error
	}{
		"valid": {},
		"missing metadata": {
			mutator: func(swap *pswap.Swap) { swap.Metadata = nil },
			wantErr: errors.ErrMetadata,
		},
		"short preimage hash": {
			mutator: func(swap *pswap.Swap) { swap.PreimageHash = hash[:16] },
			wantErr: errors.ErrInput,
		},
		"missing asset position": {
			mutator: func(swap *pswap.Swap) { swap.Asset = nil },
			wantErr: errors.ErrEmpty,
		},
		"missing current amount": {
			mutator: func(swap *pswap.Swap) { swap.Premium.Current = nil },
			wantErr: errors.ErrEmpty,
		},
		"current ticker mismatch": {
			mutator: func(swap *pswap.Swap) { swap.Asset.Current = coin.NewCoinp(0, 0, "PRM") },
			wantErr: errors.ErrCurrency,
		},
		"unknown settlement state": {
			mutator: func(swap *pswap.Swap) { swap.Premium.State = pswap.Settlement(42) },
			wantErr: errors.ErrState,
		},
		"missing timeout": {
			mutator: func(swap *pswap.Swap) { swap.Timeout = 0 },
			wantErr: errors.ErrInput,
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			swap := &pswap.Swap{
				Metadata:        &weave.Metadata{Schema: 1},
				PreimageHash:    hash,
				AssetEscrower:   weavetest.NewCondition().Address(),
				PremiumEscrower: weavetest.NewCondition().Address(),
				Asset: &pswap.Position{
					Expected: coin.NewCoinp(100, 0, "GLD"),
					Current:  coin.NewCoinp(0, 0, "GLD"),
					Deadline: start.Add(30 * time.Second),
					State:    pswap.Settlement_PENDING,
				},
				Premium: &pswap.Position{
					Expected: coin.NewCoinp(10, 0, "PRM"),
					Current:  coin.NewCoinp(0, 0, "PRM"),
					Deadline: start.Add(20 * time.Second),
					State:    pswap.Settlement_PENDING,
				},
				Timeout: start.Add(60 * time.Second),
				Address: pswap.SwapAddr(hash),
			}
			if spec.mutator != nil {
				spec.mutator(swap)
			}
			if err := swap.Validate(); !spec.wantErr.Is(err) {
				t.Fatalf("expected %+v but got %+v", spec.wantErr, err)
			}
		})
	}
}
