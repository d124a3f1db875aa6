package pswap_test

import (
	"testing"
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/weavetest/assert"

	"github.com/iov-one/pswapd/x/pswap"
)

func TestSwapDeadlines(t *testing.T) {
	start := weave.UnixTime(1000000)
	delta := weave.UnixDuration(10)

	cases := map[string]struct {
		assetFirst  bool
		wantPremium weave.UnixTime
		wantAsset   weave.UnixTime
		wantTimeout weave.UnixTime
	}{
		"asset first": {
			assetFirst:  true,
			wantPremium: start.Add(20 * time.Second),
			wantAsset:   start.Add(30 * time.Second),
			wantTimeout: start.Add(60 * time.Second),
		},
		"premium first": {
			assetFirst:  false,
			wantPremium: start.Add(10 * time.Second),
			wantAsset:   start.Add(40 * time.Second),
			wantTimeout: start.Add(50 * time.Second),
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			d := pswap.SwapDeadlines(start, delta, spec.assetFirst)
			assert.Equal(t, spec.wantPremium, d.Premium)
			assert.Equal(t, spec.wantAsset, d.Asset)
			assert.Equal(t, spec.wantTimeout, d.Timeout)
		})
	}
}

func TestSwapDeadlinesOrdering(t *testing.T) {
	start := weave.UnixTime(1000000)
	deltas := []weave.UnixDuration{1, 10, 3600, 86400}

	for _, delta := range deltas {
		for _, assetFirst := range []bool{true, false} {
			d := pswap.SwapDeadlines(start, delta, assetFirst)
			if !(d.Premium < d.Asset && d.Asset < d.Timeout) {
				t.Fatalf("delta %d assetFirst %v: deadlines not ordered: %v %v %v",
					delta, assetFirst, d.Premium, d.Asset, d.Timeout)
			}
		}
	}
}
