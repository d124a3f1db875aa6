package pswap

import (
	"time"

	"github.com/iov-one/weave"
)

// Deadlines are the three protocol deadlines of a swap, derived from the
// schedule start and the negotiation unit at creation time.
type Deadlines struct {
	Premium weave.UnixTime
	Asset   weave.UnixTime
	Timeout weave.UnixTime
}

// SwapDeadlines derives the deadlines for both schedule variants. Which
// variant applies depends on which party initiated the swap negotiation.
// For any positive delta the premium deadline comes before the asset
// deadline, which comes before the protocol timeout.
func SwapDeadlines(start weave.UnixTime, delta weave.UnixDuration, assetFirst bool) Deadlines {
	step := func(k time.Duration) weave.UnixTime {
		return start.Add(k * delta.Duration())
	}
	if assetFirst {
		return Deadlines{
			Premium: step(2),
			Asset:   step(3),
			Timeout: step(6),
		}
	}
	return Deadlines{
		Premium: step(1),
		Asset:   step(4),
		Timeout: step(5),
	}
}
