package pswap

import (
	"github.com/iov-one/weave/errors"
)

var (
	// ErrCollateral is returned when the asset deposit arrives before
	// the premium collateral is escrowed.
	ErrCollateral = errors.Register(1900, "collateral not escrowed")

	// ErrSettled is returned when a position already left the state the
	// operation requires, so invoking it again can never succeed.
	ErrSettled = errors.Register(1901, "position already settled")

	// ErrPreimage is returned when the disclosed secret does not hash to
	// the stored commitment.
	ErrPreimage = errors.Register(1902, "preimage mismatch")

	// ErrNotExpired is returned for refund and penalty operations invoked
	// before the protocol timeout.
	ErrNotExpired = errors.Register(1903, "swap not expired")
)
