/*
Package pswap implements a premium collateralized, hash locked swap of a
single asset between two parties.

The premium escrower posts a collateral (the premium) before the asset
escrower deposits the asset. The asset is redeemed by disclosing the
sha256 preimage of the commitment hash before the asset deadline. After
the protocol timeout unclaimed funds are refunded, except for a premium
whose owner received the asset but walked away from the collateral, or
whose counterparty deposited the asset and never saw the secret; such a
premium is forfeit and may be claimed as a penalty.

Both deposits are held on the swap's own custody account and every
transition is guarded by the block time and the explicit settlement
state of each position.
*/
package pswap
