// Package web3 houses EVM connectivity primitives shared by the swap action:
// chain definitions loaded from YAML, the per-chain configuration exposed to
// the router, and the Signer abstraction used to send transactions from the
// agent wallet.
package web3
