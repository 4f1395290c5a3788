package asset

import "github.com/ethereum/go-ethereum/common"

// Well-known collateral token addresses on Ethereum Mainnet.
var (
	AddrUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrDAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

// DefaultRegistry returns a registry pre-populated with common stablecoins.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTokenWithName(AddrUSDC, "USDC", "USD Coin"))
	r.Register(NewTokenWithName(AddrDAI, "DAI", "Dai Stablecoin"))
	return r
}
