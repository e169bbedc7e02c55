package chain

var explorers = map[string]string{
	"mainnet": "https://etherscan.io/tx/",
	"sepolia": "https://sepolia.etherscan.io/tx/",
	"goerli":  "https://goerli.etherscan.io/tx/",
	"holesky": "https://holesky.etherscan.io/tx/",
	"polygon": "https://polygonscan.com/tx/",
	"amoy":    "https://amoy.polygonscan.com/tx/",
}

// ExplorerURL returns "" for networks without a known explorer.
func ExplorerURL(network, txHash string) string {
	base, ok := explorers[network]
	if !ok || txHash == "" {
		return ""
	}
	return base + txHash
}
