package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// minterABI covers the entry points the service calls on the deployed ERC-721.
const minterABI = `[
  {"type":"function","name":"mintNFT","stateMutability":"nonpayable",
   "inputs":[{"name":"recipient","type":"address"},{"name":"tokenURI","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"tokenId","type":"uint256","indexed":true}]}
]`

// ContractABI parses the bundled ABI. It panics only if the constant above is malformed.
func ContractABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(minterABI))
	if err != nil {
		panic(err)
	}
	return parsed
}
