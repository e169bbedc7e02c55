package domain

import "math/big"

// TokenIDSource tells callers how much to trust MintOutcome.TokenID.
type TokenIDSource string

const (
	// TokenIDFromEvent is read from the Transfer log addressed to the recipient. Authoritative.
	TokenIDFromEvent TokenIDSource = "event"
	// TokenIDFromTotalSupply is totalSupply() read after confirmation. A concurrent mint can make it
	// point at someone else's token.
	TokenIDFromTotalSupply TokenIDSource = "total_supply"
	// TokenIDUnresolved means the token was minted but its identifier is unknown.
	TokenIDUnresolved TokenIDSource = "unresolved"
)

type MintRequest struct {
	Network   string
	Recipient string
	TokenURI  string
}

type MintOutcome struct {
	Success         bool          `json:"success"`
	TokenID         *big.Int      `json:"tokenId"`
	TokenIDSource   TokenIDSource `json:"tokenIdSource,omitempty"`
	TransactionHash string        `json:"transactionHash,omitempty"`
	BlockNumber     uint64        `json:"blockNumber,omitempty"`
	GasUsed         uint64        `json:"gasUsed,omitempty"`
	ContractAddress string        `json:"contractAddress"`
	Recipient       string        `json:"recipient"`
	TokenURI        string        `json:"tokenUri"`
	Network         string        `json:"network"`
	ExplorerURL     string        `json:"explorerUrl,omitempty"`
	Error           string        `json:"error,omitempty"`
	ErrorKind       ErrorKind     `json:"errorKind,omitempty"`
}

// TokenIDResolved reports whether an identifier was recovered, by either tier.
func (o MintOutcome) TokenIDResolved() bool {
	return o.TokenID != nil && o.TokenIDSource != TokenIDUnresolved
}

type TokenDetails struct {
	TokenID         *big.Int `json:"tokenId"`
	Owner           string   `json:"owner"`
	TokenURI        string   `json:"tokenUri"`
	ContractAddress string   `json:"contractAddress"`
	Network         string   `json:"network"`
}
