package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// resolveTokenID prefers the Transfer event addressed to recipient. Without one it falls back to
// totalSupply(), which a concurrent mint can move past our token, so that tier is reported as
// low confidence and never upgraded.
func (m *Minter) resolveTokenID(ctx context.Context, b Backend, receipt *types.Receipt, recipient common.Address) (*big.Int, domain.TokenIDSource) {
	if id, ok := m.transferTokenID(receipt.Logs, recipient); ok {
		return id, domain.TokenIDFromEvent
	}

	m.logger.Warn("no Transfer event for recipient; falling back to totalSupply (low confidence under concurrent minting)",
		"tx", receipt.TxHash.Hex(), "recipient", recipient.Hex())
	v, err := m.call(ctx, b, "totalSupply", receipt.BlockNumber)
	if err != nil {
		m.logger.Warn("totalSupply fallback failed; token id unresolved", "tx", receipt.TxHash.Hex(), "err", err)
		return nil, domain.TokenIDUnresolved
	}
	supply, ok := v.(*big.Int)
	if !ok || supply == nil {
		return nil, domain.TokenIDUnresolved
	}
	return supply, domain.TokenIDFromTotalSupply
}

// transferTokenID decodes every ERC-721 Transfer log emitted by the contract and returns the id of
// the one whose destination is recipient.
func (m *Minter) transferTokenID(logs []*types.Log, recipient common.Address) (*big.Int, bool) {
	ev, ok := m.abi.Events["Transfer"]
	if !ok {
		return nil, false
	}
	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}

	for _, lg := range logs {
		if lg == nil || lg.Address != m.contract || len(lg.Topics) != len(indexed)+1 || lg.Topics[0] != ev.ID {
			continue
		}
		fields := map[string]interface{}{}
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			m.logger.Debug("skipping undecodable Transfer log", "err", err)
			continue
		}
		to, _ := fields["to"].(common.Address)
		id, _ := fields["tokenId"].(*big.Int)
		if id == nil {
			continue
		}
		if strings.EqualFold(to.Hex(), recipient.Hex()) {
			return id, true
		}
	}
	return nil, false
}
