package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/osvaldoandrade/nftminter/internal/backoff"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const maxPollUnits = 8

// waitMined polls for the receipt until it shows up or receiptTimeout passes.
func (m *Minter) waitMined(ctx context.Context, b Backend, hash common.Hash) (*types.Receipt, error) {
	const op = "chain.waitMined"
	ctx, cancel := context.WithTimeout(ctx, m.receiptTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		receipt, err := b.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			m.logger.Warn("receipt poll failed", "tx", hash.Hex(), "attempt", attempt, "err", err)
		}

		t := time.NewTimer(backoff.Delay(backoff.Exponential, m.pollUnit, maxPollUnits*m.pollUnit, attempt, nil))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, domain.ChainError(op, fmt.Errorf("no receipt for %s after %s: %w", hash.Hex(), m.receiptTimeout, ctx.Err()))
		case <-t.C:
		}
	}
}
