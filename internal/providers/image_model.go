package providers

import (
	"context"
	"iter"

	"github.com/osvaldoandrade/nftminter/pkg/domain"
)

// ImageModel streams a model response as chunks. The sequence is lazy: breaking out of the range
// loop stops the producer and releases its connection.
type ImageModel interface {
	// Label is the human-readable generator name recorded in metadata attributes.
	Label() string
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[domain.Chunk, error]
}
