package services

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/osvaldoandrade/nftminter/internal/providers"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/ethereum/go-ethereum/common"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) providers.ArtifactStore {
	t.Helper()
	dir := t.TempDir()
	store, err := providers.NewLocalArtifactStore(dir+"/images", dir+"/metadata")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return store
}

// fakeModel answers with an image unless the prompt contains refuseOn or failOn.
type fakeModel struct {
	refuseOn string
	failOn   string
	calls    atomic.Int32
	prompts  sync.Map
}

func (m *fakeModel) Label() string { return "Fake Model" }

func (m *fakeModel) GenerateStream(ctx context.Context, prompt string) iter.Seq2[domain.Chunk, error] {
	m.calls.Add(1)
	m.prompts.Store(prompt, true)
	return func(yield func(domain.Chunk, error) bool) {
		if !yield(domain.Chunk{Text: "thinking about it"}, nil) {
			return
		}
		switch {
		case m.failOn != "" && strings.Contains(prompt, m.failOn):
			yield(domain.Chunk{}, domain.TransportError("fake.stream", errors.New("upstream 500"), ""))
			return
		case m.refuseOn != "" && strings.Contains(prompt, m.refuseOn):
			yield(domain.Chunk{Text: "I can't draw that"}, nil)
			return
		}
		yield(domain.Chunk{Data: pngBytes, MimeType: "image/png"}, nil)
	}
}

// fakePinning records calls and hands out sequential CIDs.
type fakePinning struct {
	mu        sync.Mutex
	fileErr   error
	jsonErr   error
	fileCalls int
	jsonCalls int
	documents []domain.NFTMetadata
	labels    []string
}

func (p *fakePinning) UploadFile(ctx context.Context, path string) (domain.PinnedObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileCalls++
	if p.fileErr != nil {
		return domain.PinnedObject{}, p.fileErr
	}
	if _, err := os.Stat(path); err != nil {
		return domain.PinnedObject{}, domain.NotFoundError("fake.UploadFile", path)
	}
	return pinned("QmImage"), nil
}

func (p *fakePinning) UploadJSON(ctx context.Context, document any, label string) (domain.PinnedObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jsonCalls++
	if md, ok := document.(*domain.NFTMetadata); ok {
		p.documents = append(p.documents, *md)
	}
	p.labels = append(p.labels, label)
	if p.jsonErr != nil {
		return domain.PinnedObject{}, p.jsonErr
	}
	return pinned("QmMeta"), nil
}

func pinned(cid string) domain.PinnedObject {
	return domain.PinnedObject{CID: cid, URI: "ipfs://" + cid, GatewayURL: "https://gateway.pinata.cloud/ipfs/" + cid}
}

type fakeMinter struct {
	mu       sync.Mutex
	address  common.Address
	network  string
	fail     string
	requests []domain.MintRequest
}

func newFakeMinter() *fakeMinter {
	return &fakeMinter{address: common.HexToAddress("0x00000000000000000000000000000000000000aa"), network: "sepolia"}
}

func (m *fakeMinter) Mint(ctx context.Context, req domain.MintRequest) domain.MintOutcome {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	out := domain.MintOutcome{
		Recipient: req.Recipient,
		TokenURI:  req.TokenURI,
		Network:   req.Network,
	}
	if m.fail != "" {
		out.Error = m.fail
		out.ErrorKind = domain.KindChain
		return out
	}
	out.Success = true
	out.TokenID = big.NewInt(3)
	out.TokenIDSource = domain.TokenIDFromEvent
	out.TransactionHash = "0xabc"
	return out
}

func (m *fakeMinter) Address() common.Address { return m.address }
func (m *fakeMinter) DefaultNetwork() string  { return m.network }

func (m *fakeMinter) lastRequest(t *testing.T) domain.MintRequest {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("minter was never called")
	}
	return m.requests[len(m.requests)-1]
}
