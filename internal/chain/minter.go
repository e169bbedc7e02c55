package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/osvaldoandrade/nftminter/internal/metrics"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

type Network struct {
	RPCURL  string
	ChainID int64
}

type Config struct {
	PrivateKey         string
	ContractAddress    string
	DefaultNetwork     string
	Networks           map[string]Network
	GasHeadroomPercent int
	ReceiptTimeout     time.Duration
}

const dialTimeout = 30 * time.Second

type Option func(*Minter)

func WithDialer(d Dialer) Option { return func(m *Minter) { m.dial = d } }

func WithNonceLocker(l NonceLocker) Option { return func(m *Minter) { m.locker = l } }

// WithPollUnit scales the receipt polling backoff; one unit is the first poll delay.
func WithPollUnit(d time.Duration) Option { return func(m *Minter) { m.pollUnit = d } }

// Minter submits mintNFT transactions from one signing credential.
type Minter struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	contract common.Address
	abi      abi.ABI

	defaultNetwork string
	networks       map[string]Network
	headroom       int
	receiptTimeout time.Duration
	pollUnit       time.Duration

	dial   Dialer
	locker NonceLocker
	logger *slog.Logger

	// one connection per network, dialed on first use
	mu    sync.Mutex
	conns map[string]*connection
	dials singleflight.Group
}

type connection struct {
	network string
	backend Backend
	chainID *big.Int
}

func NewMinter(cfg Config, logger *slog.Logger, opts ...Option) (*Minter, error) {
	const op = "chain.NewMinter"
	if logger == nil {
		logger = slog.Default()
	}
	pk := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x")
	if pk == "" {
		return nil, domain.ConfigurationError(op, "PRIVATE_KEY is not set")
	}
	key, err := crypto.HexToECDSA(pk)
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration, op, "PRIVATE_KEY is not a valid secp256k1 key", err)
	}
	if strings.TrimSpace(cfg.ContractAddress) == "" {
		return nil, domain.ConfigurationError(op, "CONTRACT_ADDRESS is not set")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, domain.ConfigurationError(op, "CONTRACT_ADDRESS is not a valid address")
	}
	networks := map[string]Network{}
	for name, n := range cfg.Networks {
		if strings.TrimSpace(n.RPCURL) != "" {
			networks[name] = n
		}
	}
	if len(networks) == 0 {
		return nil, domain.ConfigurationError(op, "no network has an RPC URL")
	}
	if cfg.DefaultNetwork != "" {
		if _, ok := networks[cfg.DefaultNetwork]; !ok {
			return nil, domain.ConfigurationError(op, fmt.Sprintf("default network %q has no RPC URL", cfg.DefaultNetwork))
		}
	}
	headroom := cfg.GasHeadroomPercent
	if headroom <= 0 {
		headroom = 20
	}
	receiptTimeout := cfg.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = 5 * time.Minute
	}

	m := &Minter{
		key:            key,
		address:        crypto.PubkeyToAddress(key.PublicKey),
		contract:       common.HexToAddress(cfg.ContractAddress),
		abi:            ContractABI(),
		defaultNetwork: cfg.DefaultNetwork,
		networks:       networks,
		headroom:       headroom,
		receiptTimeout: receiptTimeout,
		pollUnit:       time.Second,
		dial:           DialEthClient,
		locker:         NewLocalNonceLocker(),
		logger:         logger,
		conns:          map[string]*connection{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Address is the account derived from the signing key.
func (m *Minter) Address() common.Address { return m.address }

func (m *Minter) DefaultNetwork() string { return m.defaultNetwork }

func (m *Minter) ContractAddress() common.Address { return m.contract }

// Close drops every open connection. In-flight calls on a closed backend fail with a chain error.
func (m *Minter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.conns {
		c.backend.Close()
		delete(m.conns, name)
	}
}

// connect returns the connection for network, dialing it once. Waiting for another caller's dial
// stops when ctx is done.
func (m *Minter) connect(ctx context.Context, network string) (*connection, error) {
	n, ok := m.networks[network]
	if !ok {
		return nil, domain.ConfigurationError("chain.connect", fmt.Sprintf("network %q is not configured", network))
	}
	m.mu.Lock()
	c, ok := m.conns[network]
	m.mu.Unlock()
	if ok {
		return c, nil
	}

	ch := m.dials.DoChan(network, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dialTimeout)
		defer cancel()
		return m.dialNetwork(dctx, network, n)
	})
	select {
	case <-ctx.Done():
		return nil, domain.ChainError("chain.connect", fmt.Errorf("connect %s: %w", network, ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*connection), nil
	}
}

func (m *Minter) dialNetwork(ctx context.Context, network string, n Network) (*connection, error) {
	m.mu.Lock()
	if c, ok := m.conns[network]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	backend, err := m.dial(ctx, n.RPCURL)
	if err != nil {
		return nil, domain.ChainError("chain.connect", fmt.Errorf("dial %s: %w", network, err))
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return nil, domain.ChainError("chain.connect", fmt.Errorf("chain id on %s: %w", network, err))
	}
	if n.ChainID != 0 && chainID.Int64() != n.ChainID {
		backend.Close()
		return nil, domain.ChainError("chain.connect", fmt.Errorf("network %s expects chain id %d, rpc reports %s", network, n.ChainID, chainID))
	}
	c := &connection{network: network, backend: backend, chainID: chainID}
	m.mu.Lock()
	m.conns[network] = c
	m.mu.Unlock()
	m.logger.Info("connected to network", "network", network, "chainId", chainID.String())
	return c, nil
}

// Mint submits mintNFT(recipient, tokenURI), waits for one confirmation and recovers the token id.
// Failures come back inside the outcome.
func (m *Minter) Mint(ctx context.Context, req domain.MintRequest) domain.MintOutcome {
	network := req.Network
	if network == "" {
		network = m.defaultNetwork
	}
	out := domain.MintOutcome{
		ContractAddress: m.contract.Hex(),
		Recipient:       req.Recipient,
		TokenURI:        req.TokenURI,
		Network:         network,
		TokenIDSource:   domain.TokenIDUnresolved,
	}

	ctx, span := otel.Tracer("nftminter/chain").Start(ctx, "nftminter.chain.mint",
		trace.WithAttributes(
			attribute.String("nftminter.network", network),
			attribute.String("nftminter.recipient", req.Recipient),
		),
	)
	defer span.End()

	fail := func(err error) domain.MintOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.MintTotal.WithLabelValues(network, "failed").Inc()
		m.logger.Error("mint failed", "network", network, "recipient", req.Recipient, "err", err)
		out.Success = false
		out.TokenIDSource = ""
		out.Error = err.Error()
		out.ErrorKind = domain.KindOf(err)
		return out
	}

	if !common.IsHexAddress(req.Recipient) {
		return fail(domain.NewError(domain.KindInvalidInput, "chain.Mint", "invalid recipient address "+req.Recipient, nil))
	}
	recipient := common.HexToAddress(req.Recipient)
	out.Recipient = recipient.Hex()

	conn, err := m.connect(ctx, network)
	if err != nil {
		return fail(err)
	}

	if bal, err := conn.backend.BalanceAt(ctx, m.address, nil); err != nil {
		m.logger.Warn("balance check failed", "address", m.address.Hex(), "err", err)
	} else {
		m.logger.Info("minter balance", "address", m.address.Hex(), "wei", bal.String(), "network", network)
		if bal.Sign() == 0 {
			m.logger.Warn("minter balance is zero; the chain will reject the transaction if gas cannot be paid", "network", network)
		}
	}

	data, err := m.abi.Pack("mintNFT", recipient, req.TokenURI)
	if err != nil {
		return fail(domain.ChainError("chain.Mint", fmt.Errorf("pack mintNFT: %w", err)))
	}

	tx, err := m.submit(ctx, conn, data)
	if err != nil {
		return fail(err)
	}
	out.TransactionHash = tx.Hash().Hex()
	out.ExplorerURL = ExplorerURL(network, out.TransactionHash)
	span.SetAttributes(attribute.String("nftminter.tx_hash", out.TransactionHash))
	m.logger.Info("mint transaction sent", "tx", out.TransactionHash, "nonce", tx.Nonce(), "network", network)

	receipt, err := m.waitMined(ctx, conn.backend, tx.Hash())
	if err != nil {
		return fail(err)
	}
	out.BlockNumber = receipt.BlockNumber.Uint64()
	out.GasUsed = receipt.GasUsed
	if receipt.Status == types.ReceiptStatusFailed {
		return fail(domain.ChainError("chain.Mint", fmt.Errorf("transaction %s reverted in block %d", out.TransactionHash, out.BlockNumber)))
	}

	out.Success = true
	out.TokenID, out.TokenIDSource = m.resolveTokenID(ctx, conn.backend, receipt, recipient)
	metrics.MintTotal.WithLabelValues(network, "success").Inc()
	metrics.TokenIDResolutionTotal.WithLabelValues(string(out.TokenIDSource)).Inc()
	m.logger.Info("nft minted", "tx", out.TransactionHash, "block", out.BlockNumber,
		"tokenId", out.TokenID, "tokenIdSource", out.TokenIDSource, "network", network)
	return out
}

// submit holds the nonce lock from nonce read until the node has accepted the transaction.
func (m *Minter) submit(ctx context.Context, conn *connection, data []byte) (*types.Transaction, error) {
	const op = "chain.submit"
	unlock, err := m.locker.Lock(ctx, conn.chainID.String()+":"+m.address.Hex())
	if err != nil {
		return nil, domain.ChainError(op, err)
	}
	defer unlock()

	b := conn.backend
	nonce, err := b.PendingNonceAt(ctx, m.address)
	if err != nil {
		return nil, domain.ChainError(op, fmt.Errorf("nonce: %w", err))
	}
	gasPrice, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return nil, domain.ChainError(op, fmt.Errorf("gas price: %w", err))
	}
	to := m.contract
	gas, err := b.EstimateGas(ctx, ethereum.CallMsg{From: m.address, To: &to, Data: data})
	if err != nil {
		return nil, domain.ChainError(op, fmt.Errorf("estimate gas: %w", err))
	}
	gas += gas * uint64(m.headroom) / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(conn.chainID), m.key)
	if err != nil {
		return nil, domain.ChainError(op, fmt.Errorf("sign: %w", err))
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return nil, domain.ChainError(op, fmt.Errorf("send: %w", err))
	}
	return signed, nil
}

// TokenDetails reads ownerOf and tokenURI for an existing token.
func (m *Minter) TokenDetails(ctx context.Context, network string, tokenID *big.Int) (domain.TokenDetails, error) {
	const op = "chain.TokenDetails"
	if network == "" {
		network = m.defaultNetwork
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return domain.TokenDetails{}, domain.NewError(domain.KindInvalidInput, op, "token id must be a non-negative integer", nil)
	}
	conn, err := m.connect(ctx, network)
	if err != nil {
		return domain.TokenDetails{}, err
	}

	owner, err := m.call(ctx, conn.backend, "ownerOf", nil, tokenID)
	if err != nil {
		return domain.TokenDetails{}, domain.NewError(domain.KindNotFound, op, fmt.Sprintf("token %s not found", tokenID), err)
	}
	uri, err := m.call(ctx, conn.backend, "tokenURI", nil, tokenID)
	if err != nil {
		return domain.TokenDetails{}, domain.NewError(domain.KindNotFound, op, fmt.Sprintf("token %s has no URI", tokenID), err)
	}
	ownerAddr, ok1 := owner.(common.Address)
	uriStr, ok2 := uri.(string)
	if !ok1 || !ok2 {
		return domain.TokenDetails{}, domain.ChainError(op, errors.New("unexpected return types from contract"))
	}
	return domain.TokenDetails{
		TokenID:         tokenID,
		Owner:           ownerAddr.Hex(),
		TokenURI:        uriStr,
		ContractAddress: m.contract.Hex(),
		Network:         network,
	}, nil
}

// call runs a read-only method and returns its single output.
func (m *Minter) call(ctx context.Context, b Backend, method string, blockNumber *big.Int, args ...any) (any, error) {
	data, err := m.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	to := m.contract
	res, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockNumber)
	if err != nil {
		return nil, err
	}
	vals, err := m.abi.Unpack(method, res)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(vals))
	}
	return vals[0], nil
}
