package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/osvaldoandrade/nftminter/internal/metrics"
	"github.com/osvaldoandrade/nftminter/pkg/domain"
	"github.com/osvaldoandrade/nftminter/pkg/persistence"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var recipientPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Minter is the chain-side dependency of the pipeline. *chain.Minter implements it.
type Minter interface {
	Mint(ctx context.Context, req domain.MintRequest) domain.MintOutcome
	Address() common.Address
	DefaultNetwork() string
}

type PipelineService interface {
	// Run drives one request through generate, upload and mint, stopping at the first failed stage.
	Run(ctx context.Context, req domain.PipelineRequest) domain.PipelineResult
	Get(ctx context.Context, runID string) (*domain.PipelineResult, error)
}

type pipelineService struct {
	generation GenerationService
	storage    StorageService
	minter     Minter
	runs       persistence.RunStorage
	logger     *slog.Logger
	now        func() time.Time
}

func NewPipelineService(generation GenerationService, storage StorageService, minter Minter, runs persistence.RunStorage, logger *slog.Logger, now func() time.Time) PipelineService {
	if now == nil {
		now = time.Now
	}
	return &pipelineService{generation: generation, storage: storage, minter: minter, runs: runs, logger: logger, now: now}
}

// ResolveRecipient returns candidate when it is a 0x-prefixed 40-hex address, otherwise fallback.
func ResolveRecipient(candidate string, fallback common.Address) string {
	candidate = strings.TrimSpace(candidate)
	if recipientPattern.MatchString(candidate) {
		return candidate
	}
	return fallback.Hex()
}

func (s *pipelineService) Run(ctx context.Context, req domain.PipelineRequest) domain.PipelineResult {
	started := s.now()
	run := domain.PipelineResult{
		RunID:     uuid.NewString(),
		State:     domain.StateGenerating,
		StartedAt: started,
		UpdatedAt: started,
	}
	logger := s.logger.With("runId", run.RunID)

	ctx, span := otel.Tracer("nftminter/pipeline").Start(ctx, "nftminter.pipeline.run",
		trace.WithAttributes(attribute.String("nftminter.run_id", run.RunID)),
	)
	defer span.End()

	s.save(ctx, run)
	logger.Info("pipeline started", "prompt", req.Prompt, "network", req.Network)

	fail := func(err error) domain.PipelineResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		run.FailedStage = run.State
		run.Error = err.Error()
		run.ErrorKind = domain.KindOf(err)
		s.advance(ctx, &run, domain.StateFailed)
		logger.Error("pipeline failed", "stage", run.FailedStage, "err", err)
		return run
	}

	// generate
	stageStart := s.now()
	gen := s.generation.Generate(ctx, req.Prompt, req.Name)
	run.Generation = &gen
	if !gen.Success {
		s.observeStage(domain.StateGenerating, stageStart, false)
		return fail(stageError(gen.Error, gen.ErrorKind))
	}
	if err := s.generation.ApplyOverrides(ctx, &gen, req.Name, req.Description); err != nil {
		s.observeStage(domain.StateGenerating, stageStart, false)
		return fail(err)
	}
	s.observeStage(domain.StateGenerating, stageStart, true)
	s.advance(ctx, &run, domain.StateUploading)

	// upload
	stageStart = s.now()
	upload, err := s.storage.UploadComplete(ctx, gen.ImagePath, gen.Metadata)
	if err != nil {
		s.observeStage(domain.StateUploading, stageStart, false)
		return fail(err)
	}
	run.Upload = &upload
	s.observeStage(domain.StateUploading, stageStart, true)
	s.advance(ctx, &run, domain.StateMinting)

	// mint
	network := strings.TrimSpace(req.Network)
	if network == "" {
		network = s.minter.DefaultNetwork()
	}
	recipient := ResolveRecipient(req.Recipient, s.minter.Address())
	if recipient != strings.TrimSpace(req.Recipient) {
		logger.Info("recipient missing or invalid, minting to own address", "given", req.Recipient, "recipient", recipient)
	}

	stageStart = s.now()
	outcome := s.minter.Mint(ctx, domain.MintRequest{Network: network, Recipient: recipient, TokenURI: upload.MetadataURI})
	run.Mint = &outcome
	if !outcome.Success {
		s.observeStage(domain.StateMinting, stageStart, false)
		return fail(stageError(outcome.Error, outcome.ErrorKind))
	}
	s.observeStage(domain.StateMinting, stageStart, true)
	s.advance(ctx, &run, domain.StateDone)

	span.SetAttributes(attribute.String("nftminter.tx_hash", outcome.TransactionHash))
	logger.Info("pipeline done", "tx", outcome.TransactionHash, "tokenId", outcome.TokenID,
		"tokenIdSource", outcome.TokenIDSource, "elapsed", s.now().Sub(started))
	return run
}

func (s *pipelineService) Get(ctx context.Context, runID string) (*domain.PipelineResult, error) {
	if s.runs == nil {
		return nil, domain.NotFoundError("pipeline.Get", "run tracking is disabled")
	}
	run, err := s.runs.Get(ctx, runID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, domain.NotFoundError("pipeline.Get", fmt.Sprintf("run %s not found", runID))
	}
	return run, err
}

func (s *pipelineService) advance(ctx context.Context, run *domain.PipelineResult, to domain.PipelineState) {
	if !run.State.CanTransition(to) {
		s.logger.Error("illegal pipeline transition", "runId", run.RunID, "from", run.State, "to", to)
		return
	}
	run.State = to
	run.UpdatedAt = s.now()
	s.save(ctx, *run)
	if to.Terminal() {
		metrics.PipelineRunsTotal.WithLabelValues(string(to), string(run.FailedStage)).Inc()
	}
}

func (s *pipelineService) save(ctx context.Context, run domain.PipelineResult) {
	if s.runs == nil {
		return
	}
	// a store failure never fails the run
	if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("run tracking failed", "runId", run.RunID, "err", err)
	}
}

func (s *pipelineService) observeStage(stage domain.PipelineState, start time.Time, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failed"
	}
	metrics.StageDurationSeconds.WithLabelValues(string(stage), outcome).Observe(s.now().Sub(start).Seconds())
}

// stageError rebuilds a structured error from a stage's result record.
func stageError(message string, kind domain.ErrorKind) error {
	if kind == "" {
		kind = domain.KindTransport
	}
	return &domain.Error{Kind: kind, Message: message}
}
