package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/osvaldoandrade/nftminter/internal/metrics"
	"github.com/osvaldoandrade/nftminter/internal/providers"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidPrompt is wrapped by the INVALID_INPUT error returned for prompts below the minimum length.
var ErrInvalidPrompt = errors.New("invalid prompt")

const refusalMessage = "No image data received from the model. The prompt might be too vague or inappropriate. " +
	"Try a more descriptive prompt like 'A golden Bitcoin coin floating in space with stars'."

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9_\-]`)

type GenerationService interface {
	// Generate never returns an error; failures are reported inside the result.
	Generate(ctx context.Context, prompt, filenameHint string) domain.GenerationResult
	// GenerateBatch only errors on an invalid batch size. Item failures stay in their result.
	GenerateBatch(ctx context.Context, prompts []string) (domain.BatchResult, error)
	// ApplyOverrides replaces name/description on a successful result and rewrites its metadata file.
	ApplyOverrides(ctx context.Context, result *domain.GenerationResult, name, description string) error
}

type GenerationConfig struct {
	Provider         string
	MinPromptLength  int
	BatchMaxPrompts  int
	BatchConcurrency int
}

type generationService struct {
	model  providers.ImageModel
	store  providers.ArtifactStore
	cfg    GenerationConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewGenerationService(model providers.ImageModel, store providers.ArtifactStore, cfg GenerationConfig, logger *slog.Logger, now func() time.Time) GenerationService {
	if cfg.MinPromptLength <= 0 {
		cfg.MinPromptLength = 3
	}
	if cfg.BatchMaxPrompts <= 0 {
		cfg.BatchMaxPrompts = 10
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	if now == nil {
		now = time.Now
	}
	return &generationService{model: model, store: store, cfg: cfg, logger: logger, now: now}
}

func (s *generationService) Generate(ctx context.Context, prompt, filenameHint string) domain.GenerationResult {
	prompt = strings.TrimSpace(prompt)

	ctx, span := otel.Tracer("nftminter/generation").Start(ctx, "nftminter.generation.generate",
		trace.WithAttributes(
			attribute.String("nftminter.provider", s.cfg.Provider),
			attribute.Int("nftminter.prompt_length", len(prompt)),
		),
	)
	defer span.End()

	fail := func(err error) domain.GenerationResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.GenerationTotal.WithLabelValues(s.cfg.Provider, outcomeFor(err)).Inc()
		s.logger.Warn("image generation failed", "prompt", prompt, "err", err)
		return domain.FailedGeneration(prompt, err)
	}

	if len([]rune(prompt)) < s.cfg.MinPromptLength {
		return fail(domain.NewError(domain.KindInvalidInput, "generation.Generate",
			fmt.Sprintf("prompt must be at least %d characters", s.cfg.MinPromptLength), ErrInvalidPrompt))
	}

	augmented := fmt.Sprintf("Create a detailed, high-quality digital artwork image of: %s. "+
		"Style: digital art, vibrant colors, professional NFT artwork.", prompt)

	var image domain.Chunk
	for chunk, err := range s.model.GenerateStream(ctx, augmented) {
		if err != nil {
			if domain.KindOf(err) == "" {
				err = domain.TransportError("generation.Generate", err, "")
			}
			return fail(err)
		}
		if chunk.HasImage() {
			image = chunk
			break
		}
		if chunk.Text != "" {
			s.logger.Debug("model commentary", "text", chunk.Text)
		}
	}
	if !image.HasImage() {
		return fail(domain.NewError(domain.KindModelRefusal, "", refusalMessage, nil))
	}

	stem := s.filenameStem(prompt, filenameHint)
	imagePath, err := s.store.SaveImage(ctx, stem, image.MimeType, image.Data)
	if err != nil {
		return fail(err)
	}
	// the store may have suffixed the stem to avoid a collision
	filename := filepath.Base(imagePath)
	stem = strings.TrimSuffix(filename, filepath.Ext(filename))

	metadata := domain.BuildMetadata(
		"AI Generated NFT - "+stem,
		fmt.Sprintf("AI-generated artwork created from prompt: '%s'", prompt),
		imagePath,
		prompt,
		[]domain.Attribute{
			{TraitType: "Generation Method", Value: s.model.Label()},
			{TraitType: "Created", Value: s.now().UTC().Format(time.RFC3339)},
		},
		"",
	)
	metadataPath, err := s.store.SaveMetadata(ctx, stem, metadata)
	if err != nil {
		return fail(err)
	}

	metrics.GenerationTotal.WithLabelValues(s.cfg.Provider, "success").Inc()
	span.SetAttributes(attribute.String("nftminter.filename", filename))
	s.logger.Info("image generated", "filename", filename, "mimeType", image.MimeType, "bytes", len(image.Data))

	return domain.GenerationResult{
		Success:      true,
		ImageBytes:   image.Data,
		MimeType:     image.MimeType,
		Prompt:       prompt,
		ImagePath:    imagePath,
		MetadataPath: metadataPath,
		Filename:     filename,
		Metadata:     &metadata,
	}
}

func (s *generationService) GenerateBatch(ctx context.Context, prompts []string) (domain.BatchResult, error) {
	if len(prompts) == 0 || len(prompts) > s.cfg.BatchMaxPrompts {
		return domain.BatchResult{}, domain.NewError(domain.KindInvalidInput, "generation.GenerateBatch",
			fmt.Sprintf("batch must contain between 1 and %d prompts", s.cfg.BatchMaxPrompts), nil)
	}

	results := make([]domain.GenerationResult, len(prompts))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, p := range prompts {
		g.Go(func() error {
			results[i] = s.Generate(ctx, p, "")
			return nil
		})
	}
	_ = g.Wait()

	out := domain.NewBatchResult(results)
	s.logger.Info("batch generation complete", "total", out.Total, "successful", out.Successful, "failed", out.Failed)
	return out, nil
}

func (s *generationService) ApplyOverrides(ctx context.Context, result *domain.GenerationResult, name, description string) error {
	if result == nil || !result.Success || result.Metadata == nil {
		return domain.NewError(domain.KindInvalidInput, "generation.ApplyOverrides", "no generated metadata to update", nil)
	}
	if name == "" && description == "" {
		return nil
	}
	result.Metadata.ApplyOverrides(name, description)
	stem := strings.TrimSuffix(filepath.Base(result.MetadataPath), ".json")
	path, err := s.store.SaveMetadata(ctx, stem, *result.Metadata)
	if err != nil {
		return err
	}
	result.MetadataPath = path
	return nil
}

// filenameStem derives the artifact name: a sanitized hint, or nft_<timestamp>_<md5 prefix>.
func (s *generationService) filenameStem(prompt, hint string) string {
	if hint = SanitizeFilename(hint); hint != "" {
		return hint
	}
	sum := md5.Sum([]byte(prompt))
	return fmt.Sprintf("nft_%s_%s", s.now().Format("20060102_150405"), hex.EncodeToString(sum[:])[:8])
}

// SanitizeFilename lower-cases name, replaces spaces with underscores and drops anything outside [a-z0-9_-].
func SanitizeFilename(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	return unsafeFilenameChars.ReplaceAllString(name, "")
}

func outcomeFor(err error) string {
	switch domain.KindOf(err) {
	case domain.KindModelRefusal:
		return "refused"
	case domain.KindInvalidInput:
		return "invalid"
	}
	return "failed"
}
