package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/osvaldoandrade/nftminter/internal/metrics"
	"github.com/osvaldoandrade/nftminter/internal/providers"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type StorageService interface {
	// UploadComplete pins the image, points metadata.Image at it, then pins the metadata document.
	// metadata is modified in place. A failed image upload never reaches the metadata upload.
	UploadComplete(ctx context.Context, imagePath string, metadata *domain.NFTMetadata) (domain.UploadResult, error)
}

type storageService struct {
	pinning providers.PinningProvider
	store   providers.ArtifactStore
	logger  *slog.Logger
}

func NewStorageService(pinning providers.PinningProvider, store providers.ArtifactStore, logger *slog.Logger) StorageService {
	return &storageService{pinning: pinning, store: store, logger: logger}
}

func (s *storageService) UploadComplete(ctx context.Context, imagePath string, metadata *domain.NFTMetadata) (domain.UploadResult, error) {
	if metadata == nil {
		return domain.UploadResult{}, domain.NewError(domain.KindInvalidInput, "storage.UploadComplete", "metadata is required", nil)
	}
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	ctx, span := otel.Tracer("nftminter/storage").Start(ctx, "nftminter.storage.upload_complete",
		trace.WithAttributes(attribute.String("nftminter.artifact", stem)),
	)
	defer span.End()

	image, err := s.pinning.UploadFile(ctx, imagePath)
	if err != nil {
		metrics.UploadTotal.WithLabelValues("file", "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("image upload failed", "path", imagePath, "err", err)
		return domain.UploadResult{}, err
	}
	metrics.UploadTotal.WithLabelValues("file", "success").Inc()
	s.logger.Info("image pinned", "cid", image.CID, "gateway", image.GatewayURL)

	metadata.Image = image.URI

	doc, err := s.pinning.UploadJSON(ctx, metadata, stem+".json")
	if err != nil {
		metrics.UploadTotal.WithLabelValues("json", "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("metadata upload failed", "imageCid", image.CID, "err", err)
		return domain.UploadResult{}, err
	}
	metrics.UploadTotal.WithLabelValues("json", "success").Inc()
	s.logger.Info("metadata pinned", "cid", doc.CID, "gateway", doc.GatewayURL)

	metadata.MetadataURI = doc.URI
	if s.store != nil {
		if _, err := s.store.SaveMetadata(ctx, stem, *metadata); err != nil {
			s.logger.Warn("local metadata rewrite failed", "stem", stem, "err", err)
		}
	}

	span.SetAttributes(
		attribute.String("nftminter.image_cid", image.CID),
		attribute.String("nftminter.metadata_cid", doc.CID),
	)
	return domain.NewUploadResult(image, doc), nil
}
