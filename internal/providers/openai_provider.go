package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
	"net/http"
	"strings"

	"github.com/osvaldoandrade/nftminter/pkg/domain"

	openai "github.com/sashabaranov/go-openai"
)

type openAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel builds an image model on the images endpoint. baseURL is optional.
func NewOpenAIModel(apiKey, model, baseURL string) (ImageModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ConfigurationError("openai", "OPENAI_API_KEY is not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIModel{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *openAIModel) Label() string { return "OpenAI " + o.model }

// GenerateStream issues one request; the images endpoint does not stream, so the sequence carries
// at most one chunk.
func (o *openAIModel) GenerateStream(ctx context.Context, prompt string) iter.Seq2[domain.Chunk, error] {
	return func(yield func(domain.Chunk, error) bool) {
		resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          o.model,
			N:              1,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest && apiErr.Code == "content_policy_violation" {
				// rejected prompts end the stream without data, like a refusal
				return
			}
			yield(domain.Chunk{}, domain.TransportError("openai.CreateImage", err, ""))
			return
		}
		for _, img := range resp.Data {
			if img.RevisedPrompt != "" {
				if !yield(domain.Chunk{Text: img.RevisedPrompt}, nil) {
					return
				}
			}
			if img.B64JSON == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(img.B64JSON)
			if err != nil {
				yield(domain.Chunk{}, domain.NewError(domain.KindTransport, "openai.CreateImage", "invalid base64 image", err))
				return
			}
			if !yield(domain.Chunk{Data: data, MimeType: "image/png"}, nil) {
				return
			}
		}
	}
}
