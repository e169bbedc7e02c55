package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/go-resty/resty/v2"
)

// PinningProvider pins content to IPFS and reports its CID-based addresses.
type PinningProvider interface {
	UploadFile(ctx context.Context, path string) (domain.PinnedObject, error)
	UploadJSON(ctx context.Context, document any, label string) (domain.PinnedObject, error)
}

type PinataConfig struct {
	JWT        string
	BaseURL    string
	GatewayURL string
	Timeout    time.Duration
}

type pinataProvider struct {
	client  *resty.Client
	gateway string
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func NewPinataProvider(cfg PinataConfig) (PinningProvider, error) {
	if strings.TrimSpace(cfg.JWT) == "" {
		return nil, domain.ConfigurationError("pinata", "PINATA_JWT is not set")
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetAuthToken(cfg.JWT).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &pinataProvider{client: client, gateway: strings.TrimSuffix(cfg.GatewayURL, "/")}, nil
}

func (p *pinataProvider) UploadFile(ctx context.Context, path string) (domain.PinnedObject, error) {
	const op = "pinata.UploadFile"
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.PinnedObject{}, domain.NotFoundError(op, "file not found: "+path)
		}
		return domain.PinnedObject{}, domain.NewError(domain.KindNotFound, op, "file not readable: "+path, err)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetFile("file", path).
		SetResult(&pinResponse{}).
		Post("/pinning/pinFileToIPFS")
	return p.pinned(op, resp, err)
}

func (p *pinataProvider) UploadJSON(ctx context.Context, document any, label string) (domain.PinnedObject, error) {
	const op = "pinata.UploadJSON"
	body := map[string]any{
		"pinataContent":  document,
		"pinataMetadata": map[string]string{"name": label},
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&pinResponse{}).
		Post("/pinning/pinJSONToIPFS")
	return p.pinned(op, resp, err)
}

func (p *pinataProvider) pinned(op string, resp *resty.Response, err error) (domain.PinnedObject, error) {
	if err != nil {
		return domain.PinnedObject{}, domain.TransportError(op, err, "")
	}
	if resp.IsError() {
		return domain.PinnedObject{}, domain.TransportError(op, fmt.Errorf("status %d", resp.StatusCode()), strings.TrimSpace(resp.String()))
	}
	out, _ := resp.Result().(*pinResponse)
	if out == nil || out.IpfsHash == "" {
		return domain.PinnedObject{}, domain.TransportError(op, errors.New("response missing IpfsHash"), strings.TrimSpace(resp.String()))
	}
	return p.object(out.IpfsHash), nil
}

func (p *pinataProvider) object(cid string) domain.PinnedObject {
	return domain.PinnedObject{
		CID:        cid,
		URI:        "ipfs://" + cid,
		GatewayURL: p.gateway + "/ipfs/" + cid,
	}
}
