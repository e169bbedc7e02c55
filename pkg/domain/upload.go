package domain

// PinnedObject is what the pinning service returns for a single upload.
type PinnedObject struct {
	CID        string `json:"cid"`
	URI        string `json:"uri"`
	GatewayURL string `json:"gatewayUrl"`
}

type UploadResult struct {
	ImageCID           string `json:"imageCid"`
	ImageURI           string `json:"imageUri"`
	ImageGatewayURL    string `json:"imageGatewayUrl"`
	MetadataCID        string `json:"metadataCid"`
	MetadataURI        string `json:"metadataUri"`
	MetadataGatewayURL string `json:"metadataGatewayUrl"`
}

func NewUploadResult(image, metadata PinnedObject) UploadResult {
	return UploadResult{
		ImageCID:           image.CID,
		ImageURI:           image.URI,
		ImageGatewayURL:    image.GatewayURL,
		MetadataCID:        metadata.CID,
		MetadataURI:        metadata.URI,
		MetadataGatewayURL: metadata.GatewayURL,
	}
}
