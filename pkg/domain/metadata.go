package domain

// Attribute is one marketplace trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// NFTMetadata follows the OpenSea metadata layout plus a "prompt" field kept for provenance.
// Field order is the serialized key order.
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"` // local path until the image is pinned, then ipfs://<cid>
	Prompt      string      `json:"prompt"`
	Attributes  []Attribute `json:"attributes"`
	ExternalURL string      `json:"external_url,omitempty"`
	MetadataURI string      `json:"metadata_uri,omitempty"`
}

func BuildMetadata(name, description, imageRef, prompt string, attributes []Attribute, externalURL string) NFTMetadata {
	attrs := make([]Attribute, 0, len(attributes))
	attrs = append(attrs, attributes...)
	return NFTMetadata{
		Name:        name,
		Description: description,
		Image:       imageRef,
		Prompt:      prompt,
		Attributes:  attrs,
		ExternalURL: externalURL,
	}
}

// ApplyOverrides replaces name and description with non-empty caller values.
func (m *NFTMetadata) ApplyOverrides(name, description string) {
	if name != "" {
		m.Name = name
	}
	if description != "" {
		m.Description = description
	}
}
