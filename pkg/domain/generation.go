package domain

// Chunk is one element of a model's streamed response: commentary text, inline bytes, or both empty.
type Chunk struct {
	Text     string
	Data     []byte
	MimeType string
}

func (c Chunk) HasImage() bool { return len(c.Data) > 0 }

type GenerationResult struct {
	Success      bool         `json:"success"`
	ImageBytes   []byte       `json:"-"`
	MimeType     string       `json:"mimeType,omitempty"`
	Prompt       string       `json:"prompt"`
	Error        string       `json:"error,omitempty"`
	ErrorKind    ErrorKind    `json:"errorKind,omitempty"`
	ImagePath    string       `json:"imagePath,omitempty"`
	MetadataPath string       `json:"metadataPath,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	Metadata     *NFTMetadata `json:"metadata,omitempty"`
}

func FailedGeneration(prompt string, err error) GenerationResult {
	return GenerationResult{Success: false, Prompt: prompt, Error: err.Error(), ErrorKind: KindOf(err)}
}

type BatchResult struct {
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Results    []GenerationResult `json:"results"`
}

func NewBatchResult(results []GenerationResult) BatchResult {
	out := BatchResult{Total: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	return out
}
