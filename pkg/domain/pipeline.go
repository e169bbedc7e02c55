package domain

import (
	"encoding"
	"time"
)

type PipelineState string

const (
	StateGenerating PipelineState = "GENERATING"
	StateUploading  PipelineState = "UPLOADING"
	StateMinting    PipelineState = "MINTING"
	StateDone       PipelineState = "DONE"
	StateFailed     PipelineState = "FAILED"
)

var (
	_ encoding.TextMarshaler = PipelineState("")
)

func (s PipelineState) MarshalText() ([]byte, error) { return []byte(string(s)), nil }

// Terminal reports whether no further transition is possible.
func (s PipelineState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition encodes GENERATING -> UPLOADING -> MINTING -> DONE with FAILED reachable from the
// three working states.
func (s PipelineState) CanTransition(to PipelineState) bool {
	switch s {
	case StateGenerating:
		return to == StateUploading || to == StateFailed
	case StateUploading:
		return to == StateMinting || to == StateFailed
	case StateMinting:
		return to == StateDone || to == StateFailed
	}
	return false
}

type PipelineRequest struct {
	Prompt      string
	Name        string
	Description string
	Recipient   string
	Network     string
}

type PipelineResult struct {
	RunID       string            `json:"runId"`
	State       PipelineState     `json:"state"`
	FailedStage PipelineState     `json:"failedStage,omitempty"`
	Generation  *GenerationResult `json:"generation,omitempty"`
	Upload      *UploadResult     `json:"upload,omitempty"`
	Mint        *MintOutcome      `json:"mint,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrorKind   ErrorKind         `json:"errorKind,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func (r PipelineResult) Succeeded() bool { return r.State == StateDone }
