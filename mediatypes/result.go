package mediatypes

import "encoding/json"

// JobResult is a tagged union of per-kind result payloads. Exactly one
// variant matching Kind is populated after Decode; Raw always carries the
// payload as received.
type JobResult struct {
	// Kind selects the populated variant
	Kind JobKind

	// Split holds the stem-separation result
	Split *SplitResult

	// Merge holds the mux result
	Merge *MergeResult

	// Transcribe holds the transcription result
	Transcribe *TranscribeResult

	// Rename holds the bulk-rename result
	Rename *RenameResult

	// Raw is the undecoded payload
	Raw json.RawMessage
}

// SplitResult is the payload of a finished split job: one object per stem.
type SplitResult struct {
	Filename string               `json:"filename"`
	Stems    map[string]ObjectRef `json:"results"`
}

// MergeResult is the payload of a finished merge job.
type MergeResult struct {
	Video  string    `json:"video"`
	Audio  string    `json:"audio"`
	Output ObjectRef `json:"result"`
}

// TranscribeResult is the payload of a finished transcribe job. When the
// transcription provider is not configured the worker returns only the
// extracted audio and a warning.
type TranscribeResult struct {
	Filename string     `json:"filename"`
	Subtitle *ObjectRef `json:"srt,omitempty"`
	AudioURL string     `json:"audio_url,omitempty"`
	Warning  string     `json:"warning,omitempty"`
}

// RenameResult is the payload of a finished rename job.
type RenameResult struct {
	DryRun  bool            `json:"dryRun"`
	Mapping []RenameMapping `json:"mapping"`
}

// Decode unmarshals Raw into the variant selected by kind and records the
// kind on the result. Raw is left untouched so callers can still inspect
// fields the variant schema does not cover.
func (r *JobResult) Decode(kind JobKind) error {
	r.Kind = kind
	if len(r.Raw) == 0 {
		return nil
	}
	switch kind {
	case JobSplit:
		v := &SplitResult{}
		if err := json.Unmarshal(r.Raw, v); err != nil {
			return err
		}
		r.Split = v
	case JobMerge:
		v := &MergeResult{}
		if err := json.Unmarshal(r.Raw, v); err != nil {
			return err
		}
		r.Merge = v
	case JobTranscribe:
		v := &TranscribeResult{}
		if err := json.Unmarshal(r.Raw, v); err != nil {
			return err
		}
		r.Transcribe = v
	case JobRename:
		v := &RenameResult{}
		if err := json.Unmarshal(r.Raw, v); err != nil {
			return err
		}
		r.Rename = v
	}
	return nil
}
