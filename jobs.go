package mediakit

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/mediatypes"
)

// Rename request defaults.
const (
	defaultRenameStartIndex = 1
	defaultRenamePad        = 2
)

// SubmitSplit submits a stem separation job for an uploaded file.
func (c *Client) SubmitSplit(ctx context.Context, req mediatypes.SplitRequest) (string, error) {
	if req.SourceURL == "" {
		return "", errors.NewError("submitSplit", errors.ErrInvalidInput).
			WithMessage("empty source url")
	}
	return c.submit(ctx, mediatypes.JobSplit, backend.SplitPayload{
		TusURL: req.SourceURL,
	})
}

// SubmitMerge submits a mux job combining one video and one audio upload.
// Both references are validated before any network traffic.
func (c *Client) SubmitMerge(ctx context.Context, req mediatypes.MergeRequest) (string, error) {
	if req.VideoURL == "" {
		return "", errors.NewError("submitMerge", errors.ErrInvalidInput).
			WithMessage("empty video url")
	}
	if req.AudioURL == "" {
		return "", errors.NewError("submitMerge", errors.ErrInvalidInput).
			WithMessage("empty audio url")
	}
	return c.submit(ctx, mediatypes.JobMerge, backend.MergePayload{
		VideoTusURL: req.VideoURL,
		AudioTusURL: req.AudioURL,
		OffsetSec:   req.OffsetSec,
	})
}

// SubmitTranscribe submits a transcription job. Target languages default to
// ["original"], transcribing in the source language.
func (c *Client) SubmitTranscribe(ctx context.Context, req mediatypes.TranscribeRequest) (string, error) {
	if req.SourceURL == "" {
		return "", errors.NewError("submitTranscribe", errors.ErrInvalidInput).
			WithMessage("empty source url")
	}
	langs := req.TargetLanguages
	if len(langs) == 0 {
		langs = []string{"original"}
	}
	return c.submit(ctx, mediatypes.JobTranscribe, backend.TranscribePayload{
		TusURL:          req.SourceURL,
		TargetLanguages: langs,
	})
}

// SubmitRename submits a bulk rename job over existing result objects.
func (c *Client) SubmitRename(ctx context.Context, req mediatypes.RenameRequest) (string, error) {
	req, err := normalizeRename("submitRename", req)
	if err != nil {
		return "", err
	}
	return c.submit(ctx, mediatypes.JobRename, backend.RenamePayload{
		Keys:       req.Keys,
		Pattern:    req.Pattern,
		StartIndex: req.StartIndex,
		Pad:        req.Pad,
		DryRun:     req.DryRun,
	})
}

// PreviewRename expands the rename pattern locally, producing the same
// mapping a dry-run job would without contacting the backend. Each key's
// directory is preserved; {index}, {basename} and {ext} are substituted per
// key in order.
func (c *Client) PreviewRename(req mediatypes.RenameRequest) ([]mediatypes.RenameMapping, error) {
	req, err := normalizeRename("previewRename", req)
	if err != nil {
		return nil, err
	}
	mapping := make([]mediatypes.RenameMapping, len(req.Keys))
	for i, key := range req.Keys {
		dir := path.Dir(key)
		base := path.Base(key)
		ext := path.Ext(base)
		stem := strings.TrimSuffix(base, ext)

		name := req.Pattern
		name = strings.ReplaceAll(name, "{index}", fmt.Sprintf("%0*d", req.Pad, req.StartIndex+i))
		name = strings.ReplaceAll(name, "{basename}", stem)
		name = strings.ReplaceAll(name, "{ext}", ext)

		to := name
		if dir != "." {
			to = dir + "/" + name
		}
		mapping[i] = mediatypes.RenameMapping{From: key, To: to}
	}
	return mapping, nil
}

func normalizeRename(op string, req mediatypes.RenameRequest) (mediatypes.RenameRequest, error) {
	if len(req.Keys) == 0 {
		return req, errors.NewError(op, errors.ErrInvalidInput).
			WithMessage("no keys to rename")
	}
	if req.Pattern == "" {
		return req, errors.NewError(op, errors.ErrInvalidInput).
			WithMessage("empty rename pattern")
	}
	if req.StartIndex <= 0 {
		req.StartIndex = defaultRenameStartIndex
	}
	if req.Pad <= 0 {
		req.Pad = defaultRenamePad
	}
	return req, nil
}

// submit posts one job and records its kind for later result decoding.
// Submission is a single call; a failed submission is reported, never
// retried.
func (c *Client) submit(ctx context.Context, kind mediatypes.JobKind, payload any) (string, error) {
	id, err := c.api.SubmitJob(ctx, kind, payload)
	if err != nil {
		return "", errors.NewError("submit"+titleKind(kind),
			fmt.Errorf("%w: %w", errors.ErrJobSubmission, err))
	}
	c.jobs.Remember(id, kind)
	c.logger.Info("job submitted", "kind", kind, "job", id)
	return id, nil
}

func titleKind(kind mediatypes.JobKind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TrackJob starts polling the job until it reaches a terminal state and
// returns a channel of status snapshots. The channel closes after the
// terminal snapshot, after CancelTracking, or when ctx expires.
func (c *Client) TrackJob(ctx context.Context, jobID string, opts ...mediatypes.TrackOption) (<-chan mediatypes.JobSnapshot, error) {
	cfg := mediatypes.TrackOptionConfig{
		Interval:     c.cfg.PollInterval,
		FailureLimit: c.cfg.PollFailureLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return c.jobs.Track(ctx, jobID, &cfg)
}

// CancelTracking stops polling jobID. Other tracked jobs are unaffected and
// no further snapshot for jobID is recorded or delivered.
func (c *Client) CancelTracking(jobID string) {
	c.jobs.Cancel(jobID)
}

// JobSnapshot returns the latest observed status for a tracked job.
func (c *Client) JobSnapshot(jobID string) (mediatypes.JobSnapshot, bool) {
	return c.jobs.Snapshot(jobID)
}

// TrackedJobs returns the ids of all jobs the client has observed.
func (c *Client) TrackedJobs() []string {
	return c.jobs.Jobs()
}
