package domain

import "time"

type SubmissionStatus string

const (
	StatusReceived    SubmissionStatus = "received"
	StatusExtracting  SubmissionStatus = "extracting"
	StatusExtracted   SubmissionStatus = "extracted"
	StatusClassifying SubmissionStatus = "classifying"
	StatusClassified  SubmissionStatus = "classified"
	StatusGenerating  SubmissionStatus = "generating"
	StatusGenerated   SubmissionStatus = "generated"
	StatusPublishing  SubmissionStatus = "publishing"
	StatusPublished   SubmissionStatus = "published"
	StatusFailed      SubmissionStatus = "failed"
	StatusDead        SubmissionStatus = "dead"
)

// IsTerminal reports whether no further pipeline work will happen without an operator retry.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusPublished || s == StatusDead
}

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWeb      Channel = "web"
	ChannelAPI      Channel = "api"
)

// Submission is the unit of pipeline work. Nullable payloads stay set once
// written; only an explicit from-scratch retry clears them.
type Submission struct {
	ID                string             `json:"id"`
	URL               string             `json:"url"`
	SourceType        SourceType         `json:"source_type"`
	Channel           Channel            `json:"channel"`
	Sender            string             `json:"sender,omitempty"`
	HotNews           bool               `json:"hot_news"`
	Status            SubmissionStatus   `json:"status"`
	RetryCount        int                `json:"retry_count"`
	MaxRetries        int                `json:"max_retries"`
	LastStep          SubmissionStatus   `json:"last_step,omitempty"`
	LastError         string             `json:"last_error,omitempty"`
	ExtractedText     *string            `json:"extracted_text,omitempty"`
	Classification    *Classification    `json:"classification,omitempty"`
	GeneratedTutorial *GeneratedTutorial `json:"generated_tutorial,omitempty"`
	TutorialID        *string            `json:"tutorial_id,omitempty"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// SubmissionUpdate is a partial write; nil fields are left untouched.
// ClearPayloads nulls extracted_text, classification and generated_tutorial.
type SubmissionUpdate struct {
	Status            *SubmissionStatus
	LastStep          *SubmissionStatus
	LastError         *string
	RetryCount        *int
	ExtractedText     *string
	Classification    *Classification
	GeneratedTutorial *GeneratedTutorial
	TutorialID        *string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ClearPayloads     bool
}

// Merge overlays non-nil fields of other onto u.
func (u SubmissionUpdate) Merge(other SubmissionUpdate) SubmissionUpdate {
	out := u
	if other.Status != nil {
		out.Status = other.Status
	}
	if other.LastStep != nil {
		out.LastStep = other.LastStep
	}
	if other.LastError != nil {
		out.LastError = other.LastError
	}
	if other.RetryCount != nil {
		out.RetryCount = other.RetryCount
	}
	if other.ExtractedText != nil {
		out.ExtractedText = other.ExtractedText
	}
	if other.Classification != nil {
		out.Classification = other.Classification
	}
	if other.GeneratedTutorial != nil {
		out.GeneratedTutorial = other.GeneratedTutorial
	}
	if other.TutorialID != nil {
		out.TutorialID = other.TutorialID
	}
	if other.StartedAt != nil {
		out.StartedAt = other.StartedAt
	}
	if other.CompletedAt != nil {
		out.CompletedAt = other.CompletedAt
	}
	out.ClearPayloads = out.ClearPayloads || other.ClearPayloads
	return out
}

// IsEmpty reports whether the update writes nothing.
func (u SubmissionUpdate) IsEmpty() bool {
	return u == (SubmissionUpdate{})
}

// Apply returns a copy of s with the update applied, mirroring what the store persists.
func (u SubmissionUpdate) Apply(s Submission) Submission {
	out := s
	if u.ClearPayloads {
		out.ExtractedText = nil
		out.Classification = nil
		out.GeneratedTutorial = nil
	}
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.LastStep != nil {
		out.LastStep = *u.LastStep
	}
	if u.LastError != nil {
		out.LastError = *u.LastError
	}
	if u.RetryCount != nil {
		out.RetryCount = *u.RetryCount
	}
	if u.ExtractedText != nil {
		out.ExtractedText = u.ExtractedText
	}
	if u.Classification != nil {
		out.Classification = u.Classification
	}
	if u.GeneratedTutorial != nil {
		out.GeneratedTutorial = u.GeneratedTutorial
	}
	if u.TutorialID != nil {
		out.TutorialID = u.TutorialID
	}
	if u.StartedAt != nil {
		out.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		out.CompletedAt = u.CompletedAt
	}
	return out
}

// AdvanceOptions tune a single Advance call.
type AdvanceOptions struct {
	HotNews bool
	// Budget is the wall-clock ceiling for starting new steps. Zero means the
	// engine default; a negative value is exhausted immediately.
	Budget time.Duration
}

// PipelineResult is what Advance reports back to its caller.
type PipelineResult struct {
	Success    bool             `json:"success"`
	Status     SubmissionStatus `json:"status"`
	TutorialID string           `json:"tutorial_id,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func Ptr[T any](v T) *T {
	return &v
}
