package claim

import (
	"time"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// EventKind names a state transition of the upload flow.
type EventKind string

const (
	EventImageDropped      EventKind = "source:dropped"
	EventSampleHighlighted EventKind = "sample:highlighted"
	EventSampleConfirmed   EventKind = "sample:confirmed"
	EventUploadStarted     EventKind = "upload:started"
	EventChunkReceived     EventKind = "description:chunk"
	EventStreamCompleted   EventKind = "description:complete"
	EventToastShown        EventKind = "toast:shown"
	EventClaimResolved     EventKind = "claim:resolved"
	EventUploadFailed      EventKind = "upload:failed"
	EventUploadFinished    EventKind = "upload:finished"
)

// Event is emitted by every continuation of a flow. Upload-scoped events
// carry the generation returned by Machine.Begin; the machine ignores them
// once a newer upload has started.
type Event struct {
	Kind       EventKind            `json:"kind"`
	Generation uint64               `json:"generation,omitempty"`
	Text       string               `json:"text,omitempty"`
	Ref        string               `json:"ref,omitempty"`
	Image      *Image               `json:"-"`
	Claim      *models.ClaimDetails `json:"claim,omitempty"`
	Err        *FlowError           `json:"-"`
	At         time.Time            `json:"at"`
}

// uploadScoped reports whether the event belongs to a specific upload.
func (k EventKind) uploadScoped() bool {
	switch k {
	case EventChunkReceived, EventStreamCompleted, EventToastShown,
		EventClaimResolved, EventUploadFailed, EventUploadFinished:
		return true
	}
	return false
}
