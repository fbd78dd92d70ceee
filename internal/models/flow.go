package models

import "time"

// UploadStatus represents the claim upload badge state.
type UploadStatus string

const (
	UploadStatusIdle     UploadStatus = "idle"
	UploadStatusSending  UploadStatus = "sending"
	UploadStatusUploaded UploadStatus = "uploaded"
)

// SourceKind tells which image source is active for the next upload.
type SourceKind string

const (
	SourceNone    SourceKind = ""
	SourceDropped SourceKind = "dropped"
	SourceSample  SourceKind = "sample"
)

// FlowSnapshot is a point-in-time copy of an upload flow's UI state.
type FlowSnapshot struct {
	ID              string        `json:"id" msgpack:"id"`
	Status          UploadStatus  `json:"status" msgpack:"status"`
	Loading         bool          `json:"loading" msgpack:"loading"`
	Description     string        `json:"description" msgpack:"description"`
	ShowDescription bool          `json:"showDescription" msgpack:"showDescription"`
	ShowToast       bool          `json:"showToast" msgpack:"showToast"`
	ShowClaim       bool          `json:"showClaim" msgpack:"showClaim"`
	Claim           *ClaimDetails `json:"claim,omitempty" msgpack:"claim,omitempty"`
	Source          SourceKind    `json:"source,omitempty" msgpack:"source,omitempty"`
	Preview         string        `json:"preview,omitempty" msgpack:"preview,omitempty"`
	Highlighted     string        `json:"highlighted,omitempty" msgpack:"highlighted,omitempty"`
	Generation      uint64        `json:"generation" msgpack:"generation"`
	LastError       string        `json:"lastError,omitempty" msgpack:"lastError,omitempty"`
	UpdatedAt       time.Time     `json:"updatedAt" msgpack:"updatedAt"`
}
