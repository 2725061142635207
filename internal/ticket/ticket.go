// Package ticket tracks the state of one client's upload-and-convert
// session. All mutations go through the Store, which serializes them
// behind a single lock.
package ticket

import (
	"encoding/json"
	"time"

	"go-dataset-converter/internal/annotation"
)

// State is the lifecycle position of a ticket.
type State string

const (
	StateUploading           State = "uploading"
	StateUploaded            State = "uploaded"
	StateExtractingLabelMeta State = "extracting_label_meta"
	StateLabelsMetaExtracted State = "labels_meta_extracted"
	StateProcessingDataset   State = "processing_dataset"
	StateReady               State = "ready"
	StateCancelled           State = "cancelled"
	StateError               State = "error"

	// StateUnknown is reported for tickets that do not exist.
	StateUnknown State = "unknown"
)

// Terminal reports whether the state ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateReady || s == StateCancelled || s == StateError
}

// Ticket is the tracked state of one session. Fields are only touched
// while the store lock is held; callers get copies via Snapshot.
type Ticket struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
	State     State

	BytesReceived int64
	// BytesTotal is zero until the upload size is known.
	BytesTotal int64

	UploadPath string

	InputFormat  string
	TargetFormat annotation.TargetFormat
	FeatureType  FeatureType
	// RawParams is the feature_params JSON as received; it is decoded
	// into a typed Params value once, at job start.
	RawParams json.RawMessage

	ErrorMessage string

	// LabelMeta is the early summary extracted independently of the full
	// conversion; the conversion path never writes it.
	LabelMeta *annotation.Meta

	// OutputZipPath is set once, when the output archive is ready.
	OutputZipPath string
}

// UploadProgress reports byte counters for a snapshot. Progress is nil
// when the total is unknown rather than an estimate.
type UploadProgress struct {
	BytesReceived int64    `json:"bytes_received"`
	BytesTotal    *int64   `json:"bytes_total"`
	Progress      *float64 `json:"progress"`
}

// Snapshot is a consistent, serializable copy of one ticket.
type Snapshot struct {
	TicketID      string           `json:"ticket_id"`
	State         State            `json:"state"`
	CreatedAt     string           `json:"created_at"`
	LastSeen      string           `json:"last_seen"`
	Upload        UploadProgress   `json:"upload"`
	InputFormat   string           `json:"input_format,omitempty"`
	TargetFormat  string           `json:"target_format,omitempty"`
	FeatureType   string           `json:"feature_type,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	LabelMeta     *annotation.Meta `json:"label_meta,omitempty"`
	FeatureParams json.RawMessage  `json:"feature_params,omitempty"`
	OutputZipPath string           `json:"output_zip_path,omitempty"`
}

func snapshotOf(t *Ticket) Snapshot {
	s := Snapshot{
		TicketID:      t.ID,
		State:         t.State,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339Nano),
		LastSeen:      t.LastSeen.UTC().Format(time.RFC3339Nano),
		Upload:        UploadProgress{BytesReceived: t.BytesReceived},
		InputFormat:   t.InputFormat,
		TargetFormat:  string(t.TargetFormat),
		FeatureType:   string(t.FeatureType),
		ErrorMessage:  t.ErrorMessage,
		FeatureParams: append(json.RawMessage(nil), t.RawParams...),
		OutputZipPath: t.OutputZipPath,
	}
	if t.BytesTotal > 0 {
		total := t.BytesTotal
		progress := float64(t.BytesReceived) / float64(total)
		s.Upload.BytesTotal = &total
		s.Upload.Progress = &progress
	}
	if t.LabelMeta != nil {
		metaCopy := *t.LabelMeta
		metaCopy.Labels = append([]annotation.LabelCount(nil), t.LabelMeta.Labels...)
		s.LabelMeta = &metaCopy
	}
	return s
}
