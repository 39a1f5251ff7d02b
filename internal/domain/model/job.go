package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Stage is a human-readable progress marker written as the pipeline advances.
type Stage string

const (
	StagePreparing    Stage = "preparing"
	StageCallingModel Stage = "calling_model"
	StageParsing      Stage = "parsing"
	StageDone         Stage = "done"
	StageErrorTimeout Stage = "error_timeout"
	StageErrorSchema  Stage = "error_schema"
	StageErrorUnknown Stage = "error_unknown"
)

type SourceKind string

const (
	SourceKindURL    SourceKind = "url"
	SourceKindUpload SourceKind = "upload"
)

// MaxSourceNotes caps the free-text notes attached to a source.
const MaxSourceNotes = 1500

// Source identifies one side of a comparison: either a public video URL
// or a previously uploaded file referenced by its storage key.
type Source struct {
	Kind    SourceKind `json:"kind"`
	Address string     `json:"address,omitempty"`
	FileKey string     `json:"fileKey,omitempty"`
	Notes   string     `json:"notes,omitempty"`
}

type JobMetrics struct {
	StartedAt   time.Time `json:"startedAt,omitempty"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	DurationMs  int64     `json:"durationMs,omitempty"`
}

// CompareJob is the unit of work tracked by the job store. Source fields
// are immutable after creation; only status/stage/result/metrics/errorCode
// mutate, and only through the repository's update path.
type CompareJob struct {
	ID           string            `json:"id"`
	TraceID      string            `json:"traceId,omitempty"`
	CollectionID string            `json:"collectionId,omitempty"`
	FABVersionID string            `json:"fabVersionId,omitempty"`
	SourceA      Source            `json:"sourceA"`
	SourceB      Source            `json:"sourceB"`
	Status       JobStatus         `json:"status"`
	Stage        Stage             `json:"stage,omitempty"`
	ErrorCode    string            `json:"errorCode,omitempty"`
	Model        string            `json:"model,omitempty"`
	Metrics      JobMetrics        `json:"metrics"`
	Result       *ComparisonResult `json:"result,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	CompletedAt  time.Time         `json:"completedAt,omitempty"`
}

// NewCompareJob creates a job in the queued state.
func NewCompareJob(traceID, collectionID, fabVersionID string, a, b Source, modelName string) *CompareJob {
	now := time.Now().UTC()
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return &CompareJob{
		ID:           uuid.NewString(),
		TraceID:      traceID,
		CollectionID: collectionID,
		FABVersionID: fabVersionID,
		SourceA:      a,
		SourceB:      b,
		Status:       JobStatusQueued,
		Model:        modelName,
		CreatedAt:    now,
	}
}

// Clone returns a deep copy so concurrent pollers never observe a torn write.
func (j *CompareJob) Clone() *CompareJob {
	cp := *j
	if j.Result != nil {
		cp.Result = j.Result.Clone()
	}
	return &cp
}

// Terminal reports whether the job reached done or error.
func (j *CompareJob) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError
}
