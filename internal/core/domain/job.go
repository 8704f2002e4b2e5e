package domain

// JobStatus is a batch lifecycle state reported by the inference
// provider.
type JobStatus string

// Batch job statuses. The provider may report transient states not
// listed here; only the terminal set matters to the pipeline.
const (
	JobValidating JobStatus = "validating"
	JobInProgress JobStatus = "in_progress"
	JobFinalizing JobStatus = "finalizing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobExpired    JobStatus = "expired"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status ends the job's lifecycle.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobExpired, JobCancelled:
		return true
	}
	return false
}

// Job is the locally tracked state of one submitted batch. The JSON
// field names define the on-disk status file schema and must not
// change between releases.
type Job struct {
	// BatchID is the provider-assigned batch identifier. It keys the
	// status file map and is not repeated inside the entry.
	BatchID string `json:"-"`

	// CreatedUTC is the submission time in UTC, RFC 3339.
	CreatedUTC string `json:"created_utc"`

	// Status is the status observed at submission time.
	Status string `json:"status"`

	// Model is the model key the batch was submitted with.
	Model string `json:"model"`

	// InputJSONL is the basename of the uploaded input file.
	InputJSONL string `json:"input_jsonl"`

	// InputFileID is the provider file ID of the uploaded input.
	InputFileID string `json:"input_file_id"`

	// Source is the table the records came from.
	Source string `json:"table_name"`

	// RecordCount is the number of request lines submitted.
	RecordCount int `json:"record_count"`

	// FinalStatus is set once the batch reaches a terminal state.
	FinalStatus string `json:"final_status,omitempty"`

	// OutputFileID is the provider file ID of the results, when the
	// batch completed.
	OutputFileID string `json:"output_file_id,omitempty"`

	// OutputPath is the basename of the downloaded results file.
	OutputPath string `json:"output_path,omitempty"`
}

// Finished reports whether the job has been resolved to a terminal
// state locally. Unfinished jobs are the candidates for the pending
// sweep.
func (j Job) Finished() bool {
	return j.FinalStatus != ""
}

// RemoteJob is the provider-side view of a batch job as returned by a
// status poll.
type RemoteJob struct {
	// ID is the provider-assigned batch identifier.
	ID string

	// Status is the current lifecycle state.
	Status JobStatus

	// OutputFileID is the file holding results, set once available.
	OutputFileID string
}
