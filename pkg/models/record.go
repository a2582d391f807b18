package models

// Record is one harvested or derived metadata record belonging to exactly one
// job. RecordID is stable across the record's lifetime through the pipeline,
// so the same record_id recurs in every job along its lineage chain;
// uniqueness is scoped to (job_id, record_id).
type Record struct {
	ID       int64  `db:"id"        json:"id"`
	JobID    int64  `db:"job_id"    json:"job_id"`
	Index    *int   `db:"idx"       json:"index,omitempty"`
	RecordID string `db:"record_id" json:"record_id"`
	Document string `db:"document"  json:"document,omitempty"`
	Error    string `db:"error"     json:"error,omitempty"`
}

// IndexMappingFailure captures an index-time failure for a record, kept
// separate from Record.Error which holds transform-time errors.
type IndexMappingFailure struct {
	ID           int64  `db:"id"            json:"id"`
	JobID        int64  `db:"job_id"        json:"job_id"`
	RecordID     string `db:"record_id"     json:"record_id"`
	MappingError string `db:"mapping_error" json:"mapping_error"`
}
