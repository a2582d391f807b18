package models

import "time"

// Organization is the top of the owning hierarchy: organization ->
// record group -> job.
type Organization struct {
	ID          int64     `db:"id"          json:"id"`
	Name        string    `db:"name"        json:"name"`
	Description string    `db:"description" json:"description"`
	PublishID   string    `db:"publish_id"  json:"publish_id"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
}

// RecordGroup is an intellectual grouping of jobs under an organization.
// PublishSetID names the group's published set for downstream harvesters.
type RecordGroup struct {
	ID             int64     `db:"id"              json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name"            json:"name"`
	Description    string    `db:"description"     json:"description"`
	PublishSetID   string    `db:"publish_set_id"  json:"publish_set_id"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}

// Reserved hierarchy for Analysis jobs. Analysis jobs behave like workflow
// jobs but do not belong to a user-created record group, so they attach to
// these fixed names, seeded by migration and hidden from user workflows.
const (
	AnalysisOrganizationName = "AnalysisOrganizationf8ed4bfcefc4dbf87b588a5de9b7cc95"
	AnalysisRecordGroupName  = "AnalysisRecordGroupf660bb4826bea8b63fd773d27d687cfd"
)
