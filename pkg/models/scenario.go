package models

import "time"

// OAI endpoint scope selector types.
const (
	ScopeTypeSetList   = "setList"
	ScopeTypeWhiteList = "whiteList"
	ScopeTypeBlackList = "blackList"
)

// OAIEndpoint is a configured OAI-PMH endpoint that Harvest jobs pull from.
type OAIEndpoint struct {
	ID             int64  `db:"id"              json:"id"`
	Name           string `db:"name"            json:"name"`
	Endpoint       string `db:"endpoint"        json:"endpoint"`
	Verb           string `db:"verb"            json:"verb"`
	MetadataPrefix string `db:"metadata_prefix" json:"metadata_prefix"`
	ScopeType      string `db:"scope_type"      json:"scope_type"`
	ScopeValue     string `db:"scope_value"     json:"scope_value"`
}

// Transformation types accepted for scenario payloads.
const (
	TransformationTypeXSLT       = "xslt"
	TransformationTypePython     = "python"
	TransformationTypeOpenRefine = "openrefine"
)

// Transformation is a named, versionable transformation artifact. XSLT
// payloads are also written to disk under the storage root so the remote
// compute session can read them by path.
type Transformation struct {
	ID        int64     `db:"id"                  json:"id"`
	Name      string    `db:"name"                json:"name"`
	Payload   string    `db:"payload"             json:"-"`
	Type      string    `db:"transformation_type" json:"transformation_type"`
	FilePath  *string   `db:"filepath"            json:"filepath,omitempty"`
	CreatedAt time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt time.Time `db:"updated_at"          json:"updated_at"`
}

// Validation scenario types.
const (
	ValidationTypeSchematron = "sch"
	ValidationTypePython     = "python"
	ValidationTypeESQuery    = "es_query"
	ValidationTypeXSD        = "xsd"
)

// ValidationScenario is a named validation artifact run against job output.
type ValidationScenario struct {
	ID         int64     `db:"id"              json:"id"`
	Name       string    `db:"name"            json:"name"`
	Payload    string    `db:"payload"         json:"-"`
	Type       string    `db:"validation_type" json:"validation_type"`
	FilePath   *string   `db:"filepath"        json:"filepath,omitempty"`
	DefaultRun bool      `db:"default_run"     json:"default_run"`
	CreatedAt  time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"      json:"updated_at"`
}
