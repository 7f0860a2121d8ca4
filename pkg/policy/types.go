package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that are logged but never block a load.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the library load.
	SeverityError Severity = "error"

	// SeverityCritical blocks the library load.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity rejects the asset.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a named Rego module. Its package must define a `deny` set.
type Policy struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rego        string   `json:"rego"`
	Severity    Severity `json:"severity"`
	Enabled     bool     `json:"enabled"`
	Tags        []string `json:"tags,omitempty"`

	// Metadata records where the policy came from.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssetInput is the document a policy sees as `input`.
type AssetInput struct {
	// LibraryPath is the absolute path of the asset library about to be loaded.
	LibraryPath string `json:"library_path"`

	// Extension is the lower-cased extension of LibraryPath, dot included.
	Extension string `json:"extension"`

	// AssetName is the operator that will be instantiated, when known.
	AssetName string `json:"asset_name,omitempty"`

	// LicenseType is the session license name, e.g. "Houdini Engine Indie".
	LicenseType string `json:"license_type,omitempty"`

	// Environment is the deployment environment, e.g. "production".
	Environment string `json:"environment,omitempty"`

	// Metadata carries extra caller facts.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	Policy      string                 `json:"policy"`
	Library     string                 `json:"library,omitempty"`
	Message     string                 `json:"message"`
	Severity    Severity               `json:"severity"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
	DetectedAt  time.Time              `json:"detected_at"`
}

// PolicyResult represents the result of policy evaluation.
type PolicyResult struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists policies that could not be evaluated.
	Warnings []string `json:"warnings,omitempty"`

	EvaluatedAt       time.Time     `json:"evaluated_at"`
	EvaluatedPolicies []string      `json:"evaluated_policies"`
	Duration          time.Duration `json:"duration"`
}

// Blocking returns the violations that reject the asset.
func (r *PolicyResult) Blocking() []PolicyViolation {
	var out []PolicyViolation
	for _, v := range r.Violations {
		if v.Severity.Blocks() {
			out = append(out, v)
		}
	}
	return out
}

// PolicyBundle represents a collection of related policies.
type PolicyBundle struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Policies    []Policy  `json:"policies"`
	CreatedAt   time.Time `json:"created_at"`
}
