package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		libraryExtensionPolicy(),
		nonCommercialPolicy(),
		limitedCommercialPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, src string) Policy {
	now := time.Now()
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Tags:        tags,
		Metadata:    map[string]interface{}{"source": "builtin"},
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego:        src,
	}
}

// libraryExtensionPolicy only admits asset library file types.
func libraryExtensionPolicy() Policy {
	return builtin("library-extension",
		"Only asset library files (.hda, .otl and their licensed variants, or an expanded .hdalibrary) may be loaded",
		SeverityError, []string{"library"},
		`package cookbridge.policies.extension

import rego.v1

allowed := {".hda", ".otl", ".hdalc", ".hdanc", ".otllc", ".otlnc", ".hdalibrary"}

deny contains violation if {
	not allowed[input.extension]
	violation := {
		"message": sprintf("%s is not an asset library (extension %q)", [input.library_path, input.extension]),
		"severity": "error",
		"remediation": "point the asset at a .hda or .otl file",
	}
}
`)
}

// nonCommercialPolicy rejects non-commercial assets and licenses in production.
func nonCommercialPolicy() Policy {
	return builtin("no-noncommercial-in-production",
		"Non-commercial asset libraries and apprentice licenses are not allowed in production",
		SeverityCritical, []string{"license"},
		`package cookbridge.policies.noncommercial

import rego.v1

noncommercial := {".hdanc", ".otlnc"}

deny contains violation if {
	input.environment == "production"
	noncommercial[input.extension]
	violation := {
		"message": sprintf("non-commercial library %s cannot be used in production", [input.library_path]),
		"severity": "critical",
	}
}

deny contains violation if {
	input.environment == "production"
	contains(lower(input.license_type), "apprentice")
	violation := {
		"message": sprintf("license %q cannot be used in production", [input.license_type]),
		"severity": "critical",
	}
}
`)
}

// limitedCommercialPolicy warns when a limited-commercial library is loaded under a
// full commercial license, which the engine refuses at instantiation.
func limitedCommercialPolicy() Policy {
	return builtin("limited-commercial-license",
		"Limited-commercial libraries need an Indie license",
		SeverityWarning, []string{"license"},
		`package cookbridge.policies.limited

import rego.v1

limited := {".hdalc", ".otllc"}

deny contains violation if {
	limited[input.extension]
	input.license_type != ""
	not contains(input.license_type, "Indie")
	violation := {
		"message": sprintf("limited-commercial library %s with license %q", [input.library_path, input.license_type]),
		"severity": "warning",
	}
}
`)
}
