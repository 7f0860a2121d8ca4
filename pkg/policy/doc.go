// Package policy provides Open Policy Agent (OPA) admission checks for asset libraries.
//
// Before an asset library is handed to the engine, the asset loader builds an
// AssetInput and asks the Engine whether the load is allowed. Policies are Rego
// modules whose package defines a `deny` set; each entry is either a message string or
// an object with message, severity and remediation keys.
//
// # Architecture
//
//  1. Engine - compiles policies and evaluates them against an AssetInput
//  2. Loader - reads .rego and .json policy files and bundles, and watches them with fsnotify
//  3. Built-in policies - always loaded, can be disabled by name
//
// # Built-in Policies
//
//   - library-extension (error): only .hda, .otl, their licensed variants and
//     expanded .hdalibrary files may be loaded
//   - no-noncommercial-in-production (critical): .hdanc/.otlnc libraries and
//     apprentice licenses are rejected when the environment is "production"
//   - limited-commercial-license (warning): a limited-commercial library under a
//     non-Indie license
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"/etc/cookbridge/policies"}); err != nil {
//	    return err
//	}
//	result, err := eng.EvaluateAsset(ctx, policy.NewAssetInput(path, "", license, "production"))
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    for _, v := range result.Blocking() {
//	        fmt.Println(v.Policy, v.Message)
//	    }
//	}
//
// Violations with error or critical severity block; warnings are reported only. A
// policy that fails to evaluate is listed in PolicyResult.Warnings and does not block.
//
// # Custom Policies
//
//	package studio.assets
//
//	import rego.v1
//
//	deny contains violation if {
//	    startswith(input.library_path, "/scratch/")
//	    violation := {"message": "scratch assets are not allowed", "severity": "error"}
//	}
//
// The input document has library_path, extension, asset_name, license_type,
// environment and metadata fields.
package policy
