package engine

import (
	"encoding/json"
	"fmt"
)

// Result is the closed set of result codes returned by every engine call.
type Result int

const (
	ResultSuccess                         Result = 0
	ResultFailure                         Result = 1
	ResultAlreadyInitialized              Result = 2
	ResultNotInitialized                  Result = 3
	ResultCantLoadFile                    Result = 4
	ResultParmSetFailed                   Result = 5
	ResultInvalidArgument                 Result = 6
	ResultCantLoadGeo                     Result = 7
	ResultCantGeneratePreset              Result = 8
	ResultCantLoadPreset                  Result = 9
	ResultAssetDefAlreadyLoaded           Result = 10
	ResultNoLicenseFound                  Result = 110
	ResultDisallowedNCLicenseFound        Result = 120
	ResultDisallowedNCAssetWithCLicense   Result = 130
	ResultDisallowedNCAssetWithLCLicense  Result = 140
	ResultDisallowedLCAssetWithCLicense   Result = 150
	ResultDisallowedHEngineIndieW3rdParty Result = 160
	ResultAssetInvalid                    Result = 200
	ResultNodeInvalid                     Result = 210
	ResultUserInterrupted                 Result = 300
	ResultInvalidSession                  Result = 400
)

var resultNames = map[Result]string{
	ResultSuccess:                         "success",
	ResultFailure:                         "failure",
	ResultAlreadyInitialized:              "already_initialized",
	ResultNotInitialized:                  "not_initialized",
	ResultCantLoadFile:                    "cant_load_file",
	ResultParmSetFailed:                   "parm_set_failed",
	ResultInvalidArgument:                 "invalid_argument",
	ResultCantLoadGeo:                     "cant_load_geo",
	ResultCantGeneratePreset:              "cant_generate_preset",
	ResultCantLoadPreset:                  "cant_load_preset",
	ResultAssetDefAlreadyLoaded:           "asset_def_already_loaded",
	ResultNoLicenseFound:                  "no_license_found",
	ResultDisallowedNCLicenseFound:        "disallowed_nc_license_found",
	ResultDisallowedNCAssetWithCLicense:   "disallowed_nc_asset_with_c_license",
	ResultDisallowedNCAssetWithLCLicense:  "disallowed_nc_asset_with_lc_license",
	ResultDisallowedLCAssetWithCLicense:   "disallowed_lc_asset_with_c_license",
	ResultDisallowedHEngineIndieW3rdParty: "disallowed_hengine_indie_w_3party_plugin",
	ResultAssetInvalid:                    "asset_invalid",
	ResultNodeInvalid:                     "node_invalid",
	ResultUserInterrupted:                 "user_interrupted",
	ResultInvalidSession:                  "invalid_session",
}

// String returns the snake_case name of the result code.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// IsSuccess reports whether r is ResultSuccess.
func (r Result) IsSuccess() bool {
	return r == ResultSuccess
}

// IsLicenseError returns true for the license range of result codes.
// The engine acquires a license on node creation or library load, not at session start.
func (r Result) IsLicenseError() bool {
	return r >= ResultNoLicenseFound && r < ResultAssetInvalid
}

// StatusType selects which status string the engine reports.
type StatusType int

const (
	StatusCallResult StatusType = 0
	StatusCookResult StatusType = 1
	StatusCookState  StatusType = 2
)

// String returns the status type name.
func (s StatusType) String() string {
	switch s {
	case StatusCallResult:
		return "call_result"
	case StatusCookResult:
		return "cook_result"
	case StatusCookState:
		return "cook_state"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusVerbosity filters the messages included in a status string.
type StatusVerbosity int

const (
	VerbosityErrors   StatusVerbosity = 0
	VerbosityWarnings StatusVerbosity = 1
	VerbosityMessages StatusVerbosity = 2
	VerbosityAll      StatusVerbosity = VerbosityMessages
)

// State is the engine-side cook state reported by the StatusCookState query.
type State int

const (
	// StateReady means the last cook finished cleanly.
	StateReady State = 0

	// StateReadyWithFatalErrors means the cook finished but produced no usable data.
	StateReadyWithFatalErrors State = 1

	// StateReadyWithCookErrors means the cook finished with recoverable node errors.
	StateReadyWithCookErrors State = 2

	StateStartingCook State = 3
	StateCooking      State = 4
	StateStartingLoad State = 5
	StateLoading      State = 6
)

// StateMaxReady is the highest state value that still counts as finished.
const StateMaxReady = StateReadyWithCookErrors

var stateNames = map[State]string{
	StateReady:                "ready",
	StateReadyWithFatalErrors: "ready_with_fatal_errors",
	StateReadyWithCookErrors:  "ready_with_cook_errors",
	StateStartingCook:         "starting_cook",
	StateCooking:              "cooking",
	StateStartingLoad:         "starting_load",
	StateLoading:              "loading",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal returns true if the cook state ends a poll loop.
// Only the three ready states are terminal; anything else keeps polling.
func (s State) IsTerminal() bool {
	return s == StateReady || s == StateReadyWithFatalErrors || s == StateReadyWithCookErrors
}

// IsFatal returns true if the state reports fatal cook errors.
func (s State) IsFatal() bool {
	return s == StateReadyWithFatalErrors
}

// MarshalJSON encodes the state as its name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the state name or its integer value.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		for k, v := range stateNames {
			if v == name {
				*s = k
				return nil
			}
		}
		return fmt.Errorf("invalid cook state: %s", name)
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid cook state: %s", string(data))
	}
	*s = State(n)
	return nil
}

// License identifies the license held by the engine session.
type License int

const (
	LicenseNone              License = 0
	LicenseHoudiniEngine     License = 1
	LicenseHoudini           License = 2
	LicenseHoudiniFX         License = 3
	LicenseHoudiniEngineIndie License = 4
	LicenseHoudiniIndie      License = 5
	LicenseMax               License = 6
)

// SessionEnvInt names an integer session environment value.
type SessionEnvInt int

const (
	SessionEnvLicense SessionEnvInt = 100
)
