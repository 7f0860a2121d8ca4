package engine

import (
	"encoding/json"
	"testing"
)

func TestResult_String(t *testing.T) {
	if got := ResultInvalidSession.String(); got != "invalid_session" {
		t.Errorf("Expected invalid_session, got %s", got)
	}
	if got := Result(999).String(); got != "result(999)" {
		t.Errorf("Expected result(999), got %s", got)
	}
}

func TestResult_IsLicenseError(t *testing.T) {
	for _, r := range []Result{ResultNoLicenseFound, ResultDisallowedNCLicenseFound, ResultDisallowedHEngineIndieW3rdParty} {
		if !r.IsLicenseError() {
			t.Errorf("Expected %s to be a license error", r)
		}
	}
	for _, r := range []Result{ResultSuccess, ResultFailure, ResultAssetInvalid, ResultInvalidSession} {
		if r.IsLicenseError() {
			t.Errorf("Expected %s not to be a license error", r)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	terminal := map[State]bool{
		StateReady:                true,
		StateReadyWithFatalErrors: true,
		StateReadyWithCookErrors:  true,
		StateStartingCook:         false,
		StateCooking:              false,
		StateStartingLoad:         false,
		StateLoading:              false,
		State(42):                 false,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("State %s: expected terminal=%v, got %v", s, want, got)
		}
	}
	if !StateReadyWithFatalErrors.IsFatal() || StateReadyWithCookErrors.IsFatal() {
		t.Error("Expected only ready_with_fatal_errors to be fatal")
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(StateReadyWithCookErrors)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"ready_with_cook_errors"` {
		t.Errorf("Expected state name, got %s", data)
	}

	var s State
	if err := json.Unmarshal([]byte(`"cooking"`), &s); err != nil || s != StateCooking {
		t.Errorf("Expected cooking, got %s (%v)", s, err)
	}
	if err := json.Unmarshal([]byte(`6`), &s); err != nil || s != StateLoading {
		t.Errorf("Expected loading from integer, got %s (%v)", s, err)
	}
	if err := json.Unmarshal([]byte(`"burnt"`), &s); err == nil {
		t.Error("Expected an error for an unknown state name")
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{OwnerAny.String(), "any"},
		{OwnerPrim.String(), "prim"},
		{AttributeOwner(9).String(), "owner(9)"},
		{StorageFloat64.String(), "float64"},
		{StorageInvalid.String(), "invalid"},
		{GroupTypePrim.String(), "prim"},
		{PartTypeInstancer.String(), "instancer"},
		{PartType(17).String(), "part_type(17)"},
		{StatusCookState.String(), "cook_state"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, tt.got)
		}
	}
}

func TestAttributeOwner_Validate(t *testing.T) {
	for _, o := range []AttributeOwner{OwnerAny, OwnerVertex, OwnerPoint, OwnerPrim, OwnerDetail} {
		if err := o.Validate(); err != nil {
			t.Errorf("Expected %s to be valid, got: %v", o, err)
		}
	}
	for _, o := range []AttributeOwner{OwnerMax, AttributeOwner(-2)} {
		if err := o.Validate(); err == nil {
			t.Errorf("Expected owner %d to be invalid", int32(o))
		}
	}
}

func TestStorageType_Classes(t *testing.T) {
	if !StorageInt64.IsInteger() || StorageInt64.IsFloat() {
		t.Error("Expected int64 to be an integer storage")
	}
	if !StorageFloat.IsNumeric() || StorageString.IsNumeric() {
		t.Error("Expected float numeric and string not numeric")
	}
	if StorageInt8.IsNumeric() {
		t.Error("Expected narrow integer storages not to be read as numeric")
	}
}

func TestPartInfo_Counts(t *testing.T) {
	p := PartInfo{PointCount: 8, FaceCount: 6, AttributeCounts: [4]int{1, 3, 0, 2}}
	if p.ElementCount(GroupTypePoint) != 8 || p.ElementCount(GroupTypePrim) != 6 {
		t.Error("Expected point groups to span points and prim groups to span faces")
	}
	if p.AttributeCount(OwnerPoint) != 3 || p.AttributeCount(OwnerDetail) != 2 {
		t.Error("Expected attribute counts per owner")
	}
	if p.AttributeCount(OwnerAny) != 0 {
		t.Error("Expected zero for OwnerAny")
	}
}

func TestNodeID_IsValid(t *testing.T) {
	if InvalidNodeID.IsValid() {
		t.Error("Expected InvalidNodeID to be invalid")
	}
	if !NodeID(0).IsValid() {
		t.Error("Expected node 0 to be valid")
	}
}
