// Package generic resolves prefixed engine attributes, such as unreal_uproperty_*,
// into typed records and assigns them to host objects through PropertySetter.
//
// The resolver never inspects host types itself: each host object family provides
// its own PropertySetter, and StructTarget covers plain Go structs.
package generic
