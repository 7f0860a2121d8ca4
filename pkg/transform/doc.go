// Package transform converts transforms between engine space and host space.
//
// The engine is Y-up and right-handed with positions in meters; the host is Z-up and
// left-handed with positions in centimeters. Under the default Policy a conversion
// swaps the Y and Z axes, negates the quaternion's vector part and scales positions by
// ScaleFactor. Scale is swapped but never multiplied. With ConvertCoordinates off,
// components are copied unchanged. ToHost and ToEngine are inverses of each other.
package transform
