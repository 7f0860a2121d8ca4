// Package attribute reads and writes typed geometry attributes through an engine
// session.
//
// Reads go through Marshaller.Float, Int, String and their 64-bit variants. Each resolves
// the attribute info first; with OwnerAny the owners are probed point, vertex, primitive
// then detail. When the stored type differs from the requested one the values are
// converted: floats truncate to ints, numbers format to decimal strings and strings parse
// to numbers. A string that does not parse fails the whole read with a mismatch error.
// The info returned alongside converted values still reports the native storage.
//
// String writes stage their values in engine-side buffers that are always released,
// whether the write succeeds or not.
package attribute
