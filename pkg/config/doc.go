// Package config loads and validates bridge settings and evaluates parameter presets.
//
// # Settings
//
// Settings come from a YAML file, or a CUE file when the extension is .cue. Values the
// file does not set keep the defaults from DefaultSettings. Every load is checked twice:
// first against validator struct tags, then against the built-in #settings CUE schema,
// which also carries the cross-field rules (an ssh transport needs an ssh block, only
// the inproc transport may omit the server path).
//
//	engine:
//	  transport: ssh
//	  server_path: ./bin/engine-server
//	  remote_path: /tmp/cookbridge/engine-server
//	  ssh:
//	    host: render01
//	    user: artist
//	cook:
//	  poll_interval: 100ms
//	  timeout: 2m
//	coordinates:
//	  convert_coordinates: true
//	  scale_factor: 100
//	presets:
//	  Object/rock: presets/rock.star
//
// CUE documents cannot set the telemetry block; durations in CUE are nanoseconds.
//
// Problems are reported as an *InvalidSettingsError listing each ValidationError with
// its settings path, and file position when known.
//
// # Reloading
//
// Watcher watches the settings file's directory with fsnotify, debounces bursts of
// events and hands every reload to a callback. A reload that fails validation keeps
// the previous settings.
//
// # Presets
//
// A preset is a Starlark script that assigns a parms dict before an asset is cooked:
//
//	parms = {
//	    "height": clamp(2.0 * scale, 0.5, 10.0),
//	    "seed": 7,
//	    "label": asset + "_lod0",
//	}
//
// Ints and bools become int values, floats become float values and strings become
// string values; a list is a tuple. Scripts see their inputs as globals plus the math
// module and the clamp and lerp builtins. They have no filesystem or network access
// and are cancelled when the timeout expires.
package config
