// Package engine provides the core types and interfaces for talking to a procedural
// geometry engine session.
//
// # Overview
//
// A host application drives the engine through a single session. The engine owns an
// operator graph of nodes; object-level nodes hold transforms and geometry-level nodes
// hold parts, and parts carry typed, tuple-valued attributes attached to points,
// vertices, primitives or the detail.
//
// # Core Domain Types
//
//   - NodeID, PartID, ParmID: integer handles; negative values are invalid
//   - StringHandle: an interned engine string resolved with Session.GetString
//   - NodeInfo, ObjectInfo, GeoInfo, PartInfo, AttributeInfo, ParmInfo, AssetInfo
//   - Transform, TransformEuler: engine-space transform records
//   - Result: the closed set of result codes every call returns
//   - State: the engine cook state polled after CreateNode and CookNode
//
// # Session Interface
//
// Session is composed of StatusAPI, NodeAPI, GeometryAPI, AttributeAPI, GroupAPI and
// ParmAPI. Implementations live in pkg/memengine (in-memory) and pkg/client (JSON-lines
// RPC to an engine server).
//
// # Error Classification
//
// Errors are classified so callers can decide to retry, skip or abort:
//
//   - Session: the session is gone and must be recreated
//   - License: a license failure; the session is stopped
//   - Fatal: a cook or node creation ended with fatal errors
//   - Mismatch: attribute data with no valid storage coercion
//   - NotFound: a missing node, attribute, group or parameter
//   - Transient: transport failures and expired waits
//   - Permanent: any other engine failure
//
// Use the helper functions to inspect errors:
//
//	if engine.IsNotFound(err) {
//	    // absence is normal here
//	}
//
// # Thread Safety
//
// The engine is not reentrant. Callers serialize access to a Session, typically from a
// single update loop; pkg/client adds a mutex so concurrent callers are queued.
package engine
