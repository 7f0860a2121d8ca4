// Package memengine provides an in-memory engine.Session.
//
// The engine keeps a small operator graph: asset nodes created from registered
// templates, object nodes with transforms, geometry nodes with parts, and parts with
// typed attributes, groups and topology. It is used by the package tests across the
// module and served over JSON-lines by cmd/engine-server.
//
// Tests script behavior that a real engine produces asynchronously:
//
//	e := memengine.New()
//	e.AddLibraryFile("/assets/rock.hda", "Object/rock")
//	e.DefineAsset("Object/rock", func(b *memengine.Builder, asset engine.NodeID) {
//		obj := b.AddObject(asset, "geo1", engine.IdentityTransform())
//		geo := b.AddGeo(obj, "display", true)
//		b.AddPart(geo, engine.PartInfo{Name: "mesh", PointCount: 3})
//	})
//	e.ScriptCookStates(engine.StateCooking, engine.StateReady)
//	e.FailNext("CookNode", engine.ResultFailure)
//
// Every method counts its calls (CallCount), so callers can assert how many round
// trips an operation made. Scenes can also be described in YAML and loaded with
// LoadScene.
package memengine
