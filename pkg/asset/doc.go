// Package asset drives asset instances through the engine cook lifecycle.
//
// An Instance starts in StateNeedInstantiation and is advanced one state per
// Driver.Tick:
//
//	NeedInstantiation -> PreInstantiation -> Instantiating -> PreCook -> Cooking
//	    -> PostCook -> PreProcess -> Processing -> None
//
// PreInstantiation loads the asset library after the policy engine admits it.
// Instantiating creates the node and polls the cook state until the engine is ready.
// PreCook uploads queued parameters and requests a cook, which Cooking waits for.
// PreProcess gathers the parts of every display geometry together with their sockets,
// generic properties and tags, and Processing hands them to the Processor.
//
// MarkAsNeedRebuild and MarkAsNeedDelete apply immediately from any state; a step that
// finishes after such a request leaves the new state alone. A fatal cook returns the
// instance to None with ResultFinishedWithFatalError. A failed instantiation parks it in
// NeedInstantiation until MarkAsNeedInstantiation or MarkAsNeedRebuild is called.
//
// Waits poll every CookerConfig.PollInterval and are bounded only by ctx and the optional
// CookerConfig.Timeout. Use a Dispatcher to keep all engine calls on one goroutine.
package asset
