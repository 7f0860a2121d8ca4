// Package session is the status and diagnostics facade over an engine session.
//
// Every other component reaches the engine through a Facade. Status queries never
// return errors; they fail closed to an empty or explanatory string so they can be shown
// to a user as-is. The facade also owns session-lost handling: the first query that
// reports an invalid session detaches it, publishes a session.lost event and runs the
// OnSessionLost callbacks exactly once.
//
//	f := session.New(client, tel)
//	f.OnSessionLost(func(reason string) { restart() })
//	fmt.Print(f.CookLog(ctx, []engine.NodeID{assetID}))
package session
