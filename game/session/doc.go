// Package session provides the room registry and lifecycle manager for the
// battleship server.
//
// The session package implements:
//   - Matchmaking that pairs join requests in arrival order
//   - A registry mapping connections to their room and slot
//   - Event fan-out to a transport-provided Broadcaster
//   - Room teardown when a game finishes or a player disconnects
//   - Idle room reaping and a bounded history of finished games
//
// Core Types:
//
// Manager owns every live room. Each room is wrapped with its own mutex so
// games run independently; the registry maps are guarded by a separate
// RWMutex. Matchmaker holds the single pending room ID.
//
// Lock Order:
//
// Matchmaker, then room, then registry. Events are emitted while the room
// lock is held so every client sees a room's events in the order they
// happened. A Broadcaster must therefore never block on client I/O and must
// never call back into the Manager.
//
// Usage:
//
//	manager := session.NewManager(logger, session.WithBroadcaster(hub))
//
//	joined, err := manager.Join(connectionID, "alice")
//	if err != nil {
//		return err
//	}
//
//	_, err = manager.SubmitFleet(joined.RoomID, connectionID, ships)
//	out, err := manager.Fire(joined.RoomID, connectionID, "B4")
//
//	// on socket close
//	manager.Disconnect(connectionID)
//
// Cleanup:
//
// Finished rooms are removed immediately. CleanupIdleRooms disconnects the
// player stalling a room that has been idle for too long, which forfeits the
// game to the opponent or discards a room still waiting for one.
package session
