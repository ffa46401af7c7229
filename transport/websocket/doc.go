// Package websocket provides WebSocket transport for the battleship server.
//
// The websocket package implements:
//   - Real-time bidirectional play over one socket per player
//   - Room broadcast groups fed by the session manager
//   - Command dispatch to the game service
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read and a
// write goroutine. The Hub implements session.Broadcaster: room membership
// changes and outbound events are queued on one outbox and applied by the hub
// loop in order, so the game never blocks on a slow socket.
//
// Message Protocol:
//
// Messages are JSON-encoded with the following structure:
//   - Incoming: {"type": "fire", "request_id": "7", "room_id": "a1b2c3", "target": "B4"}
//   - Outgoing: {"event": "fire_outcome", "room_id": "a1b2c3", "data": {...}}
//
// Command types are join, place_fleet, fire, state and leave. Each command is
// answered with a reply event carrying the same request_id, or with an error
// event {"event": "error", "data": {"code": "not_your_turn", "message": "..."}}.
// room_id may be omitted after join.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	manager := session.NewManager(logger, session.WithBroadcaster(hub))
//	handler := websocket.NewHandler(hub, service.NewGameService(manager, logger), logger)
//	router.HandleFunc("/ws", handler.HandleWebSocket)
//
// Connection Lifecycle:
//
// 1. Client connects and receives a connected event with its connection_id
// 2. Client sends join and is paired with the next player
// 3. Client sends commands, receives room events
// 4. Socket close forfeits the client's game
package websocket
