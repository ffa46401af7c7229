// Package api provides HTTP REST API handlers for the battleship server.
//
// The api package implements:
//   - RESTful endpoints for matchmaking and play
//   - Room listings and per-player room views
//   - Finished game results, rules and server statistics
//   - A QR code of the play URL for sharing
//   - WebSocket upgrade routing
//
// Endpoints:
//
// Matchmaking:
//   - POST /api/join - Join the queue; body {"username", "connection_id"} is optional
//   - DELETE /api/connections/{id} - Leave, forfeiting any game in progress
//
// Game Operations:
//   - GET /api/rooms - List live rooms (?state= filters)
//   - GET /api/rooms/{id} - Room snapshot (?connection_id= for the player's view)
//   - POST /api/rooms/{id}/fleet - Place ships: {"connection_id", "ships": [["A1","A2"],["C3"]]}
//   - POST /api/rooms/{id}/fire - Fire: {"connection_id", "target": "B4"}
//
// Results and Server:
//   - GET /api/results - Recent finished games (?limit=)
//   - GET /api/results/{id} - Outcome of one game
//   - GET /api/rules - Placement limits and game flow
//   - GET /api/stats - Live rooms, connections and games finished
//   - GET /healthz - Liveness
//   - GET /qr - PNG QR code (?url=, ?size=)
//   - GET /ws - WebSocket play
//
// Usage:
//
//	server := api.NewServer(gameService, wsHandler, logger)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status derived from a stable code:
//
//	{
//	  "error": "not your turn: slot 1 to move",
//	  "code": "not_your_turn"
//	}
//
// unknown_room, unknown_player, not_seated and result_not_found map to 404;
// not_your_turn, not_in_state, already_placed and already_seated to 409;
// invalid_placement to 422; bad_request to 400.
package api
