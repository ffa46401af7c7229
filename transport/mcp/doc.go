// Package mcp exposes the battleship game to AI agents over the Model
// Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, so an agent plays exactly like any other REST player. REST
// players receive no pushed events and poll game_state instead.
//
// MCP Tools:
//   - join_game: enter matchmaking, returns connection_id and room_id
//   - place_fleet: submit every ship at once
//   - fire: shoot at one cell on your turn
//   - game_state: the room as the caller sees it
//   - game_result: outcome of a finished game
//   - leave_game: leave the room, forfeiting a game in progress
//   - list_rooms: live rooms
//   - game_rules: placement limits and game flow
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
