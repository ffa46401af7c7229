// Package service provides the business logic layer for the battleship server.
//
// The service package implements:
//   - Join and leave with generated connection IDs for stateless clients
//   - Fleet placement and firing on behalf of any transport
//   - Room listings, viewer snapshots and finished game results
//   - Server rules, statistics and idle room reaping
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager is the room registry it drives; *session.Manager implements it.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the session manager. Transports translate their requests into GameService
// calls and map the returned sentinel errors with engine.ErrorCode.
//
// Usage:
//
//	manager := session.NewManager(logger, session.WithBroadcaster(hub))
//	gameService := service.NewGameService(manager, logger)
//
//	joined, err := gameService.Join(ctx, "", "alice")
//	if err != nil {
//		return err
//	}
//
//	_, err = gameService.PlaceFleet(ctx, joined.RoomID, joined.ConnectionID, [][]string{{"A1", "A2"}})
//	shot, err := gameService.Fire(ctx, joined.RoomID, joined.ConnectionID, "C3")
package service
