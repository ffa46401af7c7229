// Package natsbus mirrors room events onto NATS so other services can follow
// games without holding a socket.
//
// Every event the session manager emits is published as JSON on
//
//	<prefix>.room.<room_id>.<event>
//
// so a subscriber to "battleship.room.*.winner_announced" sees every finished
// game. Publishing is fire-and-forget; a NATS outage never affects play.
//
// Usage:
//
//	conn, err := natsbus.Connect(cfg.NATSURL, logger)
//	if err != nil {
//		return err
//	}
//	defer conn.Drain()
//
//	events := natsbus.NewMirror(hub, conn, cfg.NATSSubject, logger)
//	manager := session.NewManager(logger, session.WithBroadcaster(events))
package natsbus
