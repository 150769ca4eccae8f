// Package nobo provides a client for the Nobø Hub (Ecohub) heating
// controller's local TCP API.
//
// # Basic Usage
//
//	ctx := context.Background()
//	hub, err := nobo.NewHub("123123123123")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := hub.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer hub.Close()
//
//	for _, z := range hub.Store().Zones() {
//	    mode, _ := hub.Store().ZoneMode(z.ID, time.Now())
//	    fmt.Println(z.Name, mode)
//	}
//
// # Configuration
//
// The hub can be configured using functional options:
//
//	hub, err := nobo.NewHub("102000022334",
//	    nobo.WithAddress("192.168.1.50"),
//	    nobo.WithHeartbeatInterval(10*time.Second),
//	    nobo.WithLogger(slog.Default()),
//	)
//
// # Protocol
//
// This package implements the Nobø Hub API v1.1. Hubs announce themselves
// with UDP broadcasts on port 10000 and accept one TCP session on port
// 27779. The hub pushes every change; commands are fire-and-forget and
// their effect shows up in the Store once the hub confirms it. Subscribe
// to be told when that happens.
package nobo
