// Package device provides the device catalogue and live device handles for
// Brickplay Core.
//
// The catalogue records which actuators (motor and servo hubs) the station
// knows about. Each record has a live handle implementing Device, which
// the play core connects, disconnects and drives during a session.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                        Device Registry                            │
//	│                                                                   │
//	│  ┌──────────────────┐    ┌──────────────────┐                     │
//	│  │     Registry     │───▶│    Repository    │  devices table      │
//	│  │ • Info cache     │    │ • SQLite queries │                     │
//	│  │ • live handles   │    └──────────────────┘                     │
//	│  └────────┬─────────┘                                             │
//	│           │ Factory                                               │
//	│           ▼                                                       │
//	│  ┌──────────────────┐   brickplay/command/{family}/{id}           │
//	│  │   RemoteDevice   │──────────────────────────────▶ gateway      │
//	│  │ • state acks     │◀────────────────────────────── (BLE / IR)   │
//	│  │ • output outbox  │   brickplay/state/{family}/{id}             │
//	│  └──────────────────┘                                             │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo, device.RemoteFactory(mqttClient, device.RemoteOptions{
//	    QoS:          1,
//	    StateTimeout: 10 * time.Second,
//	}))
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	dev, ok := registry.ByID("bw-01")
//
// # Thread Safety
//
// The Registry and RemoteDevice are safe for concurrent use. The
// Repository implementation must also be thread-safe.
package device
