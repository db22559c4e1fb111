// Package influxdb provides InfluxDB connectivity for Brickplay Core.
//
// It wraps the official influxdb-client-go v2 library for play-session
// telemetry: every channel output, each device connect result, output level
// changes and session lifecycle events.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteChannelOutput(sessionID, "bw-01", 0, 0.5)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; asynchronous write errors are delivered to the callback
// set with SetOnError.
package influxdb
