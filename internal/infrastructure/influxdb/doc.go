// Package influxdb provides InfluxDB connectivity for the BLE hub.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, telemetry writing and health monitoring.
//
// # Purpose
//
// Every advertisement that changes a device's state is written as one
// point of the "switchbot" measurement, tagged by mac and model, with the
// decoded values (temperature_c, humidity, battery, co2, position...) and
// rssi as fields. Hub counters go to the "hub" measurement.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading(influxdb.Reading{MAC: mac, Model: "WoSensorTH", RSSI: -60,
//	    Fields: map[string]any{"temperature_c": 21.5}})
//
// # Error Handling
//
// Writes are non-blocking and batch errors are reported via SetOnError.
// Connection and health check errors are returned directly.
package influxdb
