// Package mqtt provides MQTT client connectivity for Brickplay Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The broker decouples the play core from the radios. Device gateways own
// the BLE or infrared link to each actuator and speak a small JSON command
// protocol on brickplay/command/{family}/{id}; they acknowledge connection
// changes on brickplay/state/{family}/{id}. Controller gateways publish raw
// button and axis events on brickplay/input/{controller}.
//
//	Controller gateway → Broker → Core → Broker → Device gateway → hub
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllControllerInputs(), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("input: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
