// Package mqtt provides MQTT client connectivity for Lumen Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Lumen uses MQTT as the external message bus. Frame producers (sequencers,
// ambient-light services, UI tools) publish colour frames to the intake
// topics, and the core announces device-set changes and lifecycle events
// back onto the bus.
//
//	Frame Producers ↔ MQTT Broker ↔ Lumen Core
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to the colour-frame intake topic
//	err = client.Subscribe(mqtt.Topics{}.Frames(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Announce a device-set change
//	client.Publish(mqtt.Topics{}.DevicesChanged(), nil, 1, false)
package mqtt
