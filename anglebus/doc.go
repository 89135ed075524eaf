// Package anglebus provides non-blocking distribution of joint angle samples
// to any number of subscribers.
//
// Core philosophy: "Drop samples, never queue. Latency > Completeness."
//
// A live exercise session produces one sample per camera frame. Feedback
// consumers (on-screen indicator, websocket clients, MQTT) only care about the
// most recent angle, so a slow consumer loses samples instead of holding the
// tracker back.
//
// Two drop policies are available:
//   - DropNew: buffered channel, incoming sample dropped when the buffer is full
//   - DropOld: latest-only mailbox, the stored sample is replaced
//
// Usage:
//
//	bus := anglebus.New()
//	defer bus.Close()
//
//	ch := make(chan anglebus.Sample, 8)
//	bus.Subscribe("presenter", ch)
//
//	latest, _ := bus.SubscribeLatest("status")
//	defer latest.Close()
//
//	bus.Publish(anglebus.Sample{Degrees: 92.5, Seq: 1})
package anglebus
