// Package subscription implements the sensor/ECU fan-out engine.
//
// A Manager owns every simulated sensor and ECU. ECUs subscribe to sensors;
// sensors push their latest reading into the value table of each subscribed
// ECU. The relation is asymmetric:
//
//   - An ECU holds a strong reference to each sensor it subscribed to. A
//     sensor stays alive while its creator or any subscribed ECU holds it.
//   - A sensor holds only a key (id and name) for each subscribed ECU. The
//     key is resolved through the manager registry on every notification; a
//     key that no longer resolves is expired and is skipped.
//
// # Subscribing
//
// Subscribe performs both halves (ECU to sensor and sensor to ECU) under the
// registry lock, so no observer sees one half without the other. A second
// Subscribe for the same pair is a logged no-op reported as
// StatusAlreadySubscribed.
//
// # Notification
//
// Broadcast writes the sensor's last reading into table[category][instance]
// of every live subscriber. Refresh samples every sensor an ECU owns and
// broadcasts each one to all of that sensor's subscribers, not only to the
// refreshing ECU.
//
// # Destruction
//
// ReleaseECU destroys an ECU immediately and drops its sensor holds. Sensors
// keep the stale key; by default it stays in place and is skipped on every
// broadcast. Config.PruneExpired removes such keys lazily during Broadcast.
//
// # Identity
//
// Sensor instances are numbered per category starting at 1 and ECU ids are
// global across kinds starting at 1. Numbers are never reused. Live counts
// are decremented exactly once per destroyed instance.
package subscription
