package anglebus

// SubscriberHealth classifies a subscriber by its drop rate
type SubscriberHealth string

const (
	HealthUnknown   SubscriberHealth = "unknown"
	HealthHealthy   SubscriberHealth = "healthy"
	HealthDegraded  SubscriberHealth = "degraded"
	HealthSaturated SubscriberHealth = "saturated"
)

const (
	degradedDropRate  = 0.10
	saturatedDropRate = 0.50
)

// CalculateDropRate returns the bus-wide drop rate (0.0 to 1.0).
// Returns 0.0 if nothing has been sent or dropped.
func CalculateDropRate(stats BusStats) float64 {
	total := stats.TotalSent + stats.TotalDropped
	if total == 0 {
		return 0.0
	}
	return float64(stats.TotalDropped) / float64(total)
}

// CalculateSubscriberDropRate returns the drop rate for one subscriber.
// Returns 0.0 if the subscriber is unknown or idle.
func CalculateSubscriberDropRate(stats BusStats, subscriberID string) float64 {
	sub, exists := stats.Subscribers[subscriberID]
	if !exists {
		return 0.0
	}

	total := sub.Sent + sub.Dropped
	if total == 0 {
		return 0.0
	}
	return float64(sub.Dropped) / float64(total)
}

// GetHealth classifies a subscriber: <10% drops healthy, <50% degraded, otherwise saturated.
func GetHealth(stats BusStats, subscriberID string) SubscriberHealth {
	sub, exists := stats.Subscribers[subscriberID]
	if !exists || sub.Sent+sub.Dropped == 0 {
		return HealthUnknown
	}

	rate := CalculateSubscriberDropRate(stats, subscriberID)
	switch {
	case rate >= saturatedDropRate:
		return HealthSaturated
	case rate >= degradedDropRate:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// GetUnhealthySubscribers returns the ids of degraded or saturated DropNew subscribers.
func GetUnhealthySubscribers(stats BusStats) []string {
	var ids []string
	for id, sub := range stats.Subscribers {
		if sub.Policy != DropNew {
			continue
		}
		switch GetHealth(stats, id) {
		case HealthDegraded, HealthSaturated:
			ids = append(ids, id)
		}
	}
	return ids
}
