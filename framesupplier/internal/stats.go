package internal

import "time"

// A pose worker is expected to read several frames per second; 30s without a
// read means it is wedged.
const idleThreshold = 30 * time.Second

func (s *supplier) Stats() SupplierStats {
	workers := make(map[string]WorkerStats)

	s.slots.Range(func(key, value any) bool {
		id := key.(string)
		workers[id] = value.(*workerSlot).stats(id)
		return true
	})

	return SupplierStats{
		Published:   s.published.Load(),
		Distributed: s.distributed.Load(),
		InboxDrops:  s.inboxDrops.Load(),
		Workers:     workers,
	}
}
