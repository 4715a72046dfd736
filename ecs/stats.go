package ecs

import (
	"reflect"
	"sort"
)

// StorageStats is a point-in-time summary of a Storage.
type StorageStats struct {
	TotalEntityCount int
	PoolCount        int
	SingletonCount   int
	PoolBreakdown    []PoolStats
	SingletonTypes   []string
}

// PoolStats summarizes one component pool.
type PoolStats struct {
	ID          ComponentId
	Type        reflect.Type
	EntityCount int
}

// CollectStats walks every pool and singleton. Pools are listed by component
// id; singleton type names are sorted.
func (s *Storage) CollectStats() *StorageStats {
	stats := &StorageStats{
		TotalEntityCount: s.live,
		SingletonCount:   s.singletons.Len(),
	}

	for id, pool := range s.pools {
		if pool == nil {
			continue
		}
		stats.PoolBreakdown = append(stats.PoolBreakdown, PoolStats{
			ID:          ComponentId(id),
			Type:        pool.Type(),
			EntityCount: pool.Len(),
		})
	}
	stats.PoolCount = len(stats.PoolBreakdown)

	s.singletons.ForEach(func(id ComponentId, _ any) bool {
		stats.SingletonTypes = append(stats.SingletonTypes, s.registry.Type(id).String())
		return true
	})
	sort.Strings(stats.SingletonTypes)

	return stats
}
