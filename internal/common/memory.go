package common

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
)

// MemoryStats holds the heap figures reported with batch statistics.
type MemoryStats struct {
	HeapAlloc  uint64 `json:"heap_alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("heap %s, total allocated %s, sys %s, %d GC",
		humanize.IBytes(m.HeapAlloc),
		humanize.IBytes(m.TotalAlloc),
		humanize.IBytes(m.Sys),
		m.NumGC)
}
