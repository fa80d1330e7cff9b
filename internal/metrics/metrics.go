package metrics

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64
	AnalysesTotal      atomic.Uint64
	AnalysesRunning    atomic.Int64
	AnalysesFailed     atomic.Uint64
	AnalysesFallback   atomic.Uint64
	CacheHits          atomic.Uint64
	CacheMisses        atomic.Uint64
	StartTime          time.Time
}

var global = &Metrics{StartTime: time.Now()}

func RequestStarted() {
	global.RequestsTotal.Add(1)
	global.RequestsInProgress.Add(1)
}

// RequestFinished records the outcome by status code.
func RequestFinished(status int) {
	global.RequestsInProgress.Add(-1)
	if status >= 200 && status < 400 {
		global.RequestsSuccess.Add(1)
	} else {
		global.RequestsFailed.Add(1)
	}
}

func AnalysisStarted() {
	global.AnalysesTotal.Add(1)
	global.AnalysesRunning.Add(1)
}

func AnalysisFinished(failed, fallback bool) {
	global.AnalysesRunning.Add(-1)
	if failed {
		global.AnalysesFailed.Add(1)
	}
	if fallback {
		global.AnalysesFallback.Add(1)
	}
}

func CacheHit()  { global.CacheHits.Add(1) }
func CacheMiss() { global.CacheMisses.Add(1) }

// Snapshot returns current metrics
func Snapshot() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	hits, misses := global.CacheHits.Load(), global.CacheMisses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return map[string]interface{}{
		"requests_total":       global.RequestsTotal.Load(),
		"requests_in_progress": global.RequestsInProgress.Load(),
		"requests_success":     global.RequestsSuccess.Load(),
		"requests_failed":      global.RequestsFailed.Load(),
		"analyses_total":       global.AnalysesTotal.Load(),
		"analyses_running":     global.AnalysesRunning.Load(),
		"analyses_failed":      global.AnalysesFailed.Load(),
		"analyses_fallback":    global.AnalysesFallback.Load(),
		"cache": map[string]interface{}{
			"hits":     hits,
			"misses":   misses,
			"hit_rate": hitRate,
		},
		"uptime_seconds": time.Since(global.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}
