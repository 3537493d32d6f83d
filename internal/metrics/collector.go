// Package metrics exports the model lifecycle counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"modelcache/pkg/types"
)

const namespace = "modelcache"

// StatusSource is anything that can report a status snapshot, normally the
// manager.
type StatusSource interface {
	Status() types.StatusResponse
}

// Collector reads one status snapshot per scrape.
type Collector struct {
	src StatusSource

	hits, misses, evictions, preloads *prometheus.Desc
	hitRatio, resident, usedBytes     *prometheus.Desc
	maxBytes, maxModels               *prometheus.Desc
	preloadQueue, preloadTasks        *prometheus.Desc
	optimizerTarget, optimizations    *prometheus.Desc
	gcCollections, gcFreed, gcModels  *prometheus.Desc
	gcAvgSeconds                      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(src StatusSource) *Collector {
	d := func(sub, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, sub, name), help, labels, nil)
	}
	return &Collector{
		src:             src,
		hits:            d("cache", "hits_total", "Acquires served from a resident model."),
		misses:          d("cache", "misses_total", "Acquires that had to load a model."),
		evictions:       d("cache", "evictions_total", "Models evicted to make room or after a resize."),
		preloads:        d("cache", "preloads_total", "Models inserted by the preload scheduler."),
		hitRatio:        d("cache", "hit_ratio", "hits / (hits + misses)."),
		resident:        d("cache", "resident_models", "Models currently resident."),
		usedBytes:       d("cache", "used_bytes", "Bytes held by resident models."),
		maxBytes:        d("cache", "max_bytes", "Byte capacity of the cache (0 = unbounded)."),
		maxModels:       d("cache", "max_models", "Model capacity of the cache (0 = unbounded)."),
		preloadQueue:    d("preload", "queue_length", "Preload tasks waiting."),
		preloadTasks:    d("preload", "tasks_total", "Processed preload tasks by outcome.", "outcome"),
		optimizerTarget: d("optimizer", "target_bytes", "Cache size chosen by the adaptive controller."),
		optimizations:   d("optimizer", "resizes_total", "Applied cache resizes by direction.", "direction"),
		gcCollections:   d("gc", "collections_total", "Collection passes run."),
		gcFreed:         d("gc", "freed_bytes_total", "Bytes reclaimed from evicted and removed models."),
		gcModels:        d("gc", "models_collected_total", "Models reclaimed."),
		gcAvgSeconds:    d("gc", "avg_collection_seconds", "Mean duration of a collection pass."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hits, c.misses, c.evictions, c.preloads, c.hitRatio, c.resident,
		c.usedBytes, c.maxBytes, c.maxModels, c.preloadQueue, c.preloadTasks,
		c.optimizerTarget, c.optimizations, c.gcCollections, c.gcFreed,
		c.gcModels, c.gcAvgSeconds,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Status()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.hits, st.Cache.Hits)
	counter(c.misses, st.Cache.Misses)
	counter(c.evictions, st.Cache.Evictions)
	counter(c.preloads, st.Cache.Preloads)
	gauge(c.hitRatio, st.Cache.HitRate)
	gauge(c.resident, float64(len(st.Entries)))
	gauge(c.usedBytes, float64(st.UsedBytes))
	gauge(c.maxBytes, float64(st.MaxBytes))
	gauge(c.maxModels, float64(st.MaxModels))

	gauge(c.preloadQueue, float64(st.Preload.Queued))
	counter(c.preloadTasks, st.Preload.Successful, "success")
	counter(c.preloadTasks, st.Preload.Failed, "failure")
	counter(c.preloadTasks, st.Preload.Skipped, "skipped")

	gauge(c.optimizerTarget, float64(st.Optimizer.TargetMB<<20))
	counter(c.optimizations, st.Optimizer.SizeIncreases, "increase")
	counter(c.optimizations, st.Optimizer.SizeDecreases, "decrease")

	counter(c.gcCollections, st.GC.Collections)
	counter(c.gcFreed, st.GC.TotalFreedBytes)
	counter(c.gcModels, st.GC.ModelsCollected)
	gauge(c.gcAvgSeconds, st.GC.AvgCollectionTimeMs/1000)
}

// Register adds a Collector over src to reg.
func Register(reg prometheus.Registerer, src StatusSource) error {
	return reg.Register(NewCollector(src))
}
