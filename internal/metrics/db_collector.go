package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a snapshot of the tasker Postgres pool, copied out of
// pgxpool.Stat so this package does not depend on pgx.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
	Max      int32

	AcquireCount      int64 // successful acquires since start
	EmptyAcquireCount int64 // acquires that had to wait for a connection
}

// DBPoolStatFunc is called on every scrape.
type DBPoolStatFunc func() PoolStats

type poolSeries struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(PoolStats) float64
}

// dbPoolCollector reads the pool at scrape time instead of mirroring it into
// gauges on a timer.
type dbPoolCollector struct {
	stat   DBPoolStatFunc
	series []poolSeries
}

func poolDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc("tasker_db_pool_"+name, help, nil, nil)
}

func newDBPoolCollector(stat DBPoolStatFunc) *dbPoolCollector {
	return &dbPoolCollector{
		stat: stat,
		series: []poolSeries{
			{poolDesc("total_conns", "Connections currently open in the tasker pool."), prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.Total) }},
			{poolDesc("idle_conns", "Open connections not in use."), prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.Idle) }},
			{poolDesc("acquired_conns", "Connections held by a request or transaction."), prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.Acquired) }},
			{poolDesc("max_conns", "Configured pool size."), prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.Max) }},
			{poolDesc("acquires_total", "Successful connection acquires."), prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.AcquireCount) }},
			{poolDesc("empty_acquires_total", "Acquires that waited because the pool was exhausted."), prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.EmptyAcquireCount) }},
		},
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.series {
		ch <- s.desc
	}
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stat()
	for _, s := range c.series {
		ch <- prometheus.MustNewConstMetric(s.desc, s.kind, s.value(stats))
	}
}
