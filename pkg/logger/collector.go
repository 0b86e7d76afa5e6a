package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated entries somewhere, e.g. Kafka.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// DefaultVolatileFields vary on every pipeline run and would defeat
// aggregation if they were part of the key.
var DefaultVolatileFields = []string{"run_id", "request", "attempt", "backoff_ms", "duration_ms", "error"}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval (e.g., 30s)
	CountThreshold int           // max distinct entries before flush (e.g., 100)
	Topic          string
	Publisher      Publisher
	// VolatileFields are left out of the aggregation key; the entry keeps
	// their most recent values. nil means DefaultVolatileFields.
	VolatileFields []string
}

// AggregatedLogEntry is one distinct (level, message, stable fields, caller)
// with how often it was seen during the window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload published on every flush.
type LogBatch struct {
	FlushedAt time.Time            `json:"flushed_at"`
	Entries   []AggregatedLogEntry `json:"entries"`
}

// LogCollector aggregates Warn and Error lines and publishes them in
// batches, most frequent first.
type LogCollector struct {
	config   *CollectionConfig
	volatile map[string]struct{}
	logMap   map[string]*AggregatedLogEntry
	mutex    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	names := config.VolatileFields
	if names == nil {
		names = DefaultVolatileFields
	}
	volatile := make(map[string]struct{}, len(names))
	for _, n := range names {
		volatile[n] = struct{}{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	collector := &LogCollector{
		config:   config,
		volatile: volatile,
		logMap:   make(map[string]*AggregatedLogEntry),
		ctx:      ctx,
		cancel:   cancel,
	}

	collector.wg.Add(1)
	go collector.periodicFlush()

	return collector
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := d.generateKey(level, message, fields, caller)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if entry, exists := d.logMap[key]; exists {
		entry.Count++
		entry.LastSeen = now
		entry.Fields = fields
	} else {
		d.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(d.logMap) >= d.config.CountThreshold {
		d.flushLocked()
	}
}

func (d *LogCollector) generateKey(level, message string, fields map[string]interface{}, caller string) string {
	stable := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if _, skip := d.volatile[k]; !skip {
			stable[k] = v
		}
	}
	// json.Marshal sorts map keys so equal field sets hash equally
	data, _ := json.Marshal(struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, stable, caller})
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func (d *LogCollector) periodicFlush() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.flush(false)
		case <-d.ctx.Done():
			d.flush(true)
			return
		}
	}
}

func (d *LogCollector) flush(wait bool) {
	d.mutex.Lock()
	batch := d.drainLocked()
	d.mutex.Unlock()
	if batch != nil {
		d.publish(batch, wait)
	}
}

func (d *LogCollector) flushLocked() {
	if batch := d.drainLocked(); batch != nil {
		d.publish(batch, false)
	}
}

func (d *LogCollector) drainLocked() *LogBatch {
	if len(d.logMap) == 0 {
		return nil
	}
	entries := make([]AggregatedLogEntry, 0, len(d.logMap))
	for _, entry := range d.logMap {
		entries = append(entries, *entry)
	}
	d.logMap = make(map[string]*AggregatedLogEntry)

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].FirstSeen.Before(entries[j].FirstSeen)
	})
	return &LogBatch{FlushedAt: time.Now().UTC(), Entries: entries}
}

// publish sends in the background unless wait is set, which the final
// flush on Close uses so nothing is lost at shutdown.
func (d *LogCollector) publish(batch *LogBatch, wait bool) {
	if d.config.Publisher == nil {
		return
	}
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.config.Publisher.PublishMessage(ctx, d.config.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "publish aggregated logs: %v\n", err)
		}
	}
	if wait {
		send()
		return
	}
	go send()
}

// Close stops the flush loop after a last synchronous flush.
func (d *LogCollector) Close() {
	d.cancel()
	d.wg.Wait()
}
