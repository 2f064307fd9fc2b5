// Package tasklog persists per-task trade history as append-only JSONL
// files: one events.jsonl and one orderbooks.jsonl per task directory,
// plus a summary.json written when the task ends. Events pass through a
// bounded priority queue so a burst of book snapshots can never starve a
// state-transition record.
package tasklog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Priority orders queue eviction: snapshots go first, critical records
// are never dropped while anything else remains.
type Priority int

const (
	PrioritySnapshot Priority = iota
	PriorityInfo
	PriorityCritical
)

// Event is one JSONL record.
type Event struct {
	TaskID    string                 `json:"taskId"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`

	priority Priority
	book     bool // routes to orderbooks.jsonl
}

// Sink is the process-wide log sink.
type Sink struct {
	baseDir       string
	queueMax      int
	flushInterval time.Duration
	retention     time.Duration
	logger        *zap.Logger

	mu    sync.Mutex
	queue []*Event

	closed chan struct{}
	done   chan struct{}

	now func() time.Time
}

// Config holds sink configuration.
type Config struct {
	BaseDir       string
	QueueMaxSize  int
	FlushInterval time.Duration
	RetentionDays int
	Logger        *zap.Logger
}

// New creates a sink and runs retention GC once over the base directory.
func New(cfg *Config) (*Sink, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, err
	}

	s := &Sink{
		baseDir:       cfg.BaseDir,
		queueMax:      cfg.QueueMaxSize,
		flushInterval: cfg.FlushInterval,
		retention:     time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		logger:        cfg.Logger,
		closed:        make(chan struct{}),
		done:          make(chan struct{}),
		now:           time.Now,
	}
	s.gc()
	return s, nil
}

// Start runs the flush loop and the daily retention sweep.
func (s *Sink) Start() {
	go func() {
		defer close(s.done)
		flush := time.NewTicker(s.flushInterval)
		defer flush.Stop()
		sweep := time.NewTicker(24 * time.Hour)
		defer sweep.Stop()

		for {
			select {
			case <-s.closed:
				s.flush()
				return
			case <-flush.C:
				s.flush()
			case <-sweep.C:
				s.gc()
			}
		}
	}()
}

// Close flushes the queue and stops the loop.
func (s *Sink) Close() {
	close(s.closed)
	<-s.done
}

// LogEvent records a structured task event.
func (s *Sink) LogEvent(taskID, eventType string, priority Priority, fields map[string]interface{}) {
	s.enqueue(&Event{
		TaskID:    taskID,
		Type:      eventType,
		Timestamp: s.now(),
		Fields:    fields,
		priority:  priority,
	})
}

// LogOrderbook records a book snapshot for post-trade analysis.
func (s *Sink) LogOrderbook(taskID string, book *types.Orderbook) {
	s.enqueue(&Event{
		TaskID:    taskID,
		Type:      "ORDERBOOK_SNAPSHOT",
		Timestamp: s.now(),
		Fields: map[string]interface{}{
			"venue":      book.Venue,
			"token":      book.Token,
			"bids":       book.Bids,
			"asks":       book.Asks,
			"source":     book.Source,
			"observedAt": book.ObservedAt,
		},
		priority: PrioritySnapshot,
		book:     true,
	})
}

// WriteSummary persists the final task snapshot. Written synchronously:
// a summary must survive even an immediate shutdown.
func (s *Sink) WriteSummary(snap *types.TaskSnapshot) error {
	dir := filepath.Join(s.baseDir, snap.Config.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "summary.json"), data, 0o644)
}

func (s *Sink) enqueue(ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) < s.queueMax {
		s.queue = append(s.queue, ev)
		return
	}

	// Queue full. A CRITICAL event evicts the oldest lower-priority
	// entry; anything else is dropped.
	if ev.priority == PriorityCritical {
		for i, queued := range s.queue {
			if queued.priority < PriorityCritical {
				copy(s.queue[i:], s.queue[i+1:])
				s.queue[len(s.queue)-1] = ev
				EvictionsTotal.Inc()
				return
			}
		}
	}
	DropsTotal.Inc()
}

func (s *Sink) flush() {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	// Group by destination file to open each once per flush.
	type dest struct {
		taskID string
		book   bool
	}
	grouped := make(map[dest][]*Event)
	for _, ev := range batch {
		d := dest{taskID: ev.TaskID, book: ev.book}
		grouped[d] = append(grouped[d], ev)
	}

	for d, events := range grouped {
		name := "events.jsonl"
		if d.book {
			name = "orderbooks.jsonl"
		}
		if err := s.appendAll(d.taskID, name, events); err != nil {
			s.logger.Error("tasklog-flush-failed",
				zap.String("task", d.taskID),
				zap.Error(err))
		}
	}
	FlushesTotal.Inc()
}

func (s *Sink) appendAll(taskID, name string, events []*Event) error {
	dir := filepath.Join(s.baseDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		EventsWrittenTotal.Inc()
	}
	return nil
}

// gc removes task directories older than the retention window.
func (s *Sink) gc() {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		s.logger.Warn("tasklog-gc-failed", zap.Error(err))
		return
	}

	cutoff := s.now().Add(-s.retention)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.baseDir, e.Name())
			if err := os.RemoveAll(path); err != nil {
				s.logger.Warn("tasklog-gc-remove-failed",
					zap.String("dir", path),
					zap.Error(err))
				continue
			}
			s.logger.Info("tasklog-dir-expired", zap.String("dir", path))
		}
	}
}
