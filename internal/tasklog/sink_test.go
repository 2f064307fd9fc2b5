package tasklog

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

func newTestSink(t *testing.T, queueMax int) *Sink {
	t.Helper()
	s, err := New(&Config{
		BaseDir:       t.TempDir(),
		QueueMaxSize:  queueMax,
		FlushInterval: 10 * time.Millisecond,
		RetentionDays: 7,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func readLines(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatal(err)
		}
		events = append(events, ev)
	}
	return events
}

func TestSinkWritesEventsAndBooksToSeparateFiles(t *testing.T) {
	s := newTestSink(t, 100)

	s.LogEvent("task-1", "TASK_CREATED", PriorityInfo, map[string]interface{}{"qty": 10.0})
	s.LogOrderbook("task-1", &types.Orderbook{
		Venue: "polymarket",
		Token: "777",
		Asks:  []types.Level{{Price: 0.54, Size: 10}},
	})
	s.flush()

	events := readLines(t, filepath.Join(s.baseDir, "task-1", "events.jsonl"))
	if len(events) != 1 || events[0].Type != "TASK_CREATED" {
		t.Fatalf("events = %+v", events)
	}

	books := readLines(t, filepath.Join(s.baseDir, "task-1", "orderbooks.jsonl"))
	if len(books) != 1 || books[0].Type != "ORDERBOOK_SNAPSHOT" {
		t.Fatalf("books = %+v", books)
	}
}

func TestSinkAppendsAcrossFlushes(t *testing.T) {
	s := newTestSink(t, 100)

	s.LogEvent("task-1", "A", PriorityInfo, nil)
	s.flush()
	s.LogEvent("task-1", "B", PriorityInfo, nil)
	s.flush()

	events := readLines(t, filepath.Join(s.baseDir, "task-1", "events.jsonl"))
	if len(events) != 2 || events[0].Type != "A" || events[1].Type != "B" {
		t.Fatalf("events = %+v", events)
	}
}

func TestSinkOverflowDropsLowPriority(t *testing.T) {
	s := newTestSink(t, 2)

	s.LogEvent("task-1", "S1", PrioritySnapshot, nil)
	s.LogEvent("task-1", "S2", PrioritySnapshot, nil)
	// Queue full: a snapshot is dropped, a critical evicts.
	s.LogEvent("task-1", "S3", PrioritySnapshot, nil)
	s.LogEvent("task-1", "CRIT", PriorityCritical, nil)
	s.flush()

	events := readLines(t, filepath.Join(s.baseDir, "task-1", "events.jsonl"))
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Type != "S2" || events[1].Type != "CRIT" {
		t.Fatalf("queue order = %s, %s; want S2, CRIT", events[0].Type, events[1].Type)
	}
}

func TestSinkCriticalNeverEvictsCritical(t *testing.T) {
	s := newTestSink(t, 2)

	s.LogEvent("task-1", "C1", PriorityCritical, nil)
	s.LogEvent("task-1", "C2", PriorityCritical, nil)
	s.LogEvent("task-1", "C3", PriorityCritical, nil) // dropped, queue all-critical
	s.flush()

	events := readLines(t, filepath.Join(s.baseDir, "task-1", "events.jsonl"))
	if len(events) != 2 || events[0].Type != "C1" || events[1].Type != "C2" {
		t.Fatalf("events = %+v", events)
	}
}

func TestWriteSummary(t *testing.T) {
	s := newTestSink(t, 10)

	snap := &types.TaskSnapshot{
		Config: types.TaskConfig{TaskID: "task-9"},
		Status: types.StatusCompleted,
	}
	if err := s.WriteSummary(snap); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(s.baseDir, "task-9", "summary.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got types.TaskSnapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusCompleted {
		t.Fatalf("summary status = %s", got.Status)
	}
}

func TestRetentionGC(t *testing.T) {
	s := newTestSink(t, 10)

	oldDir := filepath.Join(s.baseDir, "old-task")
	if err := os.MkdirAll(oldDir, 0o755); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-8 * 24 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	freshDir := filepath.Join(s.baseDir, "fresh-task")
	if err := os.MkdirAll(freshDir, 0o755); err != nil {
		t.Fatal(err)
	}

	s.gc()

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatal("directory past retention must be removed")
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Fatal("directory inside retention must survive")
	}
}

func TestStartFlushLoop(t *testing.T) {
	s := newTestSink(t, 10)
	s.Start()

	s.LogEvent("task-1", "A", PriorityInfo, nil)
	time.Sleep(50 * time.Millisecond)
	s.Close()

	events := readLines(t, filepath.Join(s.baseDir, "task-1", "events.jsonl"))
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
}
