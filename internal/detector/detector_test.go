package detector

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
	gormrepository "github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository/gorm"
)

var dbSeq int64

func newStore(t *testing.T) *gormrepository.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&dbSeq, 1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := gdb.AutoMigrate(&models.StatusEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormrepository.New(gdb)
}

// fixedClock always returns the same instant, so ordering relies on the
// detector bumping created_at.
func fixedClock() func() time.Time {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func listAsc(t *testing.T, store *gormrepository.Store, label string) []models.StatusEvent {
	t.Helper()
	items, err := store.ListStatusEvents(context.Background(), repository.ListStatusEventsParams{Label: label, Limit: 500})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

func TestDetectAndRecord_Sequence(t *testing.T) {
	store := newStore(t)
	d := &Detector{Repo: store, Now: fixedClock()}
	ctx := context.Background()

	readings := []bool{true, true, false, false, true}
	created := 0
	for _, r := range readings {
		ev, err := d.DetectAndRecord(ctx, "power", r)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if ev != nil {
			created++
		}
	}
	if created != 3 {
		t.Fatalf("created=%d want 3", created)
	}

	items := listAsc(t, store, "power")
	want := []bool{true, false, true}
	if len(items) != len(want) {
		t.Fatalf("events=%d want %d", len(items), len(want))
	}
	for i, ev := range items {
		if ev.Value != want[i] {
			t.Fatalf("event[%d].value=%v want %v", i, ev.Value, want[i])
		}
		if i > 0 && !ev.CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("event[%d] created_at %s not after %s", i, ev.CreatedAt, items[i-1].CreatedAt)
		}
	}
}

func TestDetectAndRecord_OrderSurvivesMillisecondColumns(t *testing.T) {
	store := newStore(t)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	d := &Detector{Repo: store, Now: func() time.Time {
		at = at.Add(100 * time.Microsecond)
		return at
	}}
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := d.DetectAndRecord(ctx, "power", i%2 == 0); err != nil {
			t.Fatalf("err=%v", err)
		}
	}
	items := listAsc(t, store, "power")
	if len(items) != 6 {
		t.Fatalf("events=%d want 6", len(items))
	}
	for i, ev := range items {
		if !ev.CreatedAt.Equal(ev.CreatedAt.Truncate(time.Millisecond)) {
			t.Fatalf("event[%d] created_at %s has sub-millisecond digits", i, ev.CreatedAt)
		}
		if i > 0 && !ev.CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("event[%d] created_at %s not after %s", i, ev.CreatedAt, items[i-1].CreatedAt)
		}
	}
}

func TestDetectAndRecord_Idempotent(t *testing.T) {
	store := newStore(t)
	d := &Detector{Repo: store}
	ctx := context.Background()

	first, err := d.DetectAndRecord(ctx, "power", false)
	if err != nil || first == nil {
		t.Fatalf("first=%v err=%v", first, err)
	}
	for i := 0; i < 10; i++ {
		ev, err := d.DetectAndRecord(ctx, "power", false)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if ev != nil {
			t.Fatalf("replay %d created %+v", i, ev)
		}
	}
	if n := len(listAsc(t, store, "power")); n != 1 {
		t.Fatalf("events=%d want 1", n)
	}
}

func TestDetectAndRecord_LabelsAreIndependent(t *testing.T) {
	store := newStore(t)
	d := &Detector{Repo: store}
	ctx := context.Background()

	if ev, _ := d.DetectAndRecord(ctx, "power", true); ev == nil {
		t.Fatalf("power: expected event")
	}
	if ev, _ := d.DetectAndRecord(ctx, "boiler", true); ev == nil {
		t.Fatalf("boiler: expected event")
	}
}

func TestDetectAndRecord_NoAdjacentDuplicates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	store := newStore(t)
	d := &Detector{Repo: store, Now: fixedClock()}
	var run int64

	properties.Property("adjacent events differ", prop.ForAll(
		func(readings []bool) bool {
			label := fmt.Sprintf("prop-%d", atomic.AddInt64(&run, 1))
			for _, r := range readings {
				if _, err := d.DetectAndRecord(context.Background(), label, r); err != nil {
					return false
				}
			}
			items := listAsc(t, store, label)
			for i := 1; i < len(items); i++ {
				if items[i].Value == items[i-1].Value {
					return false
				}
			}
			// Transitions in the input equal recorded events.
			want := 0
			for i, r := range readings {
				if i == 0 || r != readings[i-1] {
					want++
				}
			}
			return len(items) == want
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
