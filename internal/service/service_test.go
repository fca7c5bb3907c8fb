package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/remindbot/internal/repository"
	"github.com/Kerhoff/remindbot/internal/repository/jsonfile"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(t *testing.T) (*Service, *testClock, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reminders.json")
	clock := &testClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)}
	svc := New(jsonfile.NewReminderStore(path), newTestLogger(), WithClock(clock.Now))
	return svc, clock, path
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, path := newTestService(t)

	cases := []struct{ days, name string }{
		{"abc", "Rent"},
		{"0", "Rent"},
		{"-2", "Rent"},
		{"3", "   "},
		{"", "Rent"},
	}
	for _, c := range cases {
		if _, err := svc.Create(ctx, "1", c.days, c.name); !errors.Is(err, ErrUsage) {
			t.Errorf("Create(%q, %q): expected ErrUsage, got %v", c.days, c.name, err)
		}
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no document after rejected creates, stat err=%v", err)
	}
}

func TestCreateThenList(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	for i, days := range []string{"1", "7", "30"} {
		created, err := svc.Create(ctx, "1", days, fmt.Sprintf("task %d", i))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID == "" {
			t.Error("expected an id on the created reminder")
		}
		want := clock.Now().AddDate(0, 0, created.IntervalDays)
		if !created.NextDue.Equal(want) {
			t.Errorf("expected next_due %v, got %v", want, created.NextDue)
		}

		list, err := svc.List(ctx, "1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != i+1 {
			t.Fatalf("expected %d reminders, got %d", i+1, len(list))
		}
		if list[i].ID != created.ID {
			t.Errorf("expected new reminder last, got %+v", list[i])
		}
	}
}

func TestCreateMarkDoneScenario(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	if _, err := svc.Create(ctx, "1", "3", "Rent"); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := svc.Due(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected nothing due right after create, got %d", len(due))
	}

	clock.Advance(3 * 24 * time.Hour)
	due, err = svc.Due(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ChatID != "1" || due[0].Reminder.Name != "Rent" {
		t.Fatalf("expected Rent due for chat 1, got %+v", due)
	}

	updated, err := svc.MarkDone(ctx, "1", "Rent")
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if want := clock.Now().AddDate(0, 0, 3); !updated.NextDue.Equal(want) {
		t.Errorf("expected next_due %v, got %v", want, updated.NextDue)
	}

	due, err = svc.Due(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected nothing due after mark done, got %d", len(due))
	}
}

func TestMarkDoneIgnoresHowOverdue(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	created, _ := svc.Create(ctx, "1", "2", "Gym")
	clock.Advance(40 * 24 * time.Hour)

	updated, err := svc.MarkDoneByID(ctx, "1", created.ID)
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if want := clock.Now().AddDate(0, 0, 2); !updated.NextDue.Equal(want) {
		t.Errorf("expected %v, got %v", want, updated.NextDue)
	}
}

func TestPostponeFixedOffset(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	created, _ := svc.Create(ctx, "1", "30", "Rent")
	clock.Advance(31 * 24 * time.Hour)

	byName, err := svc.Postpone(ctx, "1", "Rent")
	if err != nil {
		t.Fatalf("postpone: %v", err)
	}
	if want := clock.Now().Add(12 * time.Hour); !byName.NextDue.Equal(want) {
		t.Errorf("expected %v, got %v", want, byName.NextDue)
	}

	clock.Advance(time.Hour)
	byID, err := svc.PostponeByID(ctx, "1", created.ID)
	if err != nil {
		t.Fatalf("postpone by id: %v", err)
	}
	if want := clock.Now().Add(12 * time.Hour); !byID.NextDue.Equal(want) {
		t.Errorf("expected %v, got %v", want, byID.NextDue)
	}
}

func TestRescheduleNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	svc.Create(ctx, "1", "3", "Rent")

	if _, err := svc.MarkDone(ctx, "1", "Gas"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Postpone(ctx, "2", "Rent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other chat, got %v", err)
	}
	if _, err := svc.MarkDoneByID(ctx, "1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound by id, got %v", err)
	}
}

func TestDuplicateNamesAddressedByID(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	first, _ := svc.Create(ctx, "1", "1", "Pills")
	second, _ := svc.Create(ctx, "1", "5", "Pills")
	clock.Advance(6 * 24 * time.Hour)

	if _, err := svc.MarkDoneByID(ctx, "1", second.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	due, _ := svc.Due(ctx)
	if len(due) != 1 || due[0].Reminder.ID != first.ID {
		t.Errorf("expected only the first Pills reminder due, got %+v", due)
	}
}

func TestListForDeletionNoReminders(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.ListForDeletion(ctx, "1"); !errors.Is(err, ErrNoReminders) {
		t.Errorf("expected ErrNoReminders, got %v", err)
	}

	created, _ := svc.Create(ctx, "1", "3", "Rent")
	svc.DeleteAt(ctx, "1", 0)
	if _, err := svc.ListForDeletion(ctx, "1"); !errors.Is(err, ErrNoReminders) {
		t.Errorf("expected ErrNoReminders after deleting %s, got %v", created.ID, err)
	}
}

func TestDeleteAtShiftsIndices(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	for _, name := range []string{"a", "b", "c"} {
		svc.Create(ctx, "1", "1", name)
	}

	entries, err := svc.ListForDeletion(ctx, "1")
	if err != nil {
		t.Fatalf("list for deletion: %v", err)
	}
	if len(entries) != 3 || entries[1].Index != 1 || entries[1].Name != "b" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	deleted, err := svc.DeleteAt(ctx, "1", 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Name != "b" {
		t.Errorf("expected b deleted, got %s", deleted.Name)
	}

	list, _ := svc.List(ctx, "1")
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "c" {
		t.Errorf("expected [a c], got %+v", list)
	}

	if _, err := svc.DeleteAt(ctx, "1", 2); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}
	if _, err := svc.DeleteAt(ctx, "1", -1); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex for negative index, got %v", err)
	}
}

func TestDeleteAtExpectingDetectsStaleIndex(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	svc.Create(ctx, "1", "1", "a")
	svc.Create(ctx, "1", "1", "b")

	entries, _ := svc.ListForDeletion(ctx, "1")
	if _, err := svc.DeleteAt(ctx, "1", 0); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// entries[1] was rendered at index 1, which is now out of range
	if _, err := svc.DeleteAtExpecting(ctx, "1", entries[1].Index, entries[1].ID); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}

	svc.Create(ctx, "1", "1", "c")
	// index 0 now holds b, not a
	if _, err := svc.DeleteAtExpecting(ctx, "1", entries[0].Index, entries[0].ID); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex for replaced entry, got %v", err)
	}

	deleted, err := svc.DeleteAtExpecting(ctx, "1", 0, entries[1].ID)
	if err != nil {
		t.Fatalf("delete expecting: %v", err)
	}
	if deleted.Name != "b" {
		t.Errorf("expected b deleted, got %s", deleted.Name)
	}
}

func TestDueDetection(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	svc.Create(ctx, "2", "1", "soon")
	svc.Create(ctx, "1", "1", "soon")
	svc.Create(ctx, "1", "10", "later")
	clock.Advance(24 * time.Hour)

	due, err := svc.Due(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due, got %+v", due)
	}
	if due[0].ChatID != "1" || due[1].ChatID != "2" {
		t.Errorf("expected chats in sorted order, got %s %s", due[0].ChatID, due[1].ChatID)
	}
	for _, d := range due {
		if d.Reminder.Name != "soon" {
			t.Errorf("unexpected due reminder %+v", d)
		}
	}
}

func TestCorruptDocumentIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	svc, _, path := newTestService(t)

	garbage := []byte("{not json")
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, "1", "3", "Rent"); !errors.Is(err, repository.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, err := svc.Due(ctx); !errors.Is(err, repository.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt from due, got %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != string(garbage) {
		t.Errorf("corrupt document was overwritten: %s", data)
	}
}

func TestLegacyRemindersGetPersistentIDs(t *testing.T) {
	ctx := context.Background()
	svc, _, path := newTestService(t)

	legacy := `{"1": [{"nombre": "Alquiler", "dias": "30", "proximo_aviso": "2026-01-01T10:00:00"}]}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	due, err := svc.Due(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].Reminder.ID == "" {
		t.Fatalf("expected the legacy reminder due with an id, got %+v", due)
	}

	if _, err := svc.MarkDoneByID(ctx, "1", due[0].Reminder.ID); err != nil {
		t.Errorf("expected the assigned id to be persisted: %v", err)
	}
}

func TestConcurrentCreatesKeepEveryUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat := fmt.Sprintf("%d", i%4)
			if _, err := svc.Create(ctx, chat, "1", fmt.Sprintf("r%d", i)); err != nil {
				t.Errorf("create: %v", err)
			}
		}(i)
	}
	wg.Wait()

	book, err := svc.Book(ctx)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	total := 0
	for _, list := range book {
		total += len(list)
	}
	if total != n {
		t.Errorf("expected %d reminders, got %d", n, total)
	}
}

func TestConcurrentDeleteAndMarkDone(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	var ids []string
	for i := 0; i < 20; i++ {
		r, _ := svc.Create(ctx, "1", "1", fmt.Sprintf("r%d", i))
		ids = append(ids, r.ID)
	}
	clock.Advance(48 * time.Hour)

	var wg sync.WaitGroup
	// delete the first ten while the last ten get marked done
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.DeleteAt(ctx, "1", 0); err != nil {
				t.Errorf("delete: %v", err)
			}
		}()
		go func(id string) {
			defer wg.Done()
			if _, err := svc.MarkDoneByID(ctx, "1", id); err != nil {
				t.Errorf("mark done: %v", err)
			}
		}(ids[10+i])
	}
	wg.Wait()

	list, err := svc.List(ctx, "1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 10 {
		t.Fatalf("expected 10 reminders left, got %d", len(list))
	}
	due, _ := svc.Due(ctx)
	if len(due) != 0 {
		t.Errorf("expected every remaining reminder marked done, %d still due", len(due))
	}
}

func TestCreateRejectsIntervalPastYear9999(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.Create(ctx, "1", "5", "Gym"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, "2", "3000000", "Far"); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage for a huge interval, got %v", err)
	}

	if _, err := svc.Create(ctx, "1", "1", "Other"); err != nil {
		t.Fatalf("create after rejected interval: %v", err)
	}
	list, err := svc.List(ctx, "1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 reminders, got %d", len(list))
	}
	if other, _ := svc.List(ctx, "2"); len(other) != 0 {
		t.Errorf("expected the rejected reminder not to be stored, got %+v", other)
	}
}

func TestReadOnlyNeverWrites(t *testing.T) {
	ctx := context.Background()
	_, clock, path := newTestService(t)
	svc := New(jsonfile.NewReminderStore(path), newTestLogger(), WithClock(clock.Now), ReadOnly())

	legacy := `{"1": [{"nombre": "Alquiler", "dias": "30", "proximo_aviso": "2026-01-01T10:00:00"}]}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	due, err := svc.Due(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due reminder, got %d", len(due))
	}
	if _, err := svc.Create(ctx, "1", "3", "Gym"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != legacy {
		t.Errorf("document was rewritten:\n%s", data)
	}
}
