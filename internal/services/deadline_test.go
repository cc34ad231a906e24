package services

import (
	"testing"
	"time"

	"github.com/makerplan/backend/internal/models"
)

func TestIsWorkday(t *testing.T) {
	svc := NewDeadlineService(nil)

	// 2026-08-24 is a Monday, 2026-08-22 a Saturday.
	monday := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		day     time.Time
		country string
		want    bool
	}{
		{"US weekday", monday, "US", true},
		{"US weekend", saturday, "US", false},
		{"US independence day", time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC), "US", false}, // observed Friday
		{"GB christmas", time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC), "GB", false},
		{"unknown country falls back to weekdays", monday, "XX", true},
		{"unknown country weekend", saturday, "XX", false},
		{"CN national day", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), "CN", false},
		{"CN regular weekday", time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC), "CN", true},
		// 2025-09-28 is a Sunday but a statutory make-up workday for
		// the National Day break.
		{"CN shifted working weekend", time.Date(2025, 9, 28, 0, 0, 0, 0, time.UTC), "CN", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.IsWorkday(tt.day, tt.country); got != tt.want {
				t.Errorf("IsWorkday(%s, %s) = %v, want %v", tt.day.Format("2006-01-02"), tt.country, got, tt.want)
			}
		})
	}
}

func TestNextWorkday(t *testing.T) {
	svc := NewDeadlineService(nil)

	// Friday 2026-08-21 -> Monday 2026-08-24.
	friday := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	next := svc.NextWorkday(friday, "US")
	if next.Day() != 24 || next.Month() != time.August {
		t.Errorf("NextWorkday(friday) = %s, want 2026-08-24", next.Format("2006-01-02"))
	}

	// Midweek day advances by one.
	tuesday := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	next = svc.NextWorkday(tuesday, "US")
	if next.Day() != 26 {
		t.Errorf("NextWorkday(tuesday) = %s, want 2026-08-26", next.Format("2006-01-02"))
	}
}

func TestBusinessDaysUntil(t *testing.T) {
	svc := NewDeadlineService(nil)

	if got := svc.BusinessDaysUntil(time.Now(), "US"); got != 0 {
		t.Errorf("due today = %d, want 0", got)
	}
	if got := svc.BusinessDaysUntil(time.Now().AddDate(0, 0, -3), "US"); got != 0 {
		t.Errorf("past due = %d, want 0", got)
	}

	// A seven-calendar-day window always spans exactly five weekdays,
	// wherever it starts; holidays can only reduce that.
	got := svc.BusinessDaysUntil(time.Now().AddDate(0, 0, 7), "XX")
	if got != 5 {
		t.Errorf("seven days out (weekday calendar) = %d, want 5", got)
	}

	got = svc.BusinessDaysUntil(time.Now().AddDate(0, 0, 1), "XX")
	if got < 0 || got > 1 {
		t.Errorf("tomorrow = %d, want 0 or 1", got)
	}
}

func TestSupportedCountries(t *testing.T) {
	svc := NewDeadlineService(nil)

	codes := svc.SupportedCountries()
	want := map[string]bool{"CN": false, "US": false, "GB": false, "DE": false, "FR": false, "JP": false, "AU": false, "CA": false}
	for _, code := range codes {
		if _, ok := want[code]; !ok {
			t.Errorf("unexpected country code %q", code)
			continue
		}
		want[code] = true
	}
	for code, seen := range want {
		if !seen {
			t.Errorf("missing country code %q", code)
		}
	}
}

func TestUpcomingDeadlines(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")
	project := createTestProject(t, db, alice.ID, "Greenhouse")
	svc := NewDeadlineService(db)

	soon := time.Now().AddDate(0, 0, 3)
	far := time.Now().AddDate(0, 0, 30)

	seedTask := func(title string, creatorID uint, projectID *uint, due *time.Time, status string) {
		task := &models.Task{
			Title:     title,
			CreatorID: creatorID,
			ProjectID: projectID,
			DueDate:   due,
			Status:    status,
		}
		if err := db.Create(task).Error; err != nil {
			t.Fatalf("create task %s: %v", title, err)
		}
	}

	seedTask("due soon", alice.ID, &project.ID, &soon, models.TaskStatusTodo)
	seedTask("due later", alice.ID, &project.ID, &far, models.TaskStatusTodo)
	seedTask("already done", alice.ID, &project.ID, &soon, models.TaskStatusDone)
	seedTask("no deadline", alice.ID, &project.ID, nil, models.TaskStatusTodo)
	seedTask("someone else's", bob.ID, nil, &soon, models.TaskStatusTodo)

	deadlines, err := svc.UpcomingDeadlines(alice.ID, 7, "US")
	if err != nil {
		t.Fatalf("upcoming deadlines: %v", err)
	}
	if len(deadlines) != 1 {
		t.Fatalf("deadlines = %d, want 1", len(deadlines))
	}
	if deadlines[0].Task.Title != "due soon" {
		t.Errorf("unexpected task %q", deadlines[0].Task.Title)
	}
	if deadlines[0].BusinessDays < 1 || deadlines[0].BusinessDays > 3 {
		t.Errorf("business days = %d, want between 1 and 3", deadlines[0].BusinessDays)
	}
}
