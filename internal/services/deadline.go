package services

import (
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/makerplan/backend/internal/models"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/us"
	"gorm.io/gorm"
)

// DeadlineService answers business-day questions for task due dates and
// produces the upcoming-deadline view used by the daily digest. China uses
// the statutory holiday table (including shifted working weekends); other
// supported countries use their public-holiday calendars; anything else
// falls back to plain weekdays.
type DeadlineService struct {
	db        *gorm.DB
	calendars map[string]*cal.BusinessCalendar
}

func NewDeadlineService(db *gorm.DB) *DeadlineService {
	s := &DeadlineService{
		db:        db,
		calendars: make(map[string]*cal.BusinessCalendar),
	}
	s.initCalendars()
	return s
}

func (s *DeadlineService) initCalendars() {
	s.calendars["US"] = s.createCalendar("United States", us.Holidays...)
	s.calendars["GB"] = s.createCalendar("United Kingdom", gb.Holidays...)
	s.calendars["DE"] = s.createCalendar("Germany", de.Holidays...)
	s.calendars["FR"] = s.createCalendar("France", fr.Holidays...)
	s.calendars["JP"] = s.createCalendar("Japan", jp.Holidays...)
	s.calendars["AU"] = s.createCalendar("Australia", au.HolidaysNSW...)
	s.calendars["CA"] = s.createCalendar("Canada", ca.Holidays...)
}

func (s *DeadlineService) createCalendar(name string, holidays ...*cal.Holiday) *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.Name = name
	c.AddHoliday(holidays...)
	return c
}

// IsWorkday reports whether t is a working day in the given country.
func (s *DeadlineService) IsWorkday(t time.Time, countryCode string) bool {
	if countryCode == "CN" {
		return s.isWorkdayChina(t)
	}
	c, ok := s.calendars[countryCode]
	if !ok {
		return !cal.IsWeekend(t)
	}
	return c.IsWorkday(t)
}

func (s *DeadlineService) isWorkdayChina(t time.Time) bool {
	solar := calendar.NewSolarFromDate(t)
	holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay())
	if holiday != nil {
		return holiday.IsWork()
	}
	weekday := t.Weekday()
	return weekday != time.Saturday && weekday != time.Sunday
}

// NextWorkday returns the first working day strictly after t.
func (s *DeadlineService) NextWorkday(t time.Time, countryCode string) time.Time {
	day := t.AddDate(0, 0, 1)
	for !s.IsWorkday(day, countryCode) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// BusinessDaysUntil counts the working days from today (exclusive) to due
// (inclusive). A due date today or in the past yields 0.
func (s *DeadlineService) BusinessDaysUntil(due time.Time, countryCode string) int {
	today := time.Now().Truncate(24 * time.Hour)
	target := due.Truncate(24 * time.Hour)
	if !target.After(today) {
		return 0
	}

	days := 0
	for d := today.AddDate(0, 0, 1); !d.After(target); d = d.AddDate(0, 0, 1) {
		if s.IsWorkday(d, countryCode) {
			days++
		}
	}
	return days
}

// SupportedCountries lists the calendar codes the service understands.
func (s *DeadlineService) SupportedCountries() []string {
	codes := []string{"CN"}
	for code := range s.calendars {
		codes = append(codes, code)
	}
	return codes
}

// UpcomingDeadline is a task due within the digest window.
type UpcomingDeadline struct {
	Task         models.Task `json:"task"`
	DueDate      time.Time   `json:"due_date"`
	BusinessDays int         `json:"business_days"`
}

// UpcomingDeadlines returns the user's visible unfinished tasks due within
// the next `days` calendar days, annotated with remaining business days.
func (s *DeadlineService) UpcomingDeadlines(userID uint, days int, countryCode string) ([]UpcomingDeadline, error) {
	if days <= 0 {
		days = 7
	}
	horizon := time.Now().AddDate(0, 0, days)

	projectIDs, err := ReadableProjectIDs(s.db, userID)
	if err != nil {
		return nil, err
	}

	query := s.db.Model(&models.Task{}).
		Where("status <> ?", models.TaskStatusDone).
		Where("due_date IS NOT NULL AND due_date <= ?", horizon)
	if len(projectIDs) > 0 {
		query = query.Where("creator_id = ? OR project_id IN ?", userID, projectIDs)
	} else {
		query = query.Where("creator_id = ?", userID)
	}

	var tasks []models.Task
	if err := query.Order("due_date ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	deadlines := make([]UpcomingDeadline, 0, len(tasks))
	for _, t := range tasks {
		deadlines = append(deadlines, UpcomingDeadline{
			Task:         t,
			DueDate:      *t.DueDate,
			BusinessDays: s.BusinessDaysUntil(*t.DueDate, countryCode),
		})
	}
	return deadlines, nil
}
