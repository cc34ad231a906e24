package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/middleware"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type CalendarHandler struct {
	deadlineService *services.DeadlineService
}

func NewCalendarHandler(db *gorm.DB) *CalendarHandler {
	return &CalendarHandler{
		deadlineService: services.NewDeadlineService(db),
	}
}

// UpcomingDeadlines lists the caller's unfinished tasks due soon
// GET /api/calendar/deadlines?days=7&country=US
func (h *CalendarHandler) UpcomingDeadlines(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			response.BadRequest(c, "days must be between 1 and 90")
			return
		}
		days = parsed
	}
	country := c.DefaultQuery("country", "US")

	deadlines, err := h.deadlineService.UpcomingDeadlines(middleware.GetUserID(c), days, country)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, deadlines)
}

// IsWorkday reports whether a date is a working day in a country
// GET /api/calendar/workday?date=2026-09-01&country=US
func (h *CalendarHandler) IsWorkday(c *gin.Context) {
	raw := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	country := c.DefaultQuery("country", "US")

	response.Success(c, gin.H{
		"date":    raw,
		"country": country,
		"workday": h.deadlineService.IsWorkday(date, country),
	})
}

// Countries lists the supported calendar country codes
// GET /api/calendar/countries
func (h *CalendarHandler) Countries(c *gin.Context) {
	response.Success(c, h.deadlineService.SupportedCountries())
}
