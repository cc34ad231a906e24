package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SchedulerService runs the recurring maintenance jobs: sweeping expired
// invitations, pruning the activity log, and sending the daily deadline
// digest. The digest takes a database lock per calendar day so only one
// instance sends it.
type SchedulerService struct {
	db        *gorm.DB
	members   *MemberService
	logs      *ActivityLogService
	deadlines *DeadlineService
	config    *SystemConfigService
	events    *EventPublisher

	cronScheduler *cron.Cron
	digestEntryID cron.EntryID
}

func NewSchedulerService(db *gorm.DB, events *EventPublisher) *SchedulerService {
	return &SchedulerService{
		db:        db,
		members:   NewMemberService(db, events),
		logs:      NewActivityLogService(db),
		deadlines: NewDeadlineService(db),
		config:    NewSystemConfigService(db),
		events:    events,
	}
}

// Start registers the jobs and launches the scheduler.
func (s *SchedulerService) Start() {
	s.cronScheduler = cron.New()

	if _, err := s.cronScheduler.AddFunc("0 * * * *", s.sweepExpiredInvitations); err != nil {
		logger.Errorf("[Scheduler] Failed to add invitation sweep: %v", err)
	}
	if _, err := s.cronScheduler.AddFunc("30 3 * * *", s.logs.runCleanup); err != nil {
		logger.Errorf("[Scheduler] Failed to add log cleanup: %v", err)
	}
	s.scheduleDigest()

	s.cronScheduler.Start()
	logger.Infof("[Scheduler] Started")

	// Sweep once at startup so stale invitations never outlive a restart
	// by a full hour.
	go s.sweepExpiredInvitations()
}

func (s *SchedulerService) Stop() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

func (s *SchedulerService) sweepExpiredInvitations() {
	swept, err := s.members.ExpirePendingInvitations()
	if err != nil {
		logger.Errorf("[Scheduler] Invitation sweep failed: %v", err)
		return
	}
	if swept > 0 {
		logger.Infof("[Scheduler] Expired %d stale invitations", swept)
	}
}

// scheduleDigest reads the configured send time and registers the digest
// job. Re-reading the config requires a restart.
func (s *SchedulerService) scheduleDigest() {
	if s.digestEntryID != 0 {
		s.cronScheduler.Remove(s.digestEntryID)
	}

	digestTime := s.config.GetWithDefault("digest_time", "09:00")
	parts := strings.Split(digestTime, ":")
	if len(parts) != 2 {
		logger.Errorf("[Scheduler] Invalid digest_time %q, digest disabled", digestTime)
		return
	}
	cronExpr := fmt.Sprintf("%s %s * * *", parts[1], parts[0])

	entryID, err := s.cronScheduler.AddFunc(cronExpr, s.runDigest)
	if err != nil {
		logger.Errorf("[Scheduler] Failed to add digest job: %v", err)
		return
	}
	s.digestEntryID = entryID
	logger.Infof("[Scheduler] Digest scheduled at %s (cron: %s)", digestTime, cronExpr)
}

func (s *SchedulerService) runDigest() {
	if s.config.GetWithDefault("digest_enabled", "false") != "true" {
		return
	}

	today := time.Now().Format("2006-01-02")
	if !s.tryAcquireLock("daily_digest", today) {
		logger.Infof("[Scheduler] Digest for %s already handled by another instance", today)
		return
	}

	countryCode := s.config.GetWithDefault("digest_country_code", "US")
	days := 3

	var users []models.User
	if err := s.db.Where("is_active = ?", true).Find(&users).Error; err != nil {
		logger.Errorf("[Scheduler] Digest user scan failed: %v", err)
		return
	}

	for _, user := range users {
		deadlines, err := s.deadlines.UpcomingDeadlines(user.ID, days, countryCode)
		if err != nil || len(deadlines) == 0 {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d task(s) due within %d days for %s:", len(deadlines), days, displayName(&user))
		for _, d := range deadlines {
			fmt.Fprintf(&b, "\n- %s (due %s, %d business days left)",
				d.Task.Title, d.DueDate.Format("2006-01-02"), d.BusinessDays)
		}

		s.events.Publish(&Event{
			Type:         EventTaskUpdated,
			TargetUserID: user.ID,
			Detail:       b.String(),
		})
	}
	logger.Infof("[Scheduler] Digest for %s sent", today)
}

// tryAcquireLock inserts a lock row for (name, key). The unique index makes
// the first writer win; everyone else backs off.
func (s *SchedulerService) tryAcquireLock(name, key string) bool {
	hostname, _ := os.Hostname()
	lock := &models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  hostname,
		LockedAt:  time.Now(),
		ExpiresAt: time.Now().AddDate(0, 0, 2),
	}
	if err := s.db.Create(lock).Error; err != nil {
		return false
	}

	// Opportunistic cleanup of locks past their expiry.
	s.db.Where("expires_at < ?", time.Now()).Delete(&models.SchedulerLock{})
	return true
}
