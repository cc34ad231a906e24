package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// One-shot maintenance sweep: marks overdue pending invitations as expired.
// The server runs the same sweep hourly; this script exists for backfills
// after the scheduler has been down.

type ProjectMember struct {
	ID               uint   `gorm:"primaryKey"`
	ProjectID        uint   `gorm:"index"`
	InvitationEmail  string `gorm:"size:255"`
	InvitationStatus string `gorm:"size:20"`
	ExpiresAt        *time.Time
}

func (ProjectMember) TableName() string {
	return "project_members"
}

func main() {
	driver := flag.String("driver", "sqlite", "database driver (sqlite or mysql)")
	dsn := flag.String("dsn", "makerplan.db", "database DSN")
	dryRun := flag.Bool("dry-run", false, "report what would be expired without updating")
	flag.Parse()

	var dialector gorm.Dialector
	switch *driver {
	case "mysql":
		dialector = mysql.Open(*dsn)
	case "sqlite":
		dialector = sqlite.Open(*dsn)
	default:
		log.Fatalf("unsupported driver %q", *driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	now := time.Now()
	overdue := db.Model(&ProjectMember{}).
		Where("invitation_status = ? AND expires_at IS NOT NULL AND expires_at < ?", "pending", now)

	var sample []ProjectMember
	if err := overdue.Session(&gorm.Session{}).Limit(10).Find(&sample).Error; err != nil {
		log.Fatalf("Failed to query invitations: %v", err)
	}

	fmt.Println("Sample overdue invitations (showing first 10):")
	fmt.Printf("%-5s %-8s %-40s %-20s\n", "ID", "Project", "Email", "ExpiresAt")
	for _, m := range sample {
		expires := ""
		if m.ExpiresAt != nil {
			expires = m.ExpiresAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-5d %-8d %-40s %-20s\n", m.ID, m.ProjectID, m.InvitationEmail, expires)
	}
	fmt.Println("")

	var total int64
	overdue.Count(&total)
	fmt.Printf("Total overdue pending invitations: %d\n", total)

	if *dryRun {
		fmt.Println("Dry run, nothing updated.")
		return
	}

	result := db.Model(&ProjectMember{}).
		Where("invitation_status = ? AND expires_at IS NOT NULL AND expires_at < ?", "pending", now).
		Update("invitation_status", "expired")
	if result.Error != nil {
		log.Fatalf("Failed to expire invitations: %v", result.Error)
	}

	fmt.Printf("Expired %d invitations.\n", result.RowsAffected)
}
