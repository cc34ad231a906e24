package services

import (
	"testing"

	"github.com/makerplan/backend/internal/config"
)

func TestLDAPIsEnabled(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLDAPService(db)

	saved := config.GlobalConfig
	config.GlobalConfig = nil
	t.Cleanup(func() { config.GlobalConfig = saved })

	if svc.IsEnabled() {
		t.Error("LDAP should be disabled by default")
	}

	cfgSvc := NewSystemConfigService(db)
	if err := cfgSvc.Set("ldap_enabled", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !svc.IsEnabled() {
		t.Error("IsEnabled() = false after enabling via system config")
	}

	// The database setting wins over the file config either way.
	config.GlobalConfig = &config.Config{LDAP: config.LDAPConfig{Enabled: true}}
	if err := cfgSvc.Set("ldap_enabled", "false"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if svc.IsEnabled() {
		t.Error("IsEnabled() = true, database override should disable LDAP")
	}
}

func TestLDAPAuthenticate_Disabled(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLDAPService(db)

	saved := config.GlobalConfig
	config.GlobalConfig = nil
	t.Cleanup(func() { config.GlobalConfig = saved })

	if _, err := svc.Authenticate("alice", "secret"); err == nil {
		t.Error("Authenticate() should fail while LDAP is disabled")
	}
}
