package services

import (
	"testing"
)

func TestSystemConfig_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSystemConfigService(db)

	if err := svc.Set("invitation_expiry_days", "10"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	value, err := svc.Get("invitation_expiry_days")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if value != "10" {
		t.Errorf("Get() = %q, expected %q", value, "10")
	}

	// Set on an existing key overwrites
	if err := svc.Set("invitation_expiry_days", "21"); err != nil {
		t.Fatalf("Set() overwrite error: %v", err)
	}
	value, _ = svc.Get("invitation_expiry_days")
	if value != "21" {
		t.Errorf("Get() after overwrite = %q, expected %q", value, "21")
	}
}

func TestSystemConfig_GetWithDefault(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSystemConfigService(db)

	if got := svc.GetWithDefault("missing_key", "fallback"); got != "fallback" {
		t.Errorf("GetWithDefault() for missing key = %q, expected %q", got, "fallback")
	}

	if err := svc.Set("present_key", "stored"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if got := svc.GetWithDefault("present_key", "fallback"); got != "stored" {
		t.Errorf("GetWithDefault() for present key = %q, expected %q", got, "stored")
	}
}

func TestLDAPConfigResponse_Defaults(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSystemConfigService(db)

	cfg := svc.GetLDAPConfig()
	if cfg.Enabled {
		t.Error("Enabled should be false by default")
	}
	if cfg.Port != 389 {
		t.Errorf("default port should be 389, got %d", cfg.Port)
	}
	if cfg.UserFilter != "(uid=%s)" {
		t.Errorf("default UserFilter should be (uid=%%s), got %s", cfg.UserFilter)
	}
	if cfg.PasswordSet {
		t.Error("PasswordSet should be false by default")
	}
}

func TestUpdateLDAPConfig_PartialUpdate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSystemConfigService(db)

	enabled := true
	host := "ldap.example.com"
	port := 636

	err := svc.UpdateLDAPConfig(&UpdateLDAPConfigRequest{
		Enabled: &enabled,
		Host:    &host,
		Port:    &port,
	})
	if err != nil {
		t.Fatalf("UpdateLDAPConfig() error: %v", err)
	}

	cfg := svc.GetLDAPConfig()
	if !cfg.Enabled {
		t.Error("Enabled should be true after update")
	}
	if cfg.Host != "ldap.example.com" {
		t.Errorf("Host = %q, expected %q", cfg.Host, "ldap.example.com")
	}
	if cfg.Port != 636 {
		t.Errorf("Port = %d, expected 636", cfg.Port)
	}
	// Untouched fields keep their defaults
	if cfg.UserFilter != "(uid=%s)" {
		t.Errorf("UserFilter should keep its default, got %q", cfg.UserFilter)
	}
	if cfg.PasswordSet {
		t.Error("PasswordSet should remain false when no password was sent")
	}
}

func TestUpdateLDAPConfig_EmptyPasswordIgnored(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSystemConfigService(db)

	password := "s3cret"
	if err := svc.UpdateLDAPConfig(&UpdateLDAPConfigRequest{BindPassword: &password}); err != nil {
		t.Fatalf("UpdateLDAPConfig() error: %v", err)
	}
	if !svc.GetLDAPConfig().PasswordSet {
		t.Fatal("PasswordSet should be true after storing a password")
	}

	// An empty password in a later update must not clear the stored one
	empty := ""
	if err := svc.UpdateLDAPConfig(&UpdateLDAPConfigRequest{BindPassword: &empty}); err != nil {
		t.Fatalf("UpdateLDAPConfig() error: %v", err)
	}
	if !svc.GetLDAPConfig().PasswordSet {
		t.Error("PasswordSet should survive an empty-password update")
	}
}
