package auth

import (
	"path/filepath"
	"testing"

	"github.com/bibmap/bibmap-api/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	token, err := CreateToken(42, "alice")
	if err != nil {
		t.Fatal(err)
	}

	userID, err := VerifyToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != 42 {
		t.Errorf("user id = %d, want 42", userID)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	token, err := CreateToken(1, "alice")
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("JWT_SECRET_KEY", "different-secret")
	if _, err := VerifyToken(token); err == nil {
		t.Fatal("token signed with another key must not verify")
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	if _, err := VerifyToken("not.a.token"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in plaintext")
	}
	if !CheckPassword("hunter22", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestBootstrapAdminCreatesAccount(t *testing.T) {
	db := openTestDB(t)
	t.Setenv("ADMIN_EMAIL", "root@example.org")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "changeme1")

	if err := BootstrapAdmin(db); err != nil {
		t.Fatal(err)
	}

	var admin models.User
	if err := db.Where("role = ?", models.RoleAdmin).First(&admin).Error; err != nil {
		t.Fatalf("no admin created: %v", err)
	}
	if admin.Email != "root@example.org" || admin.Username != "root" {
		t.Errorf("admin = %+v", admin)
	}
	if !CheckPassword("changeme1", admin.PasswordHash) {
		t.Error("admin password not usable")
	}
}

func TestBootstrapAdminIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	t.Setenv("ADMIN_EMAIL", "root@example.org")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "changeme1")

	if err := BootstrapAdmin(db); err != nil {
		t.Fatal(err)
	}
	if err := BootstrapAdmin(db); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count != 1 {
		t.Errorf("admin count = %d, want 1", count)
	}
}

func TestBootstrapAdminPromotesExistingUser(t *testing.T) {
	db := openTestDB(t)

	user := models.User{
		Email:    "root@example.org",
		Username: "root",
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}

	t.Setenv("ADMIN_EMAIL", "root@example.org")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "changeme1")
	if err := BootstrapAdmin(db); err != nil {
		t.Fatal(err)
	}

	var promoted models.User
	db.First(&promoted, user.ID)
	if promoted.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", promoted.Role)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("user count = %d, want 1 (no duplicate created)", count)
	}
}

func TestBootstrapAdminSkipsWithoutEnv(t *testing.T) {
	db := openTestDB(t)
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")

	if err := BootstrapAdmin(db); err != nil {
		t.Fatal(err)
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("user count = %d, want 0", count)
	}
}
