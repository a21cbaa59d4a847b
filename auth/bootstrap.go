package auth

import (
	"fmt"
	"log"
	"os"

	"github.com/bibmap/bibmap-api/models"
	"gorm.io/gorm"
)

// BootstrapAdmin ensures an admin account exists. It runs once at startup
// inside a single transaction and is safe to re-run: if an admin already
// exists it does nothing. When ADMIN_EMAIL, ADMIN_USERNAME and
// ADMIN_PASSWORD are set, the matching user is promoted, or created if
// missing. Registration itself never mints admins.
func BootstrapAdmin(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var adminCount int64
		if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&adminCount).Error; err != nil {
			return err
		}
		if adminCount > 0 {
			return nil
		}

		email := os.Getenv("ADMIN_EMAIL")
		username := os.Getenv("ADMIN_USERNAME")
		password := os.Getenv("ADMIN_PASSWORD")
		if email == "" || username == "" || password == "" {
			log.Println("No admin account exists and ADMIN_EMAIL/ADMIN_USERNAME/ADMIN_PASSWORD are not set; skipping admin bootstrap")
			return nil
		}

		var user models.User
		err := tx.Where("email = ? OR username = ?", email, username).First(&user).Error
		if err == nil {
			user.Role = models.RoleAdmin
			if err := tx.Save(&user).Error; err != nil {
				return fmt.Errorf("promoting admin user: %w", err)
			}
			log.Printf("Promoted existing user %s to admin\n", user.Username)
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		hash, err := HashPassword(password)
		if err != nil {
			return fmt.Errorf("hashing admin password: %w", err)
		}
		user = models.User{
			Email:        email,
			Username:     username,
			DisplayName:  username,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			IsActive:     true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("creating admin user: %w", err)
		}
		log.Printf("Created admin user %s\n", user.Username)
		return nil
	})
}
