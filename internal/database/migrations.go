package database

import (
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/internal/permissions"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.Subscription{},
		&models.RefreshToken{},
		&models.Exam{},
		&models.ExamQuestion{},
		&models.OtpCode{},
		&models.PaymentTransaction{},
		&models.TaskExecutionLog{},
		&models.CacheEntry{},
	)
}

// SeedData populates default roles and synchronises the permission registry
// into the permissions table. Existing rows are left untouched.
func SeedData(db *gorm.DB) error {
	roles := []models.Role{
		{
			BaseModel:   models.BaseModel{ID: "admin"},
			Name:        "Administrator",
			Description: "Full system access",
			IsSystem:    true,
		},
		{
			BaseModel:   models.BaseModel{ID: "user"},
			Name:        "User",
			Description: "Standard user access",
			IsSystem:    true,
		},
	}

	for _, role := range roles {
		if err := db.Where(models.Role{BaseModel: models.BaseModel{ID: role.ID}}).Attrs(role).FirstOrCreate(&models.Role{}).Error; err != nil {
			return err
		}
	}

	for _, def := range permissions.GetAll() {
		row := models.Permission{
			BaseModel:   models.BaseModel{ID: def.ID},
			Module:      def.Module,
			Description: def.Description,
		}
		if err := db.Where(models.Permission{BaseModel: models.BaseModel{ID: def.ID}}).Attrs(row).FirstOrCreate(&models.Permission{}).Error; err != nil {
			return err
		}
	}

	var admin models.Role
	if err := db.Preload("Permissions").First(&admin, "id = ?", "admin").Error; err != nil {
		return err
	}
	if len(admin.Permissions) == 0 {
		all := make([]models.Permission, 0)
		if err := db.Find(&all).Error; err != nil {
			return err
		}
		if err := db.Model(&admin).Association("Permissions").Replace(all); err != nil {
			return err
		}
	}

	return nil
}
