package services

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GualbertoOm/Ballet/internal/models"
)

// InitDB initializes the database connection with connection pooling
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Tutor{},
		&models.Student{},
		&models.EmergencyContact{},
		&models.Instructor{},
		&models.Group{},
		&models.Article{},
		&models.PaymentConcept{},
		&models.Package{},
		&models.PackageItem{},
		&models.Sale{},
		&models.SaleLine{},
		&models.SaleConcept{},
		&models.SaleCharge{},
		&models.Plan{},
		&models.Installment{},
		&models.Settlement{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migrations completed")
	return nil
}
