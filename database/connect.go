package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pielancer314/PizzaForPi/config"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/model"
)

// ConnectDB opens the Postgres connection and migrates the schema.
func ConnectDB(cfg config.Settings, log logger.ILogger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	gormCfg := &gorm.Config{}
	if cfg.LoggerLevel != "debug" {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}
	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("connection opened to database", logger.String("host", cfg.DBHost), logger.String("name", cfg.DBName))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database migrated")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Restaurant{},
		&model.MenuItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.TimelineEntry{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
