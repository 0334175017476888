package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hschub/hschub-backend/internal/platform/envutil"
	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/types"
)

type PostgresService struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	host := envutil.Str("POSTGRES_HOST", "localhost")
	port := envutil.Str("POSTGRES_PORT", "5432")
	user := envutil.Str("POSTGRES_USER", "postgres")
	password := envutil.Str("POSTGRES_PASSWORD", "")
	dbname := envutil.Str("POSTGRES_DB", "hschub")
	sslmode := envutil.Str("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	svc := &PostgresService{DB: gdb, log: log.With("service", "PostgresService")}
	svc.log.Info("Connected to postgres", "host", host, "db", dbname)
	return svc, nil
}

// AutoMigrateAll creates or updates the schema for every stored type.
func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.Question{},
		&types.Topic{},
		&types.Classification{},
	)
}
