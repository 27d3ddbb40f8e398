package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DatabaseSettings is the MySQL connection read from DB_* variables.
type DatabaseSettings struct {
	User            string
	Password        string
	Host            string
	Port            string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// MaxAttempts bounds the connect retries; zero retries until ctx ends.
	MaxAttempts int
}

func LoadDatabaseSettings() DatabaseSettings {
	return DatabaseSettings{
		User:            os.Getenv("DB_USER"),
		Password:        os.Getenv("DB_PASSWORD"),
		Host:            getEnv("DB_HOST", "127.0.0.1"),
		Port:            getEnv("DB_PORT", "3306"),
		Name:            os.Getenv("DB_NAME"),
		MaxOpenConns:    intFromEnv("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		MaxAttempts:     intFromEnv("DB_CONNECT_MAX_ATTEMPTS", 0),
	}
}

// DSN renders the settings for the MySQL driver. A Cloud SQL socket path in
// Host (/cloudsql/<instance>) switches to a unix connection.
func (d DatabaseSettings) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if strings.HasPrefix(d.Host, "/cloudsql/") {
		cfg.Net = "unix"
		cfg.Addr = d.Host
	} else {
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%s", d.Host, d.Port)
	}
	return cfg.FormatDSN()
}

// ConnectDatabase opens the pool with backoff until it answers, ctx ends or
// MaxAttempts is reached.
func ConnectDatabase(ctx context.Context, d DatabaseSettings) (*gorm.DB, error) {
	var attempt int
	for {
		attempt++
		db, err := gorm.Open(gormmysql.Open(d.DSN()), initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				if d.MaxOpenConns > 0 {
					sqlDB.SetMaxOpenConns(d.MaxOpenConns)
				}
				if d.MaxIdleConns >= 0 {
					sqlDB.SetMaxIdleConns(d.MaxIdleConns)
				}
				if d.ConnMaxLifetime > 0 {
					sqlDB.SetConnMaxLifetime(d.ConnMaxLifetime)
				}
			}
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				LogError(logg, "config", "ConnectDatabase", "install otelgorm plugin", nil, pluginErr)
			}
			logg.WithFields(logrus.Fields{"field": "database", "attempt": attempt, "db": d.Name}).Info("connected to database")
			return db, nil
		}

		if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
			return nil, fmt.Errorf("connect database after %d attempts: %w", attempt, err)
		}
		sleep := backoff(attempt)
		logg.WithFields(logrus.Fields{"field": "database", "attempt": attempt, "retry_in": sleep.String()}).Warn(err.Error())
		if err := sleepCtx(ctx, sleep); err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
	}
}

func backoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: &schema.NamingStrategy{SingularTable: false},
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}
