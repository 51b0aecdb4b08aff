package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret           string
	JWTAccessExpiry     time.Duration
	JWTRefreshExpiry    time.Duration
	PasswordResetExpiry time.Duration

	// Admin
	AdminEmails  string
	AdminUserIDs string

	// Restaurant
	RestaurantName   string
	RestaurantPhone  string
	Timezone         string
	MaxAdvanceMonths int
	DefaultTimeSlots string

	// Mail
	MailProvider   string
	SendGridAPIKey string
	MailFrom       string
	MailFromName   string
	StaffEmails    string
	SiteURL        string

	// Change feed + trigger
	EventBus           string
	RedisURL           string
	TriggerMaxAttempts int
	TriggerBackoff     time.Duration

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "tablebook"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:     parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m")),
		JWTRefreshExpiry:    parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h")),
		PasswordResetExpiry: parseDuration(getEnv("PASSWORD_RESET_EXPIRY", "1h")),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),

		RestaurantName:   getEnv("RESTAURANT_NAME", "The Spice Garden"),
		RestaurantPhone:  getEnv("RESTAURANT_PHONE", ""),
		Timezone:         getEnv("RESTAURANT_TIMEZONE", "Asia/Kolkata"),
		MaxAdvanceMonths: parseInt(getEnv("MAX_ADVANCE_MONTHS", "1"), 1),
		DefaultTimeSlots: getEnv("DEFAULT_TIME_SLOTS", "12:00,12:30,13:00,13:30,14:00,14:30,19:00,19:30,20:00,20:30,21:00,21:30,22:00"),

		MailProvider:   getEnv("MAIL_PROVIDER", "log"),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		MailFrom:       getEnv("MAIL_FROM", "reservations@spicegarden.example"),
		MailFromName:   getEnv("MAIL_FROM_NAME", "The Spice Garden"),
		StaffEmails:    getEnv("STAFF_EMAILS", "manager@spicegarden.example,owner@spicegarden.example"),
		SiteURL:        getEnv("SITE_URL", "http://localhost:3000"),

		EventBus:           getEnv("EVENT_BUS", "memory"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		TriggerMaxAttempts: parseInt(getEnv("TRIGGER_MAX_ATTEMPTS", "5"), 5),
		TriggerBackoff:     parseDuration(getEnv("TRIGGER_BACKOFF", "2s")),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// Location resolves the restaurant time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) StaffRecipients() []string {
	return ParseCSV(c.StaffEmails)
}

func (c *Config) TimeSlots() []string {
	return ParseCSV(c.DefaultTimeSlots)
}

// ParseCSV splits a comma separated list and drops blank entries.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
