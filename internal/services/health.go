package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"realestate/internal/database"
)

// HealthResult is the health endpoint body
type HealthResult struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// HealthService reports process and database health
type HealthService struct {
	db      *gorm.DB
	name    string
	version string
}

// NewHealthService creates a new health service
func NewHealthService(db *gorm.DB, name, version string) *HealthService {
	return &HealthService{db: db, name: name, version: version}
}

// Check pings the database. The service is degraded, not down, when the ping fails.
func (s *HealthService) Check(ctx context.Context) *HealthResult {
	result := &HealthResult{Status: "healthy", Service: s.name, Version: s.version, Database: "ok"}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := database.Ping(ctx, s.db); err != nil {
		result.Status = "degraded"
		result.Database = "unreachable"
	}
	return result
}
