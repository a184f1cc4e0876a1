// Package datasource defines external data connections whose credentials
// are stored encrypted at rest.
package datasource

import (
	"time"

	"github.com/netpad/api/pkg/domain/shared"
)

// Driver identifies the backing database driver for a connection.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverRedis    Driver = "redis"
	DriverHTTP     Driver = "http"
)

// IsValid checks if the driver is valid.
func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverMySQL, DriverRedis, DriverHTTP:
		return true
	}
	return false
}

// DataSource represents a connection to an external system. EncryptedDSN
// holds the vault-encrypted connection string and never leaves the server
// in plaintext.
type DataSource struct {
	ID             shared.ID
	OrganizationID shared.ID
	Name           string
	Driver         Driver
	EncryptedDSN   string
	CreatedBy      *shared.ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New creates a new data source. The DSN must already be encrypted.
func New(orgID shared.ID, name string, driver Driver, encryptedDSN string) (*DataSource, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "name is required", shared.ErrValidation)
	}
	if !driver.IsValid() {
		return nil, shared.NewDomainError("VALIDATION", "unknown driver: "+string(driver), shared.ErrValidation)
	}
	if encryptedDSN == "" {
		return nil, shared.NewDomainError("VALIDATION", "connection string is required", shared.ErrValidation)
	}

	now := time.Now()
	return &DataSource{
		ID:             shared.NewID(),
		OrganizationID: orgID,
		Name:           name,
		Driver:         driver,
		EncryptedDSN:   encryptedDSN,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Rotate replaces the encrypted connection string.
func (d *DataSource) Rotate(encryptedDSN string) error {
	if encryptedDSN == "" {
		return shared.NewDomainError("VALIDATION", "connection string is required", shared.ErrValidation)
	}
	d.EncryptedDSN = encryptedDSN
	d.UpdatedAt = time.Now()
	return nil
}
