package app

import (
	"context"
	"fmt"

	"github.com/netpad/api/pkg/crypto"
	"github.com/netpad/api/pkg/domain/datasource"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
)

// DataSourceService manages external data connections. Connection strings
// are encrypted before they reach the repository and only decrypted for
// internal consumers, never in API responses.
type DataSourceService struct {
	repo      datasource.Repository
	encryptor crypto.Encryptor
	logger    *logger.Logger
}

// NewDataSourceService creates a new DataSourceService.
func NewDataSourceService(repo datasource.Repository, encryptor crypto.Encryptor, log *logger.Logger) *DataSourceService {
	return &DataSourceService{
		repo:      repo,
		encryptor: encryptor,
		logger:    log.With("service", "datasource"),
	}
}

// CreateDataSourceInput represents input for creating a data source.
type CreateDataSourceInput struct {
	OrganizationID shared.ID
	UserID         shared.ID
	Name           string
	Driver         datasource.Driver
	DSN            string
}

// CreateDataSource encrypts the connection string and persists the source.
func (s *DataSourceService) CreateDataSource(ctx context.Context, input CreateDataSourceInput) (*datasource.DataSource, error) {
	if input.DSN == "" {
		return nil, shared.NewDomainError("VALIDATION", "connection string is required", shared.ErrValidation)
	}

	encrypted, err := s.encryptor.EncryptString(input.DSN)
	if err != nil {
		return nil, fmt.Errorf("encrypt connection string: %w", err)
	}

	ds, err := datasource.New(input.OrganizationID, input.Name, input.Driver, encrypted)
	if err != nil {
		return nil, err
	}
	if !input.UserID.IsZero() {
		userID := input.UserID
		ds.CreatedBy = &userID
	}

	if err := s.repo.Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to create data source: %w", err)
	}

	s.logger.Info("data source created",
		"datasource_id", ds.ID.String(),
		"org_id", ds.OrganizationID.String(),
		"driver", string(ds.Driver),
	)
	return ds, nil
}

// GetDataSource returns a data source scoped to an organization.
func (s *DataSourceService) GetDataSource(ctx context.Context, orgID, id shared.ID) (*datasource.DataSource, error) {
	return s.repo.GetByOrgAndID(ctx, orgID, id)
}

// ListDataSources returns an organization's data sources, newest first.
func (s *DataSourceService) ListDataSources(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*datasource.DataSource], error) {
	return s.repo.List(ctx, orgID, page)
}

// RotateDSN replaces a data source's connection string.
func (s *DataSourceService) RotateDSN(ctx context.Context, orgID, id shared.ID, dsn string) (*datasource.DataSource, error) {
	ds, err := s.repo.GetByOrgAndID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.encryptor.EncryptString(dsn)
	if err != nil {
		return nil, fmt.Errorf("encrypt connection string: %w", err)
	}
	if err := ds.Rotate(encrypted); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to rotate connection string: %w", err)
	}

	s.logger.Info("data source credentials rotated", "datasource_id", ds.ID.String())
	return ds, nil
}

// ResolveDSN decrypts a data source's connection string for internal use.
func (s *DataSourceService) ResolveDSN(ctx context.Context, orgID, id shared.ID) (string, error) {
	ds, err := s.repo.GetByOrgAndID(ctx, orgID, id)
	if err != nil {
		return "", err
	}
	dsn, err := s.encryptor.DecryptString(ds.EncryptedDSN)
	if err != nil {
		return "", fmt.Errorf("decrypt connection string: %w", err)
	}
	return dsn, nil
}

// DeleteDataSource removes a data source.
func (s *DataSourceService) DeleteDataSource(ctx context.Context, orgID, id shared.ID) error {
	return s.repo.Delete(ctx, orgID, id)
}
