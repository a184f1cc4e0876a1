package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/crypto"
	"github.com/netpad/api/pkg/domain/datasource"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
)

// mockDataSourceRepo implements datasource.Repository in memory.
type mockDataSourceRepo struct {
	sources map[string]*datasource.DataSource
}

func newMockDataSourceRepo() *mockDataSourceRepo {
	return &mockDataSourceRepo{sources: make(map[string]*datasource.DataSource)}
}

func (m *mockDataSourceRepo) Create(ctx context.Context, ds *datasource.DataSource) error {
	m.sources[ds.ID.String()] = ds
	return nil
}

func (m *mockDataSourceRepo) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*datasource.DataSource, error) {
	ds, ok := m.sources[id.String()]
	if !ok || !ds.OrganizationID.Equals(orgID) {
		return nil, notFound("data source")
	}
	return ds, nil
}

func (m *mockDataSourceRepo) List(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*datasource.DataSource], error) {
	var all []*datasource.DataSource
	for _, ds := range m.sources {
		if ds.OrganizationID.Equals(orgID) {
			all = append(all, ds)
		}
	}
	return pagination.NewResult(all, int64(len(all)), page), nil
}

func (m *mockDataSourceRepo) Update(ctx context.Context, ds *datasource.DataSource) error {
	if _, ok := m.sources[ds.ID.String()]; !ok {
		return notFound("data source")
	}
	m.sources[ds.ID.String()] = ds
	return nil
}

func (m *mockDataSourceRepo) Delete(ctx context.Context, orgID, id shared.ID) error {
	ds, ok := m.sources[id.String()]
	if !ok || !ds.OrganizationID.Equals(orgID) {
		return notFound("data source")
	}
	delete(m.sources, id.String())
	return nil
}

func newDataSourceService(t *testing.T) (*app.DataSourceService, *mockDataSourceRepo) {
	t.Helper()
	repo := newMockDataSourceRepo()
	cipher, err := crypto.NewCipher(bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return app.NewDataSourceService(repo, cipher, logger.NewNop()), repo
}

const testDSN = "postgres://app:secret@db:5432/orders"

func TestDataSourceService_CreateDataSource_EncryptsAtRest(t *testing.T) {
	svc, repo := newDataSourceService(t)
	orgID := shared.NewID()

	ds, err := svc.CreateDataSource(context.Background(), app.CreateDataSourceInput{
		OrganizationID: orgID,
		Name:           "Orders DB",
		Driver:         datasource.DriverPostgres,
		DSN:            testDSN,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored := repo.sources[ds.ID.String()]
	if stored.EncryptedDSN == testDSN {
		t.Error("connection string must not be stored in plaintext")
	}

	resolved, err := svc.ResolveDSN(context.Background(), orgID, ds.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved != testDSN {
		t.Errorf("expected round-tripped DSN, got %q", resolved)
	}
}

func TestDataSourceService_CreateDataSource_Validation(t *testing.T) {
	svc, _ := newDataSourceService(t)
	orgID := shared.NewID()

	if _, err := svc.CreateDataSource(context.Background(), app.CreateDataSourceInput{
		OrganizationID: orgID,
		Name:           "No DSN",
		Driver:         datasource.DriverPostgres,
	}); err == nil {
		t.Error("expected error for missing DSN")
	}

	if _, err := svc.CreateDataSource(context.Background(), app.CreateDataSourceInput{
		OrganizationID: orgID,
		Name:           "Bad Driver",
		Driver:         datasource.Driver("oracle"),
		DSN:            testDSN,
	}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestDataSourceService_RotateDSN(t *testing.T) {
	svc, repo := newDataSourceService(t)
	orgID := shared.NewID()

	ds, err := svc.CreateDataSource(context.Background(), app.CreateDataSourceInput{
		OrganizationID: orgID,
		Name:           "Orders DB",
		Driver:         datasource.DriverPostgres,
		DSN:            testDSN,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	oldEncrypted := repo.sources[ds.ID.String()].EncryptedDSN

	rotated := "postgres://app:newsecret@db:5432/orders"
	if _, err := svc.RotateDSN(context.Background(), orgID, ds.ID, rotated); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if repo.sources[ds.ID.String()].EncryptedDSN == oldEncrypted {
		t.Error("expected stored ciphertext to change after rotation")
	}

	resolved, err := svc.ResolveDSN(context.Background(), orgID, ds.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved != rotated {
		t.Errorf("expected rotated DSN, got %q", resolved)
	}
}

func TestDataSourceService_OrgScoping(t *testing.T) {
	svc, _ := newDataSourceService(t)

	ds, err := svc.CreateDataSource(context.Background(), app.CreateDataSourceInput{
		OrganizationID: shared.NewID(),
		Name:           "Orders DB",
		Driver:         datasource.DriverPostgres,
		DSN:            testDSN,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.GetDataSource(context.Background(), shared.NewID(), ds.ID); !shared.IsNotFound(err) {
		t.Errorf("expected not found across organizations, got %v", err)
	}
	if _, err := svc.ResolveDSN(context.Background(), shared.NewID(), ds.ID); !shared.IsNotFound(err) {
		t.Errorf("expected not found across organizations, got %v", err)
	}
}
