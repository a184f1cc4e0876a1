package app_test

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/pagination"
)

var errBackend = errors.New("backend unavailable")

func notFound(what string) error {
	return shared.NewDomainError("NOT_FOUND", what+" not found", shared.ErrNotFound)
}

// mockWorkflowRepo implements workflow.Repository in memory.
type mockWorkflowRepo struct {
	workflows map[string]*workflow.Workflow
}

func newMockWorkflowRepo() *mockWorkflowRepo {
	return &mockWorkflowRepo{workflows: make(map[string]*workflow.Workflow)}
}

func (m *mockWorkflowRepo) Create(ctx context.Context, w *workflow.Workflow) error {
	m.workflows[w.ID.String()] = w
	return nil
}

func (m *mockWorkflowRepo) GetByID(ctx context.Context, id shared.ID) (*workflow.Workflow, error) {
	w, ok := m.workflows[id.String()]
	if !ok {
		return nil, notFound("workflow")
	}
	return w, nil
}

func (m *mockWorkflowRepo) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*workflow.Workflow, error) {
	w, ok := m.workflows[id.String()]
	if !ok || !w.OrganizationID.Equals(orgID) {
		return nil, notFound("workflow")
	}
	return w, nil
}

func (m *mockWorkflowRepo) GetBySlug(ctx context.Context, slug string) (*workflow.Workflow, error) {
	for _, w := range m.workflows {
		if w.Slug == slug {
			return w, nil
		}
	}
	return nil, notFound("workflow")
}

func (m *mockWorkflowRepo) List(ctx context.Context, orgID shared.ID, filter workflow.Filter, page pagination.Page) (pagination.Result[*workflow.Workflow], error) {
	var all []*workflow.Workflow
	for _, w := range m.workflows {
		if !w.OrganizationID.Equals(orgID) {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(w.Name), strings.ToLower(filter.Search)) {
			continue
		}
		all = append(all, w)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := page.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return pagination.NewResult(all[start:end], total, page), nil
}

func (m *mockWorkflowRepo) Update(ctx context.Context, w *workflow.Workflow) error {
	if _, ok := m.workflows[w.ID.String()]; !ok {
		return notFound("workflow")
	}
	m.workflows[w.ID.String()] = w
	return nil
}

func (m *mockWorkflowRepo) UpdateStatus(ctx context.Context, w *workflow.Workflow) error {
	return m.Update(ctx, w)
}

func (m *mockWorkflowRepo) ListActiveWithScheduleTriggers(ctx context.Context) ([]*workflow.Workflow, error) {
	var result []*workflow.Workflow
	for _, w := range m.workflows {
		if w.Status != workflow.StatusActive {
			continue
		}
		for _, n := range w.Nodes {
			if n.Type == workflow.NodeTypeScheduleTrigger {
				result = append(result, w)
				break
			}
		}
	}
	return result, nil
}

func (m *mockWorkflowRepo) Delete(ctx context.Context, orgID, id shared.ID) error {
	w, ok := m.workflows[id.String()]
	if !ok || !w.OrganizationID.Equals(orgID) {
		return notFound("workflow")
	}
	delete(m.workflows, id.String())
	return nil
}

// mockExecutionRepo implements execution.Repository in memory.
type mockExecutionRepo struct {
	executions map[string]*execution.Execution

	createErr error
}

func newMockExecutionRepo() *mockExecutionRepo {
	return &mockExecutionRepo{executions: make(map[string]*execution.Execution)}
}

func (m *mockExecutionRepo) Create(ctx context.Context, e *execution.Execution) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.executions[e.ID.String()] = e
	return nil
}

func (m *mockExecutionRepo) GetByID(ctx context.Context, id shared.ID) (*execution.Execution, error) {
	e, ok := m.executions[id.String()]
	if !ok {
		return nil, notFound("execution")
	}
	return e, nil
}

func (m *mockExecutionRepo) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*execution.Execution, error) {
	e, ok := m.executions[id.String()]
	if !ok || !e.OrganizationID.Equals(orgID) {
		return nil, notFound("execution")
	}
	return e, nil
}

func (m *mockExecutionRepo) ListByWorkflow(ctx context.Context, workflowID shared.ID, filter execution.Filter, page pagination.Page) (pagination.Result[*execution.Execution], error) {
	var all []*execution.Execution
	for _, e := range m.executions {
		if !e.WorkflowID.Equals(workflowID) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := page.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return pagination.NewResult(all[start:end], total, page), nil
}

func (m *mockExecutionRepo) CountPendingByOrg(ctx context.Context, orgID shared.ID) (int64, error) {
	var count int64
	for _, e := range m.executions {
		if e.OrganizationID.Equals(orgID) && e.Status == execution.StatusPending {
			count++
		}
	}
	return count, nil
}

func (m *mockExecutionRepo) Update(ctx context.Context, e *execution.Execution) error {
	if _, ok := m.executions[e.ID.String()]; !ok {
		return notFound("execution")
	}
	m.executions[e.ID.String()] = e
	return nil
}

// mockLogRepo implements execution.LogRepository in memory.
type mockLogRepo struct {
	logs []*execution.Log
}

func newMockLogRepo() *mockLogRepo {
	return &mockLogRepo{}
}

func (m *mockLogRepo) Append(ctx context.Context, logs ...*execution.Log) error {
	m.logs = append(m.logs, logs...)
	return nil
}

var logLevelRank = map[execution.LogLevel]int{
	execution.LogLevelDebug: 0,
	execution.LogLevelInfo:  1,
	execution.LogLevelWarn:  2,
	execution.LogLevelError: 3,
}

func (m *mockLogRepo) ListByExecution(ctx context.Context, executionID shared.ID, level execution.LogLevel, limit int) ([]*execution.Log, error) {
	minRank := 0
	if level != "" {
		minRank = logLevelRank[level]
	}

	var result []*execution.Log
	for _, l := range m.logs {
		if !l.ExecutionID.Equals(executionID) {
			continue
		}
		if logLevelRank[l.Level] < minRank {
			continue
		}
		result = append(result, l)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// mockOrgRepo implements organization.Repository in memory.
type mockOrgRepo struct {
	orgs    map[string]*organization.Organization
	members map[string]*organization.Member
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{
		orgs:    make(map[string]*organization.Organization),
		members: make(map[string]*organization.Member),
	}
}

func memberKey(orgID, userID shared.ID) string {
	return orgID.String() + "/" + userID.String()
}

func (m *mockOrgRepo) Create(ctx context.Context, org *organization.Organization) error {
	for _, existing := range m.orgs {
		if existing.Slug == org.Slug {
			return shared.NewDomainError("ALREADY_EXISTS", "slug already taken", shared.ErrAlreadyExists)
		}
	}
	m.orgs[org.ID.String()] = org
	return nil
}

func (m *mockOrgRepo) GetByID(ctx context.Context, id shared.ID) (*organization.Organization, error) {
	org, ok := m.orgs[id.String()]
	if !ok {
		return nil, notFound("organization")
	}
	return org, nil
}

func (m *mockOrgRepo) GetBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	for _, org := range m.orgs {
		if org.Slug == slug {
			return org, nil
		}
	}
	return nil, notFound("organization")
}

func (m *mockOrgRepo) Update(ctx context.Context, org *organization.Organization) error {
	if _, ok := m.orgs[org.ID.String()]; !ok {
		return notFound("organization")
	}
	m.orgs[org.ID.String()] = org
	return nil
}

func (m *mockOrgRepo) AddMember(ctx context.Context, member *organization.Member) error {
	m.members[memberKey(member.OrganizationID, member.UserID)] = member
	return nil
}

func (m *mockOrgRepo) GetMember(ctx context.Context, orgID, userID shared.ID) (*organization.Member, error) {
	member, ok := m.members[memberKey(orgID, userID)]
	if !ok {
		return nil, notFound("member")
	}
	return member, nil
}

func (m *mockOrgRepo) IsMember(ctx context.Context, orgID, userID shared.ID) (bool, error) {
	_, ok := m.members[memberKey(orgID, userID)]
	return ok, nil
}

// mockUsageLimiter implements app.UsageLimiter with an in-memory counter.
type mockUsageLimiter struct {
	counters map[string]int64

	incrementErr error
	decrements   int
}

func newMockUsageLimiter() *mockUsageLimiter {
	return &mockUsageLimiter{counters: make(map[string]int64)}
}

func (m *mockUsageLimiter) Increment(ctx context.Context, orgID shared.ID, limit int64) (int64, bool, error) {
	if m.incrementErr != nil {
		return 0, false, m.incrementErr
	}
	m.counters[orgID.String()]++
	current := m.counters[orgID.String()]
	if limit < 0 {
		return current, true, nil
	}
	return current, current <= limit, nil
}

func (m *mockUsageLimiter) Decrement(ctx context.Context, orgID shared.ID) error {
	m.decrements++
	if m.counters[orgID.String()] > 0 {
		m.counters[orgID.String()]--
	}
	return nil
}

func (m *mockUsageLimiter) Current(ctx context.Context, orgID shared.ID) (int64, error) {
	return m.counters[orgID.String()], nil
}

// mockEnqueuer implements app.ExecutionEnqueuer.
type mockEnqueuer struct {
	enqueued   []*execution.Execution
	enqueueErr error
}

func (m *mockEnqueuer) EnqueueExecution(ctx context.Context, e *execution.Execution) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, e)
	return nil
}
