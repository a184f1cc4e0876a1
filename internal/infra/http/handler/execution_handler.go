package handler

import (
	"net/http"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/validator"
)

// ExecutionHandler handles execution admission and inspection endpoints.
type ExecutionHandler struct {
	executions *app.ExecutionService
	validator  *validator.Validator
	logger     *logger.Logger
}

// NewExecutionHandler creates a new execution handler.
func NewExecutionHandler(executions *app.ExecutionService, v *validator.Validator, log *logger.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		executions: executions,
		validator:  v,
		logger:     log.With("handler", "execution"),
	}
}

// ExecuteRequest is the payload for POST /workflows/{workflowId}/execute.
type ExecuteRequest struct {
	TriggerSource string         `json:"trigger_source" validate:"max=255"`
	Payload       map[string]any `json:"payload"`
}

// ProgressResponse reports observed node outcomes for an execution.
type ProgressResponse struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Total     int `json:"total"`
}

// TriggerResponse describes what started an execution.
type TriggerResponse struct {
	Type    string         `json:"type"`
	Source  string         `json:"source,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// LogResponse represents a single execution log line.
type LogResponse struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	NodeKey   string `json:"node_key,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ExecutionResponse represents an execution in API responses.
type ExecutionResponse struct {
	ID              string           `json:"id"`
	WorkflowID      string           `json:"workflow_id"`
	WorkflowVersion int              `json:"workflow_version"`
	Status          string           `json:"status"`
	Trigger         TriggerResponse  `json:"trigger"`
	Progress        ProgressResponse `json:"progress"`
	Error           string           `json:"error,omitempty"`
	StartedAt       string           `json:"started_at,omitempty"`
	FinishedAt      string           `json:"finished_at,omitempty"`
	CreatedAt       string           `json:"created_at"`
	Logs            []LogResponse    `json:"logs,omitempty"`
}

func toExecutionResponse(detail *app.ExecutionDetail) ExecutionResponse {
	e := detail.Execution
	progress := e.Progress()

	resp := ExecutionResponse{
		ID:              e.ID.String(),
		WorkflowID:      e.WorkflowID.String(),
		WorkflowVersion: e.WorkflowVersion,
		Status:          string(e.Status),
		Trigger: TriggerResponse{
			Type:    e.Trigger.Type,
			Source:  e.Trigger.Source,
			Payload: e.Trigger.Payload,
		},
		Progress: ProgressResponse{
			Completed: progress.Completed,
			Failed:    progress.Failed,
			Skipped:   progress.Skipped,
			Total:     progress.Total,
		},
		Error:      e.Error,
		StartedAt:  formatTimePtr(e.StartedAt),
		FinishedAt: formatTimePtr(e.FinishedAt),
		CreatedAt:  formatTime(e.CreatedAt),
	}

	for _, l := range detail.Logs {
		resp.Logs = append(resp.Logs, LogResponse{
			Level:     string(l.Level),
			Message:   l.Message,
			NodeKey:   l.NodeKey,
			CreatedAt: formatTime(l.CreatedAt),
		})
	}

	return resp
}

// Execute handles POST /api/v1/workflows/{workflowId}/execute.
// Requests pass two admission gates (queue depth, monthly usage) before an
// execution record exists; rejections surface as 429 with structured details.
func (h *ExecutionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	workflowID, err := pathID(r, "workflowId")
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}

	var req ExecuteRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	created, err := h.executions.Execute(r.Context(), app.ExecuteWorkflowInput{
		OrganizationID: orgID,
		WorkflowID:     workflowID,
		UserID:         userID,
		TriggerType:    "manual",
		TriggerSource:  req.TriggerSource,
		Payload:        req.Payload,
		RemoteAddr:     r.RemoteAddr,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toExecutionResponse(&app.ExecutionDetail{Execution: created}))
}

// Get handles GET /api/v1/executions/{executionId}.
// Query parameters: logs=true to include logs, log_level=<level> to filter.
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, userID, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	executionID, err := pathID(r, "executionId")
	if err != nil {
		apierror.BadRequest("Invalid execution ID").WriteJSON(w)
		return
	}

	logLevel := execution.LogLevel(queryParam(r, "log_level"))
	if logLevel != "" && !logLevel.IsValid() {
		apierror.BadRequest("Invalid log level").WriteJSON(w)
		return
	}

	detail, err := h.executions.GetExecution(r.Context(), app.GetExecutionInput{
		ExecutionID: executionID,
		UserID:      userID,
		IncludeLogs: parseQueryBool(queryParam(r, "logs")),
		LogLevel:    logLevel,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toExecutionResponse(detail))
}

// List handles GET /api/v1/workflows/{workflowId}/executions.
// Query parameters: status, limit, offset, logs, log_level.
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	workflowID, err := pathID(r, "workflowId")
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}

	status := execution.Status(queryParam(r, "status"))
	if status != "" && !status.IsValid() {
		apierror.BadRequest("Invalid status filter").WriteJSON(w)
		return
	}
	logLevel := execution.LogLevel(queryParam(r, "log_level"))
	if logLevel != "" && !logLevel.IsValid() {
		apierror.BadRequest("Invalid log level").WriteJSON(w)
		return
	}

	result, err := h.executions.ListExecutions(r.Context(), app.ListExecutionsInput{
		OrganizationID: orgID,
		WorkflowID:     workflowID,
		Status:         status,
		Page:           parsePage(r),
		IncludeLogs:    parseQueryBool(queryParam(r, "logs")),
		LogLevel:       logLevel,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(result, toExecutionResponse))
}

// UsageResponse reports current monthly execution usage for an organization.
type UsageResponse struct {
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
	Unlimited bool  `json:"unlimited"`
}

// Usage handles GET /api/v1/usage.
func (h *ExecutionHandler) Usage(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	usage, err := h.executions.GetUsage(r.Context(), orgID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := UsageResponse{
		Current:   usage.Current,
		Limit:     usage.Limit,
		Unlimited: usage.Unlimited,
	}
	if !usage.Unlimited && usage.Limit > usage.Current {
		resp.Remaining = usage.Limit - usage.Current
	}

	writeJSON(w, http.StatusOK, resp)
}
