package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// Open connects to the configured database and migrates the schema.
// sqlite uses the pure-Go glebarez driver so the binary stays cgo-free.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.AutoMigrate(&WorkflowModel{}, &AgentModel{}, &ExecutionModel{}, &StepModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	logger.Info("database connected", zap.String("driver", cfg.Driver))
	return db, nil
}

// Stores bundles the four GORM-backed stores over one connection.
type Stores struct {
	Workflows  *GormWorkflowStore
	Agents     *GormAgentStore
	Executions *GormExecutionStore
	Steps      *GormStepRecorder
}

// NewStores creates all stores over db.
func NewStores(db *gorm.DB, logger *zap.Logger) *Stores {
	logger = logger.With(zap.String("component", "store"))
	return &Stores{
		Workflows:  &GormWorkflowStore{db: db},
		Agents:     &GormAgentStore{db: db},
		Executions: &GormExecutionStore{db: db, logger: logger},
		Steps:      &GormStepRecorder{db: db, logger: logger},
	}
}

// GormWorkflowStore implements WorkflowStore.
type GormWorkflowStore struct {
	db *gorm.DB
}

// FindByID returns the workflow, or (nil, nil) when absent.
func (s *GormWorkflowStore) FindByID(ctx context.Context, id int64) (*types.Workflow, error) {
	var m WorkflowModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find workflow %d: %w", id, err)
	}
	return m.toWorkflow()
}

// Create stores a workflow definition. Used by fixtures and the template
// seeding path, not by the engine.
func (s *GormWorkflowStore) Create(ctx context.Context, wf *types.Workflow) error {
	agentsJSON, err := json.Marshal(wf.AgentsConfig)
	if err != nil {
		return fmt.Errorf("marshal agents_config: %w", err)
	}
	m := WorkflowModel{
		ID:           wf.ID,
		Name:         wf.Name,
		Type:         string(wf.Type),
		AgentsConfig: string(agentsJSON),
		EntryAgentID: wf.EntryAgentID,
	}
	if wf.FlowConfig != nil {
		flowJSON, err := json.Marshal(wf.FlowConfig)
		if err != nil {
			return fmt.Errorf("marshal flow_config: %w", err)
		}
		m.FlowConfig = string(flowJSON)
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	wf.ID = m.ID
	return nil
}

// GormAgentStore implements AgentStore.
type GormAgentStore struct {
	db *gorm.DB
}

// FindByID returns the agent definition, or (nil, nil) when absent.
func (s *GormAgentStore) FindByID(ctx context.Context, id int64) (*types.AgentDefinition, error) {
	var m AgentModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find agent %d: %w", id, err)
	}
	return m.toAgentDefinition()
}

// Create stores an agent definition.
func (s *GormAgentStore) Create(ctx context.Context, def *types.AgentDefinition) error {
	configJSON, err := marshalValue(def.Config)
	if err != nil {
		return err
	}
	m := AgentModel{
		ID:           def.ID,
		Name:         def.Name,
		Role:         def.Role,
		Model:        def.Model,
		SystemPrompt: def.SystemPrompt,
		Config:       configJSON,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	def.ID = m.ID
	return nil
}

// GormExecutionStore implements ExecutionStore.
type GormExecutionStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Create writes the running execution record before any step executes.
func (s *GormExecutionStore) Create(ctx context.Context, exec *types.WorkflowExecution) error {
	m := ExecutionModel{
		ID:          exec.ID,
		WorkflowID:  exec.WorkflowID,
		RequesterID: exec.RequesterID,
		Status:      string(exec.Status),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

// Update applies the terminal transition to an execution record.
func (s *GormExecutionStore) Update(ctx context.Context, id string, patch ExecutionPatch) error {
	outputJSON, err := marshalValue(patch.Output)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"status":       string(patch.Status),
		"output":       outputJSON,
		"total_tokens": patch.TotalTokens,
		"duration_ms":  patch.DurationMS,
		"error":        patch.Error,
	}
	if patch.ContextSnapshot != nil {
		snapJSON, err := marshalValue(patch.ContextSnapshot)
		if err != nil {
			return err
		}
		updates["context_snapshot"] = snapJSON
	}
	res := s.db.WithContext(ctx).Model(&ExecutionModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update execution %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update execution %s: no such record", id)
	}
	return nil
}

// Get reads one execution record back. Used by the HTTP surface and tests.
func (s *GormExecutionStore) Get(ctx context.Context, id string) (*types.WorkflowExecution, error) {
	var m ExecutionModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find execution %s: %w", id, err)
	}
	exec := &types.WorkflowExecution{
		ID:          m.ID,
		WorkflowID:  m.WorkflowID,
		RequesterID: m.RequesterID,
		Status:      types.ExecutionStatus(m.Status),
		TotalTokens: m.TotalTokens,
		DurationMS:  m.DurationMS,
		Error:       m.Error,
	}
	if m.Output != "" {
		if err := json.Unmarshal([]byte(m.Output), &exec.Output); err != nil {
			return nil, fmt.Errorf("execution %s: parse output: %w", id, err)
		}
	}
	return exec, nil
}

// GormStepRecorder implements StepRecorder.
type GormStepRecorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Create writes the running step record when an invocation begins.
func (s *GormStepRecorder) Create(ctx context.Context, step *types.AgentExecutionStep) error {
	inputJSON, err := marshalValue(step.Input)
	if err != nil {
		return err
	}
	m := StepModel{
		ID:          step.ID,
		ExecutionID: step.ExecutionID,
		AgentID:     step.AgentID,
		StepOrder:   step.Order,
		Status:      string(step.Status),
		Input:       inputJSON,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create step: %w", err)
	}
	return nil
}

// Complete marks a step completed with its output and accounting.
func (s *GormStepRecorder) Complete(ctx context.Context, stepID string, output any, tokensUsed, durationMS int64) error {
	outputJSON, err := marshalValue(output)
	if err != nil {
		return err
	}
	return s.update(ctx, stepID, map[string]any{
		"status":      string(types.StepCompleted),
		"output":      outputJSON,
		"tokens_used": tokensUsed,
		"duration_ms": durationMS,
	})
}

// Fail marks a step failed with the last retry's error.
func (s *GormStepRecorder) Fail(ctx context.Context, stepID string, errMsg string, durationMS int64) error {
	return s.update(ctx, stepID, map[string]any{
		"status":      string(types.StepFailed),
		"error":       errMsg,
		"duration_ms": durationMS,
	})
}

func (s *GormStepRecorder) update(ctx context.Context, stepID string, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&StepModel{}).Where("id = ?", stepID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update step %s: %w", stepID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update step %s: no such record", stepID)
	}
	return nil
}

// ListByExecution returns all step records of one run ordered by step order.
func (s *GormStepRecorder) ListByExecution(ctx context.Context, executionID string) ([]*types.AgentExecutionStep, error) {
	var rows []StepModel
	if err := s.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("step_order asc, created_at asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list steps for %s: %w", executionID, err)
	}
	steps := make([]*types.AgentExecutionStep, 0, len(rows))
	for i := range rows {
		m := &rows[i]
		step := &types.AgentExecutionStep{
			ID:          m.ID,
			ExecutionID: m.ExecutionID,
			AgentID:     m.AgentID,
			Order:       m.StepOrder,
			Status:      types.StepStatus(m.Status),
			TokensUsed:  m.TokensUsed,
			DurationMS:  m.DurationMS,
			Retries:     m.Retries,
			Error:       m.Error,
		}
		if m.Input != "" {
			if err := json.Unmarshal([]byte(m.Input), &step.Input); err != nil {
				return nil, fmt.Errorf("step %s: parse input: %w", m.ID, err)
			}
		}
		if m.Output != "" {
			if err := json.Unmarshal([]byte(m.Output), &step.Output); err != nil {
				return nil, fmt.Errorf("step %s: parse output: %w", m.ID, err)
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}
