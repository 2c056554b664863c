package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Art-of-X/sparkworks/internal/domain"
)

// CreateProject creates a project for a user.
func (s *Service) CreateProject(ctx context.Context, userID, task string) (*domain.Project, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	project := &domain.Project{
		ProjectID: "prj_" + uuid.New().String()[:8],
		UserID:    userID,
		Task:      task,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// AttachSpark attaches a spark to a project.
func (s *Service) AttachSpark(ctx context.Context, projectID, userID string, spark domain.Spark) (*domain.Spark, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, ErrProjectNotFound
	}
	if spark.Name == "" {
		return nil, errors.New("name is required")
	}

	spark.SparkID = "spk_" + uuid.New().String()[:8]
	spark.ProjectID = projectID
	spark.CreatedAt = time.Now().UTC()
	if err := s.store.CreateSpark(ctx, &spark); err != nil {
		return nil, fmt.Errorf("failed to create spark: %w", err)
	}
	return &spark, nil
}

// AddContextItem stores an owner-supplied context item for a project.
func (s *Service) AddContextItem(ctx context.Context, projectID, userID, kind, text string) (*domain.ContextItem, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, ErrProjectNotFound
	}
	if text == "" {
		return nil, errors.New("text is required")
	}
	if kind == "" {
		kind = "text"
	}

	item := &domain.ContextItem{
		ItemID:    "ctx_" + uuid.New().String()[:8],
		ProjectID: projectID,
		Kind:      kind,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateContextItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create context item: %w", err)
	}
	return item, nil
}

// ListOutputs returns the outputs of a project.
func (s *Service) ListOutputs(ctx context.Context, projectID, userID string) ([]domain.Output, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, ErrProjectNotFound
	}
	outputs, err := s.store.ListOutputs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	return outputs, nil
}
