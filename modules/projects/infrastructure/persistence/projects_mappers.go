package persistence

import (
	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/aggregates/member"
	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/domain/entities/section"
	"github.com/planora/planora/modules/projects/domain/entities/subtask"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
)

func toDomainWorkspace(m *models.Workspace) (workspace.Workspace, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	return workspace.New(
		m.Name,
		workspace.WithID(id),
		workspace.WithCreatedAt(m.CreatedAt),
		workspace.WithUpdatedAt(m.UpdatedAt),
	), nil
}

func toDomainMember(m *models.Member) (member.Member, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	return member.New(
		m.Email,
		m.Name,
		member.WithID(id),
		member.WithCreatedAt(m.CreatedAt),
	), nil
}

func toDomainProject(m *models.Project) (project.Project, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := uuid.Parse(m.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return project.New(
		workspaceID,
		m.Name,
		project.WithID(id),
		project.WithArchived(m.Archived),
		project.WithCreatedAt(m.CreatedAt),
		project.WithUpdatedAt(m.UpdatedAt),
	), nil
}

func toDomainSection(m *models.Section) (*section.Section, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	projectID, err := uuid.Parse(m.ProjectID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := uuid.Parse(m.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return &section.Section{
		ID:          id,
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		Title:       m.Title,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func toDomainTask(m *models.Task, labels []*label.Label) (task.Task, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	sectionID, err := uuid.Parse(m.SectionID)
	if err != nil {
		return nil, err
	}
	projectID, err := uuid.Parse(m.ProjectID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := uuid.Parse(m.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return task.New(
		sectionID,
		projectID,
		workspaceID,
		m.Title,
		task.WithID(id),
		task.WithCompleted(m.Completed),
		task.WithPosition(m.Position),
		task.WithLabels(labels),
		task.WithCreatedAt(m.CreatedAt),
		task.WithUpdatedAt(m.UpdatedAt),
	), nil
}

func toDomainSubTask(m *models.SubTask) (*subtask.SubTask, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	taskID, err := uuid.Parse(m.TaskID)
	if err != nil {
		return nil, err
	}
	projectID, err := uuid.Parse(m.ProjectID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := uuid.Parse(m.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return &subtask.SubTask{
		ID:          id,
		TaskID:      taskID,
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		Title:       m.Title,
		Completed:   m.Completed,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func toDomainLabel(m *models.Label) (*label.Label, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	projectID, err := uuid.Parse(m.ProjectID)
	if err != nil {
		return nil, err
	}
	return &label.Label{
		ID:        id,
		ProjectID: projectID,
		Name:      m.Name,
		Color:     m.Color.String,
		CreatedAt: m.CreatedAt,
	}, nil
}
