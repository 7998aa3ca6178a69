package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/entities/section"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/modules/projects/domain/ordering"
	"github.com/planora/planora/pkg/composables"
)

// SectionService covers the lifecycle of a project's sections. Creation and
// deletion touch the section's position among its siblings, so they lock the
// sibling set and go through the ordering store inside one transaction.
type SectionService struct {
	repo     section.Repository
	projects project.Repository
	tasks    task.Repository
	store    ordering.Store
	moves    *OrderingService
	signals  *SignalEmitter
}

func NewSectionService(
	repo section.Repository,
	projects project.Repository,
	tasks task.Repository,
	store ordering.Store,
	moves *OrderingService,
	signals *SignalEmitter,
) *SectionService {
	return &SectionService{
		repo:     repo,
		projects: projects,
		tasks:    tasks,
		store:    store,
		moves:    moves,
		signals:  signals,
	}
}

func (s *SectionService) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*section.Section, error) {
	return s.repo.GetByProject(ctx, projectID)
}

// Create adds a section to the project, at the end of the list or, when
// position is given, at that slot with later sections shifted down.
func (s *SectionService) Create(ctx context.Context, projectID uuid.UUID, title string, position *int) (*section.Section, error) {
	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (*section.Section, error) {
		p, err := s.projects.GetByID(txCtx, projectID)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, p.WorkspaceID(), SectionsAuthzObject, "create"); err != nil {
			return nil, err
		}
		if err := s.store.LockSiblings(txCtx, ordering.KindSection, projectID); err != nil {
			return nil, err
		}

		sec := section.New(projectID, p.WorkspaceID(), title)
		if err := s.repo.Create(txCtx, sec); err != nil {
			return nil, err
		}
		if position != nil && *position != sec.Position {
			if err := s.store.InsertAt(txCtx, ordering.KindSection, projectID, sec.ID, *position); err != nil {
				return nil, err
			}
			sec.Position = *position
		}
		return sec, nil
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, created)
	return created, nil
}

func (s *SectionService) Rename(ctx context.Context, id uuid.UUID, title string) (*section.Section, error) {
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (*section.Section, error) {
		sec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, sec.WorkspaceID, SectionsAuthzObject, "update"); err != nil {
			return nil, err
		}
		sec.Title = title
		sec.UpdatedAt = time.Now()
		if err := s.repo.Update(txCtx, sec); err != nil {
			return nil, err
		}
		return sec, nil
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, updated)
	return updated, nil
}

// Delete removes the section and the tasks it contains, compacting the
// remaining sections' positions. Every contained task gets a gone event;
// the project gets a changed one.
func (s *SectionService) Delete(ctx context.Context, id uuid.UUID) error {
	var (
		projectID uuid.UUID
		contained []task.Task
	)
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		sec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := authorizeProjects(txCtx, sec.WorkspaceID, SectionsAuthzObject, "delete"); err != nil {
			return err
		}
		if err := s.store.LockSiblings(txCtx, ordering.KindSection, sec.ProjectID); err != nil {
			return err
		}

		contained, err = s.tasks.GetBySection(txCtx, id)
		if err != nil {
			return err
		}
		projectID = sec.ProjectID
		// Remove deletes the row and compacts siblings; tasks and sub-tasks
		// go with it through the schema's cascade.
		return s.store.Remove(txCtx, ordering.KindSection, id)
	})
	if err != nil {
		return err
	}

	gone := make([]events.Resource, 0, len(contained))
	for _, t := range contained {
		gone = append(gone, events.NewResource(events.KindTask, t.ID()))
	}
	s.signals.EmitGone(ctx, gone...)
	s.signals.EmitResources(ctx, events.Changed, events.NewResource(events.KindProject, projectID))
	return nil
}

// MoveAfter places the section after another section, or at the top of a
// project when the anchor is a project id.
func (s *SectionService) MoveAfter(ctx context.Context, id, anchorID uuid.UUID) error {
	result, err := s.moves.MoveAfter(ctx, ordering.KindSection, id, anchorID)
	if err != nil {
		return err
	}
	s.emitMoved(ctx, result)
	return nil
}

func (s *SectionService) MoveInDirection(ctx context.Context, id uuid.UUID, direction ordering.Direction) error {
	result, err := s.moves.MoveInDirection(ctx, ordering.KindSection, id, direction)
	if err != nil {
		return err
	}
	s.emitMoved(ctx, result)
	return nil
}

// A section reorder changes the contents of the projects involved; sections
// carry no topic of their own.
func (s *SectionService) emitMoved(ctx context.Context, result MoveResult) {
	s.signals.EmitResources(ctx, events.Changed,
		events.NewResource(events.KindProject, result.Source.ProjectID),
		events.NewResource(events.KindProject, result.Destination.ProjectID),
	)
}
