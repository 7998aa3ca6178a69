package mappers

import (
	"time"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/domain/entities/section"
	"github.com/planora/planora/modules/projects/domain/entities/subtask"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/presentation/viewmodels"
)

func WorkspaceToViewModel(ws workspace.Workspace, projects []project.Project) viewmodels.Workspace {
	refs := make([]viewmodels.ProjectRef, 0, len(projects))
	for _, p := range projects {
		refs = append(refs, viewmodels.ProjectRef{
			ID:       p.ID().String(),
			Name:     p.Name(),
			Archived: p.Archived(),
		})
	}
	return viewmodels.Workspace{
		ID:        ws.ID().String(),
		Name:      ws.Name(),
		Projects:  refs,
		CreatedAt: ws.CreatedAt().Format(time.RFC3339),
		UpdatedAt: ws.UpdatedAt().Format(time.RFC3339),
	}
}

// ProjectToViewModel assembles the board snapshot: sections in position
// order, each with its tasks in position order. Tasks are grouped by their
// section id; both inputs come pre-sorted from the repositories.
func ProjectToViewModel(
	p project.Project,
	sections []*section.Section,
	tasks []task.Task,
	labels []*label.Label,
) viewmodels.Project {
	bySection := make(map[string][]viewmodels.TaskRef, len(sections))
	for _, t := range tasks {
		ref := viewmodels.TaskRef{
			ID:        t.ID().String(),
			Title:     t.Title(),
			Completed: t.Completed(),
			Position:  t.Position(),
			Labels:    LabelsToViewModels(t.Labels()),
		}
		key := t.SectionID().String()
		bySection[key] = append(bySection[key], ref)
	}

	sectionVMs := make([]viewmodels.Section, 0, len(sections))
	for _, s := range sections {
		sectionTasks := bySection[s.ID.String()]
		if sectionTasks == nil {
			sectionTasks = []viewmodels.TaskRef{}
		}
		sectionVMs = append(sectionVMs, viewmodels.Section{
			ID:       s.ID.String(),
			Title:    s.Title,
			Position: s.Position,
			Tasks:    sectionTasks,
		})
	}

	return viewmodels.Project{
		ID:          p.ID().String(),
		WorkspaceID: p.WorkspaceID().String(),
		Name:        p.Name(),
		Archived:    p.Archived(),
		Sections:    sectionVMs,
		Labels:      LabelsToViewModels(labels),
		CreatedAt:   p.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt().Format(time.RFC3339),
	}
}

func TaskToViewModel(t task.Task, subTasks []*subtask.SubTask) viewmodels.Task {
	subVMs := make([]viewmodels.SubTask, 0, len(subTasks))
	for _, st := range subTasks {
		subVMs = append(subVMs, viewmodels.SubTask{
			ID:        st.ID.String(),
			Title:     st.Title,
			Completed: st.Completed,
			Position:  st.Position,
		})
	}
	return viewmodels.Task{
		ID:          t.ID().String(),
		SectionID:   t.SectionID().String(),
		ProjectID:   t.ProjectID().String(),
		WorkspaceID: t.WorkspaceID().String(),
		Title:       t.Title(),
		Completed:   t.Completed(),
		Position:    t.Position(),
		SubTasks:    subVMs,
		Labels:      LabelsToViewModels(t.Labels()),
		CreatedAt:   t.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt().Format(time.RFC3339),
	}
}

func LabelsToViewModels(labels []*label.Label) []viewmodels.Label {
	vms := make([]viewmodels.Label, 0, len(labels))
	for _, l := range labels {
		vms = append(vms, viewmodels.Label{
			ID:    l.ID.String(),
			Name:  l.Name,
			Color: l.Color,
		})
	}
	return vms
}
