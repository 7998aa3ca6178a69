package projects

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/planora/planora/modules/projects/infrastructure/persistence"
	"github.com/planora/planora/modules/projects/presentation/controllers"
	"github.com/planora/planora/modules/projects/presentation/realtime"
	"github.com/planora/planora/modules/projects/services"
	"github.com/planora/planora/pkg/eventbus"
	"github.com/planora/planora/pkg/server"
)

type ModuleOptions struct {
	Pool   *pgxpool.Pool
	Bus    eventbus.EventBus
	Logger *logrus.Logger
}

// Module wires the projects domain: repositories, the position store, the
// ordering and entity services, the signal emitter and the realtime stream
// endpoint.
type Module struct {
	Workspaces *services.WorkspaceService
	Projects   *services.ProjectService
	Sections   *services.SectionService
	Tasks      *services.TaskService
	SubTasks   *services.SubTaskService
	Ordering   *services.OrderingService
	Access     *services.AccessService

	stream *controllers.StreamController
}

func NewModule(opts ModuleOptions) *Module {
	workspaceRepo := persistence.NewWorkspaceRepository()
	memberRepo := persistence.NewMemberRepository()
	projectRepo := persistence.NewProjectRepository()
	sectionRepo := persistence.NewSectionRepository()
	taskRepo := persistence.NewTaskRepository()
	subTaskRepo := persistence.NewSubTaskRepository()
	labelRepo := persistence.NewLabelRepository()

	store := persistence.NewPositionStore()
	scopes := services.NewScopeResolver(projectRepo, sectionRepo, taskRepo, subTaskRepo)
	ordering := services.NewOrderingService(store, scopes)
	signals := services.NewSignalEmitter(opts.Bus, opts.Logger)
	access := services.NewAccessService(workspaceRepo, projectRepo, taskRepo)

	snapshots := realtime.NewSnapshotSource(
		workspaceRepo, projectRepo, sectionRepo, taskRepo, subTaskRepo, labelRepo,
	)

	return &Module{
		Workspaces: services.NewWorkspaceService(workspaceRepo, signals),
		Projects:   services.NewProjectService(projectRepo, workspaceRepo, labelRepo, signals),
		Sections:   services.NewSectionService(sectionRepo, projectRepo, taskRepo, store, ordering, signals),
		Tasks:      services.NewTaskService(taskRepo, sectionRepo, labelRepo, workspaceRepo, store, ordering, signals),
		SubTasks:   services.NewSubTaskService(subTaskRepo, taskRepo, store, ordering, signals),
		Ordering:   ordering,
		Access:     access,

		stream: controllers.NewStreamController(
			opts.Pool, opts.Bus, memberRepo, access, snapshots, opts.Logger,
		),
	}
}

func (m *Module) Controllers() []server.Controller {
	return []server.Controller{m.stream}
}

func (m *Module) Name() string {
	return "projects"
}
