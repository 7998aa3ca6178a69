package viewmodels

// Wire snapshots sent to subscribers. A snapshot is the full state of the
// resource at delivery time; clients replace, never patch.

type Workspace struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Projects  []ProjectRef `json:"projects"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
}

type ProjectRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

type Project struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Archived    bool      `json:"archived"`
	Sections    []Section `json:"sections"`
	Labels      []Label   `json:"labels"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
}

type Section struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`
	Tasks    []TaskRef `json:"tasks"`
}

type TaskRef struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Completed bool    `json:"completed"`
	Position  int     `json:"position"`
	Labels    []Label `json:"labels"`
}

type Task struct {
	ID          string    `json:"id"`
	SectionID   string    `json:"sectionId"`
	ProjectID   string    `json:"projectId"`
	WorkspaceID string    `json:"workspaceId"`
	Title       string    `json:"title"`
	Completed   bool      `json:"completed"`
	Position    int       `json:"position"`
	SubTasks    []SubTask `json:"subTasks"`
	Labels      []Label   `json:"labels"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
}

type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Position  int    `json:"position"`
}

type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
