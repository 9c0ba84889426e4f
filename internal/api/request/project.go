package request

// CreateProject holds the request body for creating a project.
type CreateProject struct {
	Title       string `json:"title" validate:"required,max=64,projecttitle"`
	Description string `json:"description" validate:"max=255"`
}

// UpdateProject holds the request body for updating project metadata.
type UpdateProject struct {
	Description string `json:"description" validate:"max=255"`
}
