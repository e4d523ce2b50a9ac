package d3

import "context"

const (
	// https://developer.disguise.one/api/service/system/
	systemAPI = "/api/service/system/"
	// https://developer.disguise.one/api/service/project/
	projectAPI = "/api/service/project/"

	StartLocalProject = "startlocalproject"
)

// DetectSystems lists the machines visible to the target.
func (c *Client) DetectSystems(ctx context.Context) ([]System, error) {
	var systems []System
	err := c.Get(ctx, systemAPI+"detectsystems", nil, &systems)
	return systems, err
}

// Projects lists the projects found on each machine.
func (c *Client) Projects(ctx context.Context) ([]HostProjects, error) {
	var projects []HostProjects
	err := c.Get(ctx, systemAPI+"projects", nil, &projects)
	return projects, err
}

// StartProject is the body of a startlocalproject call.
type StartProject struct {
	ProjectPath  string `json:"projectPath"`
	SoloMode     bool   `json:"soloMode"`
	AllowUpgrade bool   `json:"allowUpgrade"`
}

// ProjectAction posts body to the project service endpoint named action.
// A nil body is sent as {}.
func (c *Client) ProjectAction(ctx context.Context, action string, body interface{}) error {
	if err := checkAction(action); err != nil {
		return err
	}
	if body == nil {
		body = struct{}{}
	}
	return c.Post(ctx, projectAPI+action, body, nil)
}
