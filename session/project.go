package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/pkg/errors"
	"inet.af/netaddr"
)

var loopback, _ = netaddr.ParseIP("127.0.0.1")

func isLoopback(addr string) bool {
	ip, err := netaddr.ParseIP(addr)
	return err == nil && ip == loopback
}

// systemRows builds the system table. d3 reports the target itself as
// 127.0.0.1; that entry names the target and is listed under the target host.
// Receivers ("rx" types) are skipped. hostname is the target's d3 hostname,
// or "" if the target did not list itself.
func systemRows(systems []d3.System, targetHost string) (rows []SystemRow, hostname string) {
	rows = make([]SystemRow, 0, len(systems))
	for _, sys := range systems {
		ip := sys.IPAddress
		if isLoopback(ip) {
			ip = targetHost
			hostname = sys.Hostname
		}
		if strings.Contains(strings.ToLower(sys.Type), "rx") {
			continue
		}
		running := sys.RunningProject
		if running == "" {
			running = None
		}
		rows = append(rows, SystemRow{
			Hostname:       sys.Hostname,
			Type:           sys.Type,
			RunningProject: running,
			IP:             ip,
		})
	}
	return rows, hostname
}

// launchPath keeps the last two segments of a windows project path, which is
// what startlocalproject expects.
func launchPath(path string) string {
	parts := strings.Split(path, `\`)
	if len(parts) < 2 {
		return path
	}
	return parts[len(parts)-2] + `\` + parts[len(parts)-1]
}

func projectRows(hosts []d3.HostProjects, hostname string) []ProjectRow {
	var rows []ProjectRow
	if hostname == "" {
		return rows
	}
	for _, host := range hosts {
		if !strings.EqualFold(host.Hostname, hostname) {
			continue
		}
		for _, p := range host.Projects {
			v := p.Version
			rows = append(rows, ProjectRow{
				Path:         p.Path,
				Version:      fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Hotfix, v.Revision),
				LastModified: p.LastModified,
				LaunchPath:   launchPath(p.Path),
			})
		}
	}
	return rows
}

// RefreshSystems rebuilds the system table and learns the target hostname.
func (s *Session) RefreshSystems(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "RefreshSystems")
	defer done(&err)

	s.mu.Lock()
	ticket := s.st.systems.Reserve()
	target := s.st.target
	c := s.client
	s.mu.Unlock()
	s.setIndicator(IndicatorPending)

	systems, err := c.DetectSystems(ctx)
	if err = s.check(ctx, err); err != nil {
		s.setIndicator(IndicatorFailed)
		return err
	}
	rows, hostname := systemRows(systems, target.Host)

	s.mu.Lock()
	// rows of a target that was replaced meanwhile are dropped
	if s.client == c {
		if s.st.systems.Commit(ticket, rows) && hostname != "" {
			s.st.target.Hostname = hostname
		}
		s.st.indicator = IndicatorOK
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// RefreshProjects rebuilds the project table with the projects of the target
// machine.
func (s *Session) RefreshProjects(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "RefreshProjects")
	defer done(&err)

	s.mu.Lock()
	ticket := s.st.projects.Reserve()
	c := s.client
	s.mu.Unlock()

	hosts, err := c.Projects(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}

	s.mu.Lock()
	if s.client == c {
		s.st.projects.Commit(ticket, projectRows(hosts, s.st.target.Hostname))
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// SelectSystem toggles the system row with the given ip.
func (s *Session) SelectSystem(ip string) (bool, error) {
	s.mu.Lock()
	selected, err := s.st.systems.Toggle(ip)
	s.mu.Unlock()
	if err == nil {
		s.notify()
	}
	return selected, err
}

// SelectProject toggles the project row with the given path.
func (s *Session) SelectProject(path string) (bool, error) {
	s.mu.Lock()
	selected, err := s.st.projects.Toggle(path)
	s.mu.Unlock()
	if err == nil {
		s.notify()
	}
	return selected, err
}

// ProjectAction posts action to every selected system. startlocalproject
// launches the selected project with the panel settings.
func (s *Session) ProjectAction(ctx context.Context, action string) (err error) {
	ctx, done := s.start(ctx, "ProjectAction")
	defer done(&err)

	s.mu.RLock()
	systems := s.st.systems.Selected()
	project, hasProject := s.st.projects.First()
	c := s.client
	s.mu.RUnlock()

	if len(systems) == 0 {
		return errors.Wrap(ErrNoSelection, "select a system first")
	}

	var body interface{}
	if action == d3.StartLocalProject && hasProject {
		body = d3.StartProject{
			ProjectPath:  project.LaunchPath,
			SoloMode:     s.settings.SoloMode,
			AllowUpgrade: s.settings.AllowUpgrade,
		}
	}
	return s.postProjects(ctx, c, action, body, systems)
}

// ProjectActionAll posts action with an empty body to every listed system.
func (s *Session) ProjectActionAll(ctx context.Context, action string) (err error) {
	ctx, done := s.start(ctx, "ProjectActionAll")
	defer done(&err)

	s.mu.RLock()
	systems := s.st.systems.Rows()
	c := s.client
	s.mu.RUnlock()

	return s.postProjects(ctx, c, action, nil, systems)
}

func (s *Session) postProjects(ctx context.Context, c *d3.Client, action string, body interface{}, systems []SystemRow) error {
	err := s.fanOut(len(systems), func(i int) error {
		return c.WithHost(systems[i].IP).ProjectAction(ctx, action, body)
	})
	return s.check(ctx, err)
}
