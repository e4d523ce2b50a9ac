package session

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/hangyeol-kang/d3RW/table"
	"github.com/pkg/errors"
)

// MR set and observation actions.
const (
	ActionCapture    = "captureobservation"
	ActionEnable     = "enableobservations"
	ActionDisable    = "disableobservations"
	ActionDelete     = "deleteobservations"
	ActionDeleteAll  = "deleteallobservations"
	ActionSelectCam  = "selectcamera"
	ActionRefreshMRs = "refresh-mixedreality"
)

// formatFloat renders f the way the d3 web UI prints numbers: plain decimals,
// switching to exponent form below 1e-6 and from 1e21 up.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if a := math.Abs(f); a == 0 || (a >= 1e-6 && a < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.IndexByte(s, 'e')
	mant, sign, exp := s[:i], s[i+1], strings.TrimLeft(s[i+2:], "0")
	return mant + "e" + string(sign) + exp
}

// truncate cuts s to n bytes without rounding.
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func mrSetRows(sets []d3.MRSet, cams []d3.Camera) []MRSetRow {
	choices := make([]d3.Ref, 0, len(cams))
	for _, cam := range cams {
		choices = append(choices, d3.Ref{UID: cam.UID, Name: cam.Name})
	}

	rows := make([]MRSetRow, 0, len(sets))
	for _, set := range sets {
		row := MRSetRow{
			UID:        set.UID,
			Name:       set.Name,
			CameraName: None,
			Set:        d3.Ref{UID: set.UID, Name: set.Name},
			Choices:    choices,
		}
		if row.Name == "" {
			row.Name = None
		}
		if set.CurrentCamera != nil {
			cam := *set.CurrentCamera
			row.Camera = &cam
			row.CameraName = cam.Name
		}
		rows = append(rows, row)
	}
	return rows
}

func observationRows(obs []d3.Observation) []ObservationRow {
	rows := make([]ObservationRow, 0, len(obs))
	for i, o := range obs {
		p := o.TrackedPose.Position
		rows = append(rows, ObservationRow{
			UID:      o.UID,
			Enabled:  o.IsEnabled,
			Index:    i + 1,
			Position: formatFloat(p.X) + "," + formatFloat(p.Y) + "," + formatFloat(p.Z),
			Zoom:     formatFloat(o.Zoom) + "x",
			Focus:    formatFloat(o.Focus),
			RMSError: truncate(formatFloat(o.RMSError), 7),
			Type:     o.Type,
		})
	}
	return rows
}

// RefreshMRSets rebuilds the MR set table and selects its first row, which
// loads that set's observations.
func (s *Session) RefreshMRSets(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "RefreshMRSets")
	defer done(&err)

	s.mu.Lock()
	ticket := s.st.mrsets.Reserve()
	c := s.client
	s.mu.Unlock()

	sets, err := c.MRSets(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}
	cams, err := c.Cameras(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}
	rows := mrSetRows(sets, cams)

	s.mu.Lock()
	if s.client != c || !s.st.mrsets.Commit(ticket, rows) {
		s.mu.Unlock()
		return nil
	}
	s.clearObservations()
	var first MRSetRow
	if len(rows) > 0 {
		first = rows[0]
		s.st.mrsets.Select(first.UID)
	}
	s.mu.Unlock()
	s.notify()

	if len(rows) == 0 {
		return nil
	}
	return s.loadObservations(ctx, c, first)
}

// clearObservations must be called with mu held.
func (s *Session) clearObservations() {
	s.st.observations.Clear()
	s.st.calibration = nil
	s.st.caption = ""
}

// SelectMRSet toggles the MR set row. Selecting it loads the observations of
// its current camera's spatial calibration.
func (s *Session) SelectMRSet(ctx context.Context, uid string) (selected bool, err error) {
	ctx, done := s.start(ctx, "SelectMRSet")
	defer done(&err)

	s.mu.Lock()
	selected, err = s.st.mrsets.Toggle(uid)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	row, _ := s.st.mrsets.Get(uid)
	s.clearObservations()
	c := s.client
	s.mu.Unlock()
	s.notify()

	if !selected {
		return false, nil
	}
	return true, s.loadObservations(ctx, c, row)
}

func (s *Session) loadObservations(ctx context.Context, c *d3.Client, row MRSetRow) error {
	s.mu.Lock()
	ticket := s.st.observations.Reserve()
	s.mu.Unlock()

	cals, err := c.SpatialCalibrations(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}
	cams, err := c.Cameras(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}

	var cal *d3.Ref
	for _, cam := range cams {
		if cam.Name == row.CameraName {
			ref := cam.SpatialCalibration
			cal = &ref
			break
		}
	}

	var rows []ObservationRow
	if cal != nil {
		for _, sc := range cals {
			if sc.UID == cal.UID {
				rows = append(rows, observationRows(sc.Observations)...)
			}
		}
	}

	s.mu.Lock()
	if s.client == c && s.st.mrsets.IsSelected(row.UID) && s.st.observations.Commit(ticket, rows) {
		s.st.calibration = cal
		s.st.caption = row.CameraName
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// reloadSelectedSet reloads the observations of the selected MR set.
func (s *Session) reloadSelectedSet(ctx context.Context) error {
	s.mu.RLock()
	row, ok := s.st.mrsets.First()
	c := s.client
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.loadObservations(ctx, c, row)
}

// SelectObservation toggles the observation row.
func (s *Session) SelectObservation(uid string) (bool, error) {
	s.mu.Lock()
	selected, err := s.st.observations.Toggle(uid)
	s.mu.Unlock()
	if err == nil {
		s.notify()
	}
	return selected, err
}

// MRAction runs a mixed reality action. camera is the uid of the override
// camera and is only used by selectcamera.
func (s *Session) MRAction(ctx context.Context, action, camera string) error {
	switch action {
	case ActionCapture:
		return s.CaptureObservation(ctx)
	case ActionEnable:
		return s.EnableObservation(ctx, true)
	case ActionDisable:
		return s.EnableObservation(ctx, false)
	case ActionDelete:
		return s.DeleteObservation(ctx)
	case ActionDeleteAll:
		return s.DeleteAllObservations(ctx)
	case ActionSelectCam:
		return s.OverrideCamera(ctx, camera)
	case ActionRefreshMRs:
		return s.RefreshMRSets(ctx)
	}
	return errors.Wrap(d3.ErrInvalidAction, action)
}

// afterEdit reloads the selected set unless the edit never reached d3.
func (s *Session) afterEdit(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, d3.ErrStatus) {
		if rerr := s.reloadSelectedSet(ctx); err == nil {
			err = rerr
		}
	}
	return err
}

func (s *Session) selectedObservation() (ObservationRow, *d3.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.st.observations.First()
	if !ok {
		return ObservationRow{}, nil, errors.Wrap(ErrNoSelection, "select an observation first")
	}
	return row, s.client, nil
}

// EnableObservation enables or disables the selected observation.
func (s *Session) EnableObservation(ctx context.Context, enable bool) (err error) {
	ctx, done := s.start(ctx, "EnableObservation")
	defer done(&err)

	row, c, err := s.selectedObservation()
	if err != nil {
		return err
	}
	err = s.check(ctx, c.EnableObservations(ctx, enable, row.UID))
	return s.afterEdit(ctx, err)
}

// DeleteObservation deletes the selected observation.
func (s *Session) DeleteObservation(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "DeleteObservation")
	defer done(&err)

	row, c, err := s.selectedObservation()
	if err != nil {
		return err
	}
	err = s.check(ctx, c.DeleteObservations(ctx, row.UID))
	return s.afterEdit(ctx, err)
}

// DeleteAllObservations empties the loaded spatial calibration.
func (s *Session) DeleteAllObservations(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "DeleteAllObservations")
	defer done(&err)

	s.mu.RLock()
	cal := s.st.calibration
	c := s.client
	s.mu.RUnlock()
	if cal == nil {
		return ErrNoCalibration
	}

	err = s.check(ctx, c.DeleteAllObservations(ctx, *cal))
	return s.afterEdit(ctx, err)
}

// OverrideCamera makes the selected MR set use the camera with the given uid,
// then rebuilds the MR set table.
func (s *Session) OverrideCamera(ctx context.Context, cameraUID string) (err error) {
	ctx, done := s.start(ctx, "OverrideCamera")
	defer done(&err)

	s.mu.RLock()
	row, ok := s.st.mrsets.First()
	c := s.client
	s.mu.RUnlock()
	if !ok {
		return errors.Wrap(ErrNoSelection, "select an mr set first")
	}

	var camera *d3.Ref
	for _, choice := range row.Choices {
		if choice.UID == cameraUID {
			ch := choice
			camera = &ch
			break
		}
	}
	if camera == nil {
		return errors.Wrapf(table.ErrUnknownRow, "camera %q", cameraUID)
	}

	err = s.check(ctx, c.SelectCamera(ctx, row.Set, *camera))
	if err != nil && !errors.Is(err, d3.ErrStatus) {
		return err
	}
	if rerr := s.RefreshMRSets(ctx); err == nil {
		err = rerr
	}
	return err
}

// CaptureObservation captures a new observation for the current camera of the
// selected MR set and waits for d3 to finish it.
func (s *Session) CaptureObservation(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "CaptureObservation")
	defer done(&err)

	s.mu.Lock()
	row, ok := s.st.mrsets.First()
	cal := s.st.calibration
	c := s.client
	switch {
	case s.st.capturing:
		err = ErrCaptureRunning
	case !ok:
		err = errors.Wrap(ErrNoSelection, "select an mr set first")
	case row.Camera == nil:
		err = ErrNoCamera
	case cal == nil:
		err = ErrNoCalibration
	default:
		s.st.capturing = true
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()

	defer func() {
		s.mu.Lock()
		s.st.capturing = false
		s.mu.Unlock()
		s.notify()
	}()

	err = s.check(ctx, c.CaptureObservation(ctx, *row.Camera, *cal))
	if err != nil {
		return err
	}
	return s.waitCapture(ctx, c)
}

// waitCapture polls the capture progress every CaptureInterval until d3
// reports it finished, then reloads the selected set.
func (s *Session) waitCapture(ctx context.Context, c *d3.Client) error {
	ctx, cancel := s.clock.WithTimeout(ctx, s.captureTimeout)
	defer cancel()

	ticker := s.clock.Ticker(CaptureInterval)
	defer ticker.Stop()

	started := s.clock.Now()
	for {
		busy, err := c.CaptureInProgress(ctx)
		if err == nil && !busy {
			s.setUpstream(true)
			s.logInfo("capture done", "duration", s.clock.Since(started).Round(time.Millisecond))
			return s.reloadSelectedSet(ctx)
		}
		if err != nil {
			s.logError(err, "op", "waitCapture")
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.alerts.Push(MsgCaptureTimeout)
				return errors.Wrapf(ErrCaptureTimeout, "after %s", s.captureTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
