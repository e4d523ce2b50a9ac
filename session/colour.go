package session

import (
	"context"
	"strings"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/pkg/errors"
)

// RefreshCDLs rebuilds the CDL table and clears the detail view.
func (s *Session) RefreshCDLs(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "RefreshCDLs")
	defer done(&err)

	s.mu.Lock()
	ticket := s.st.cdls.Reserve()
	c := s.client
	s.mu.Unlock()

	cdls, err := c.CDLs(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}

	rows := make([]CDLRow, 0, len(cdls))
	for _, cdl := range cdls {
		rows = append(rows, CDLRow{UID: cdl.UID, Name: cdl.Name})
	}

	s.mu.Lock()
	if s.client == c && s.st.cdls.Commit(ticket, rows) {
		s.st.cdlDetail = nil
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// SelectCDL toggles the CDL row. Selecting it loads its current values into
// the detail view, deselecting it clears the view.
func (s *Session) SelectCDL(ctx context.Context, uid string) (selected bool, err error) {
	ctx, done := s.start(ctx, "SelectCDL")
	defer done(&err)

	s.mu.Lock()
	selected, err = s.st.cdls.Toggle(uid)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.st.cdlDetail = nil
	c := s.client
	s.mu.Unlock()
	s.notify()

	if !selected {
		return false, nil
	}
	return true, s.loadCDL(ctx, c, uid)
}

func (s *Session) loadCDL(ctx context.Context, c *d3.Client, uid string) error {
	cdls, err := c.CDLs(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}

	var detail *CDLDetail
	for _, cdl := range cdls {
		if cdl.UID == uid {
			detail = &CDLDetail{CDL: cdl, Min: s.settings.MinValue, Max: s.settings.MaxValue}
			break
		}
	}

	s.mu.Lock()
	if s.client == c && s.st.cdls.IsSelected(uid) {
		s.st.cdlDetail = detail
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// UpdateCDL sets one value of the selected CDL and sends the whole CDL back.
// field is one of slope.{x,y,z}, offset.{x,y,z}, power.{x,y,z} or saturation.
func (s *Session) UpdateCDL(ctx context.Context, field string, value float64) (err error) {
	ctx, done := s.start(ctx, "UpdateCDL")
	defer done(&err)

	s.mu.RLock()
	row, ok := s.st.cdls.First()
	var cdl d3.CDL
	if s.st.cdlDetail != nil {
		cdl = s.st.cdlDetail.CDL
	}
	c := s.client
	s.mu.RUnlock()

	if !ok || cdl.UID != row.UID {
		return errors.Wrap(ErrNoSelection, "select a cdl first")
	}
	cdl.Name = row.Name
	if err := setCDLField(&cdl, field, value); err != nil {
		return err
	}

	err = c.SetCDL(ctx, cdl)
	if err = s.check(ctx, err); err != nil {
		return err
	}

	s.mu.Lock()
	if s.st.cdlDetail != nil && s.st.cdlDetail.CDL.UID == cdl.UID {
		s.st.cdlDetail.CDL = cdl
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func setCDLField(cdl *d3.CDL, field string, value float64) error {
	if field == "saturation" {
		cdl.Saturation = value
		return nil
	}

	var v *d3.Vec3
	parts := strings.SplitN(field, ".", 2)
	switch parts[0] {
	case "slope":
		v = &cdl.Slope
	case "offset":
		v = &cdl.Offset
	case "power":
		v = &cdl.Power
	default:
		return errors.Wrap(ErrInvalidField, field)
	}
	if len(parts) != 2 {
		return errors.Wrap(ErrInvalidField, field)
	}
	switch parts[1] {
	case "x":
		v.X = value
	case "y":
		v.Y = value
	case "z":
		v.Z = value
	default:
		return errors.Wrap(ErrInvalidField, field)
	}
	return nil
}

func (d CDLDetail) clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// clamped returns the CDL with every value limited to the slider range. The
// values sent to d3 are never clamped.
func (d CDLDetail) clamped() d3.CDL {
	vec := func(v d3.Vec3) d3.Vec3 {
		return d3.Vec3{X: d.clamp(v.X), Y: d.clamp(v.Y), Z: d.clamp(v.Z)}
	}
	cdl := d.CDL
	cdl.Slope = vec(cdl.Slope)
	cdl.Offset = vec(cdl.Offset)
	cdl.Power = vec(cdl.Power)
	cdl.Saturation = d.clamp(cdl.Saturation)
	return cdl
}
