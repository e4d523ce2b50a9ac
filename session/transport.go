package session

import (
	"context"
	"strings"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/hangyeol-kang/d3RW/poll"
	"github.com/hangyeol-kang/d3RW/table"
	"github.com/pkg/errors"
)

// clearTransport disengages the transport. It must be called with mu held.
func (s *Session) clearTransport() {
	if s.notifier != nil {
		s.notifier.Cancel()
		s.notifier = nil
	}
	s.st.engaged = false
	s.st.transport = nil
	s.st.cueList = nil
	s.st.notifications = nil
	s.st.badge = 0
}

// markActive flags the track playing on the transport. It must be called with
// mu held.
func (s *Session) markActive() {
	for i := range s.st.cueList {
		s.st.cueList[i].Active = s.st.transport != nil && s.st.cueList[i].UID == s.st.transport.CurrentTrack.UID
	}
}

// fetchTransport reads the first active transport.
func (s *Session) fetchTransport(ctx context.Context, c *d3.Client) (d3.Transport, error) {
	ts, err := c.ActiveTransports(ctx)
	if err = s.check(ctx, err); err != nil {
		return d3.Transport{}, err
	}
	if len(ts) == 0 {
		s.alerts.Push(MsgNoTransport)
		return d3.Transport{}, ErrNoTransport
	}
	return ts[0], nil
}

// refreshTransport re-reads the engaged transport and re-marks the active
// track. Nothing is stored if the transport was disengaged meanwhile.
func (s *Session) refreshTransport(ctx context.Context) error {
	s.mu.RLock()
	engaged := s.st.engaged
	c := s.client
	s.mu.RUnlock()
	if !engaged {
		return nil
	}

	t, err := s.fetchTransport(ctx, c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.st.engaged && s.client == c {
		s.st.transport = &t
		s.markActive()
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// engaged returns the active transport, or alerts and fails when there is none.
func (s *Session) engaged() (d3.Transport, *d3.Client, error) {
	s.mu.RLock()
	var t d3.Transport
	ok := s.st.engaged && s.st.transport != nil
	if ok {
		t = *s.st.transport
	}
	c := s.client
	s.mu.RUnlock()

	if !ok {
		s.alerts.Push(MsgNotEngaged)
		return d3.Transport{}, nil, ErrNotEngaged
	}
	return t, c, nil
}

// ToggleEngage engages the first active transport or disengages the current
// one. Engaging starts the notification poll, disengaging stops it and clears
// everything read through the transport. It reports whether the transport is
// now engaged.
func (s *Session) ToggleEngage(ctx context.Context) (engaged bool, err error) {
	ctx, done := s.start(ctx, "ToggleEngage")
	defer done(&err)

	s.mu.Lock()
	if s.st.engaged {
		task := s.notifier
		s.clearTransport()
		s.mu.Unlock()
		if task != nil {
			task.Wait()
		}
		s.logInfo("transport disengaged")
		s.notify()
		return false, nil
	}
	c := s.client
	s.mu.Unlock()

	t, err := s.fetchTransport(ctx, c)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.st.engaged || s.client != c {
		engaged = s.st.engaged
		s.mu.Unlock()
		return engaged, nil
	}
	s.st.engaged = true
	s.st.transport = &t
	s.notifier = poll.Start(s.ctx, s.clock, NotificationInterval, func(ctx context.Context) {
		s.tick("notifications")
		s.refreshNotifications(ctx, true)
	})
	s.mu.Unlock()
	s.logInfo("transport engaged", "transport", t.Name, "track", t.CurrentTrack.Name)
	s.notify()
	return true, nil
}

// TransportAction posts action, e.g. play or gotonexttrack, for the engaged
// transport. Track changes are read back shortly after.
func (s *Session) TransportAction(ctx context.Context, action string) (err error) {
	ctx, done := s.start(ctx, "TransportAction")
	defer done(&err)

	t, c, err := s.engaged()
	if err != nil {
		return err
	}
	err = s.check(ctx, c.TransportAction(ctx, action, t.Ref()))
	if err != nil && !errors.Is(err, d3.ErrStatus) {
		return err
	}
	if strings.Contains(action, "track") {
		s.later(followUpDelay, func(ctx context.Context) {
			s.refreshTransport(ctx)
		})
	}
	return err
}

// LoadCueList reads the notes and tags of every track into the cue list.
// Tracks without readable annotations are left out.
func (s *Session) LoadCueList(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "LoadCueList")
	defer done(&err)

	_, c, err := s.engaged()
	if err != nil {
		return err
	}
	if err = s.refreshTransport(ctx); err != nil {
		return err
	}

	tracks, err := c.Tracks(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}

	results := make([]*TrackCues, len(tracks))
	ferr := s.fanOut(len(tracks), func(i int) error {
		a, err := c.Annotations(ctx, tracks[i])
		if err != nil {
			return err
		}
		if a.Annotations == nil {
			return nil
		}
		results[i] = &TrackCues{UID: tracks[i].UID, Name: tracks[i].Name, Cues: a.Cues()}
		return nil
	})
	if ferr != nil {
		s.check(ctx, ferr)
	}

	list := make([]TrackCues, 0, len(results))
	for _, r := range results {
		if r != nil {
			list = append(list, *r)
		}
	}

	s.mu.Lock()
	if s.st.engaged && s.client == c {
		s.st.cueList = list
		s.markActive()
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) track(uid string) (TrackCues, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tc := range s.st.cueList {
		if tc.UID == uid {
			return tc, true
		}
	}
	return TrackCues{}, false
}

// GoToTrack jumps the engaged transport to the track and marks it active. The
// transport is read back shortly after.
func (s *Session) GoToTrack(ctx context.Context, uid string) (err error) {
	ctx, done := s.start(ctx, "GoToTrack")
	defer done(&err)

	t, c, err := s.engaged()
	if err != nil {
		return err
	}
	tc, ok := s.track(uid)
	if !ok {
		return errors.Wrapf(table.ErrUnknownRow, "track %q", uid)
	}

	err = s.check(ctx, c.GoToTrack(ctx, t.Ref(), d3.Track{UID: tc.UID, Name: tc.Name}))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.st.transport != nil && s.st.transport.UID == t.UID {
		s.st.transport.CurrentTrack = d3.Ref{UID: tc.UID, Name: tc.Name}
		s.markActive()
	}
	s.mu.Unlock()
	s.notify()
	s.later(followUpDelay, func(ctx context.Context) {
		s.refreshTransport(ctx)
	})
	return nil
}

// GoToCue jumps to the cue at index in the cue list of the track. Notes go
// through gotonote, tags through gototag.
func (s *Session) GoToCue(ctx context.Context, trackUID string, index int) (err error) {
	ctx, done := s.start(ctx, "GoToCue")
	defer done(&err)

	t, c, err := s.engaged()
	if err != nil {
		return err
	}
	tc, ok := s.track(trackUID)
	if !ok {
		return errors.Wrapf(table.ErrUnknownRow, "track %q", trackUID)
	}
	if index < 0 || index >= len(tc.Cues) {
		return errors.Wrapf(table.ErrUnknownRow, "cue %d of track %q", index, tc.Name)
	}
	cue := tc.Cues[index]

	err = s.check(ctx, c.GoToCue(ctx, t.Ref(), d3.CueJump{Note: cue.Note, Type: cue.Type, Value: cue.Tag}))
	if err != nil && !errors.Is(err, d3.ErrStatus) {
		return err
	}
	s.later(followUpDelay, func(ctx context.Context) {
		s.refreshTransport(ctx)
	})
	return err
}

// SetMasterOutput sets the volume or brightness of the engaged transport.
func (s *Session) SetMasterOutput(ctx context.Context, property string, value float64) (err error) {
	ctx, done := s.start(ctx, "SetMasterOutput")
	defer done(&err)

	t, c, err := s.engaged()
	if err != nil {
		return err
	}
	return s.check(ctx, c.SetMasterOutput(ctx, t.Ref(), property, value))
}

// RefreshNotifications reads the status notifications of every machine. The
// transport must be engaged.
func (s *Session) RefreshNotifications(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "RefreshNotifications")
	defer done(&err)

	if _, _, err = s.engaged(); err != nil {
		return err
	}
	return s.refreshNotifications(ctx, false)
}

// refreshNotifications groups notifications by machine, leaving out machines
// without any. An empty answer clears the list and the badge.
func (s *Session) refreshNotifications(ctx context.Context, quiet bool) error {
	s.mu.RLock()
	c := s.client
	s.mu.RUnlock()
	s.setIndicator(IndicatorPending)

	machines, err := c.Notifications(ctx)
	if quiet {
		err = s.observe(ctx, "notifications", err)
	} else {
		err = s.check(ctx, err)
	}
	if err != nil {
		if ctx.Err() == nil {
			s.setIndicator(IndicatorFailed)
		}
		return err
	}

	var (
		grouped []MachineNotices
		total   int
	)
	for _, m := range machines {
		if len(m.Notifications) == 0 {
			continue
		}
		grouped = append(grouped, MachineNotices{Machine: m.Machine.Name, Notifications: m.Notifications})
		total += len(m.Notifications)
	}

	// a disengage while the fetch was running already cleared the badge
	s.mu.Lock()
	if ctx.Err() == nil && s.client == c && s.st.engaged {
		s.st.notifications = grouped
		s.st.badge = total
	}
	s.st.indicator = IndicatorOK
	s.mu.Unlock()
	s.notify()
	return nil
}
