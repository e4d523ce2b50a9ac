package d3

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

const (
	// https://developer.disguise.one/api/session/transport/
	transportAPI = "/api/session/transport/"
	// https://developer.disguise.one/api/session/status/
	statusAPI = "/api/session/status/"

	PlayModeNotSet = "NotSet"
)

// ActiveTransports lists the active transports, the panel drives the first one.
func (c *Client) ActiveTransports(ctx context.Context) ([]Transport, error) {
	var ts []Transport
	err := c.Get(ctx, transportAPI+"activetransport", nil, &ts)
	return ts, err
}

func (c *Client) Tracks(ctx context.Context) ([]Track, error) {
	var tracks []Track
	err := c.Get(ctx, transportAPI+"tracks", nil, &tracks)
	return tracks, err
}

func (c *Client) Annotations(ctx context.Context, t Track) (Annotations, error) {
	var a Annotations
	err := c.Get(ctx, transportAPI+"annotations", url.Values{"uid": {t.UID}, "name": {t.Name}}, &a)
	return a, err
}

// TransportAction posts the transport to the endpoint named action, e.g. play,
// stop or gotonexttrack.
func (c *Client) TransportAction(ctx context.Context, action string, t Ref) error {
	if err := checkAction(action); err != nil {
		return err
	}
	body := struct {
		Transports []Ref `json:"transports"`
	}{[]Ref{t}}
	return c.Post(ctx, transportAPI+action, body, nil)
}

func (c *Client) GoToTrack(ctx context.Context, t Ref, track Track) error {
	type entry struct {
		Transport Ref    `json:"transport"`
		Track     Ref    `json:"track"`
		PlayMode  string `json:"playmode"`
	}
	body := struct {
		Transports []entry `json:"transports"`
	}{[]entry{{Transport: t, Track: Ref{UID: track.UID, Name: track.Name}, PlayMode: PlayModeNotSet}}}
	return c.Post(ctx, transportAPI+"gototrack", body, nil)
}

// CueJump describes a jump to a note or tag.
type CueJump struct {
	Note  string
	Type  string
	Value string
}

// GoToCue jumps to a note when cue.Note is set, otherwise to a tag.
func (c *Client) GoToCue(ctx context.Context, t Ref, cue CueJump) error {
	type entry struct {
		Transport       Ref    `json:"transport"`
		Note            string `json:"note"`
		Type            string `json:"type"`
		Value           string `json:"value"`
		AllowGlobalJump bool   `json:"allowGlobalJump"`
		PlayMode        string `json:"playmode"`
	}
	body := struct {
		Transports []entry `json:"transports"`
	}{[]entry{{
		Transport:       t,
		Note:            cue.Note,
		Type:            cue.Type,
		Value:           cue.Value,
		AllowGlobalJump: true,
		PlayMode:        PlayModeNotSet,
	}}}

	action := "gototag"
	if cue.Note != "" {
		action = "gotonote"
	}
	return c.Post(ctx, transportAPI+action, body, nil)
}

// ErrInvalidOutput is returned for master output properties other than volume and brightness.
var ErrInvalidOutput = errors.New("master output must be volume or brightness")

// SetMasterOutput sets the volume or brightness of the transport.
func (c *Client) SetMasterOutput(ctx context.Context, t Ref, property string, value float64) error {
	if property != "volume" && property != "brightness" {
		return errors.Wrapf(ErrInvalidOutput, "%q", property)
	}
	body := map[string][]map[string]interface{}{
		"transports": {{
			"transport": t,
			property:    value,
		}},
	}
	return c.Post(ctx, transportAPI+property, body, nil)
}

func (c *Client) Notifications(ctx context.Context) ([]MachineNotifications, error) {
	var n []MachineNotifications
	err := c.Get(ctx, statusAPI+"notifications", nil, &n)
	return n, err
}
