package session

import (
	"github.com/hangyeol-kang/d3RW/alert"
	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/hangyeol-kang/d3RW/table"
)

// Placeholders for missing optional data.
const (
	None      = "None"
	Undefined = "undefined"
)

// Settings are the panel defaults served on /setting.
type Settings struct {
	MinValue     float64 `json:"minValue" mapstructure:"minValue"`
	MaxValue     float64 `json:"maxValue" mapstructure:"maxValue"`
	SoloMode     bool    `json:"soloMode" mapstructure:"soloMode"`
	AllowUpgrade bool    `json:"allowUpgrade" mapstructure:"allowUpgrade"`
}

// DefaultSettings match the slider range of the colour page.
var DefaultSettings = Settings{MinValue: 0, MaxValue: 2}

// Indicator is the state of the network indicator.
type Indicator string

const (
	IndicatorIdle    Indicator = "idle"
	IndicatorPending Indicator = "pending"
	IndicatorOK      Indicator = "ok"
	IndicatorFailed  Indicator = "failed"
)

type CDLRow struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// CDLDetail is the CDL being edited along with the slider range.
type CDLDetail struct {
	CDL d3.CDL  `json:"cdl"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	// Slider holds the CDL values limited to [Min, Max] for the sliders.
	Slider d3.CDL `json:"slider"`
}

type MRSetRow struct {
	UID        string   `json:"uid"`
	Name       string   `json:"name"`
	CameraName string   `json:"cameraName"`
	Set        d3.Ref   `json:"set"`
	Camera     *d3.Ref  `json:"camera,omitempty"`
	Choices    []d3.Ref `json:"choices"`
}

type ObservationRow struct {
	UID      string `json:"uid"`
	Enabled  bool   `json:"enabled"`
	Index    int    `json:"index"`
	Position string `json:"position"`
	Zoom     string `json:"zoom"`
	Focus    string `json:"focus"`
	RMSError string `json:"rmsError"`
	Type     string `json:"type"`
}

type SystemRow struct {
	Hostname       string `json:"hostname"`
	Type           string `json:"type"`
	RunningProject string `json:"runningProject"`
	IP             string `json:"ip"`
}

type ProjectRow struct {
	Path         string `json:"path"`
	Version      string `json:"version"`
	LastModified string `json:"lastModified"`
	LaunchPath   string `json:"launchPath"`
}

type LayerRow struct {
	UID      string   `json:"uid"`
	Name     string   `json:"name"`
	Asset    string   `json:"asset"`
	Pool     string   `json:"pool"`
	Mappings []string `json:"mappings"`
}

func (l LayerRow) layer() d3.Layer {
	return d3.Layer{UID: l.UID, Name: l.Name}
}

// StatusCard lists the instances of a selected layer.
type StatusCard struct {
	UID   string   `json:"uid"`
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// TrackCues is one track of the cue list.
type TrackCues struct {
	UID    string   `json:"uid"`
	Name   string   `json:"name"`
	Active bool     `json:"active"`
	Cues   []d3.Cue `json:"cues"`
}

type MachineNotices struct {
	Machine       string            `json:"machine"`
	Notifications []d3.Notification `json:"notifications"`
}

// AppState is everything the panel shows. It is owned by Session and only
// touched with Session.mu held.
type AppState struct {
	target    Target
	sidebar   bool
	indicator Indicator
	upstream  bool

	cdls      *table.Table[CDLRow]
	cdlDetail *CDLDetail

	mrsets       *table.Table[MRSetRow]
	observations *table.Table[ObservationRow]
	calibration  *d3.Ref
	caption      string
	capturing    bool

	systems  *table.Table[SystemRow]
	projects *table.Table[ProjectRow]

	layers     *table.Table[LayerRow]
	cards      []StatusCard
	monitoring bool

	engaged       bool
	transport     *d3.Transport
	cueList       []TrackCues
	notifications []MachineNotices
	badge         int
}

func newAppState(t Target) AppState {
	return AppState{
		target:       t,
		indicator:    IndicatorIdle,
		upstream:     true,
		cdls:         table.New(table.Single, func(r CDLRow) string { return r.UID }),
		mrsets:       table.New(table.Single, func(r MRSetRow) string { return r.UID }),
		observations: table.New(table.Single, func(r ObservationRow) string { return r.UID }),
		systems:      table.New(table.Multi, func(r SystemRow) string { return r.IP }),
		projects:     table.New(table.Single, func(r ProjectRow) string { return r.Path }),
		layers:       table.New(table.Multi, func(r LayerRow) string { return r.UID }),
	}
}

// Snapshot is a point in time copy of AppState, ready to be encoded as JSON.
type Snapshot struct {
	Target            Target         `json:"target"`
	SidebarCollapsed  bool           `json:"sidebarCollapsed"`
	Indicator         Indicator      `json:"indicator"`
	UpstreamReachable bool           `json:"upstreamReachable"`
	Settings          Settings       `json:"settings"`
	Alerts            []alert.Notice `json:"alerts"`

	Colour struct {
		CDLs   []table.Row[CDLRow] `json:"cdls"`
		Detail *CDLDetail          `json:"detail"`
	} `json:"colour"`

	MixedReality struct {
		Sets              []table.Row[MRSetRow]       `json:"sets"`
		Observations      []table.Row[ObservationRow] `json:"observations"`
		Calibration       *d3.Ref                     `json:"calibration"`
		Caption           string                      `json:"caption"`
		CaptureInProgress bool                        `json:"captureInProgress"`
	} `json:"mixedReality"`

	Project struct {
		Systems  []table.Row[SystemRow]  `json:"systems"`
		Projects []table.Row[ProjectRow] `json:"projects"`
	} `json:"project"`

	Renderstream struct {
		Layers     []table.Row[LayerRow] `json:"layers"`
		Cards      []StatusCard          `json:"cards"`
		Monitoring bool                  `json:"monitoring"`
	} `json:"renderstream"`

	Transport struct {
		Engaged       bool             `json:"engaged"`
		Active        *d3.Transport    `json:"active"`
		CueList       []TrackCues      `json:"cueList"`
		Notifications []MachineNotices `json:"notifications"`
		Badge         int              `json:"badge"`
	} `json:"transport"`
}

// snapshot must be called with mu held for reading.
func (st *AppState) snapshot() Snapshot {
	var snap Snapshot
	snap.Target = st.target
	snap.SidebarCollapsed = st.sidebar
	snap.Indicator = st.indicator
	snap.UpstreamReachable = st.upstream

	snap.Colour.CDLs = st.cdls.View()
	if st.cdlDetail != nil {
		d := *st.cdlDetail
		d.Slider = d.clamped()
		snap.Colour.Detail = &d
	}

	snap.MixedReality.Sets = st.mrsets.View()
	snap.MixedReality.Observations = st.observations.View()
	if st.calibration != nil {
		c := *st.calibration
		snap.MixedReality.Calibration = &c
	}
	snap.MixedReality.Caption = st.caption
	snap.MixedReality.CaptureInProgress = st.capturing

	snap.Project.Systems = st.systems.View()
	snap.Project.Projects = st.projects.View()

	snap.Renderstream.Layers = st.layers.View()
	snap.Renderstream.Cards = append([]StatusCard{}, st.cards...)
	snap.Renderstream.Monitoring = st.monitoring

	snap.Transport.Engaged = st.engaged
	if st.transport != nil {
		t := *st.transport
		snap.Transport.Active = &t
	}
	snap.Transport.CueList = append([]TrackCues{}, st.cueList...)
	snap.Transport.Notifications = append([]MachineNotices{}, st.notifications...)
	snap.Transport.Badge = st.badge
	return snap
}
