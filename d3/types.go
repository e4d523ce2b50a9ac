package d3

import (
	"encoding/json"
	"sort"
)

// Envelope is the wrapper every disguise API response comes in.
type Envelope struct {
	Status Status          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// Status is the server side outcome attached to an Envelope.
type Status struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details []StatusDetail `json:"details"`
}

type StatusDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DetailMessage returns the first detail message, or "" if the server did not report one.
func (s Status) DetailMessage() string {
	if len(s.Details) == 0 {
		return ""
	}
	return s.Details[0].Message
}

// Ref is the {uid, name} pair the API uses to point at any object.
type Ref struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CDL is a colour decision list as exposed by the colour API.
type CDL struct {
	UID        string  `json:"uid"`
	Name       string  `json:"name"`
	Slope      Vec3    `json:"slope"`
	Offset     Vec3    `json:"offset"`
	Power      Vec3    `json:"power"`
	Saturation float64 `json:"saturation"`
}

type Camera struct {
	UID                string `json:"uid"`
	Name               string `json:"name"`
	SpatialCalibration Ref    `json:"spatialCalibration"`
}

type MRSet struct {
	UID            string `json:"uid"`
	Name           string `json:"name"`
	CurrentCamera  *Ref   `json:"currentCamera"`
	CameraOverride *Ref   `json:"cameraOverride"`
}

type Pose struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

type Observation struct {
	UID         string  `json:"uid"`
	IsEnabled   bool    `json:"isEnabled"`
	TrackedPose Pose    `json:"trackedPose"`
	Zoom        float64 `json:"zoom"`
	Focus       float64 `json:"focus"`
	RMSError    float64 `json:"rmsError"`
	Type        string  `json:"type"`
}

type SpatialCalibration struct {
	UID          string        `json:"uid"`
	Name         string        `json:"name"`
	Observations []Observation `json:"observations"`
}

type System struct {
	Hostname       string `json:"hostname"`
	Type           string `json:"type"`
	RunningProject string `json:"runningProject"`
	IPAddress      string `json:"ipAddress"`
}

type Version struct {
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Hotfix   int `json:"hotfix"`
	Revision int `json:"revision"`
}

type Project struct {
	Path         string  `json:"path"`
	Version      Version `json:"version"`
	LastModified string  `json:"lastModified"`
}

// HostProjects is the list of projects found on a single machine.
type HostProjects struct {
	Hostname string    `json:"hostname"`
	Projects []Project `json:"projects"`
}

type Layer struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

type ChannelMapping struct {
	Channel  string `json:"channel"`
	Mapping  Ref    `json:"mapping"`
	Assigner Ref    `json:"assigner"`
}

type LayerConfig struct {
	Asset           *Ref             `json:"asset"`
	Pool            *Ref             `json:"pool"`
	ChannelMappings []ChannelMapping `json:"channelMappings"`
}

type Instance struct {
	MachineName   string `json:"machineName"`
	State         string `json:"state"`
	HealthMessage string `json:"healthMessage"`
}

type LayerStatus struct {
	Workload struct {
		Instances []Instance `json:"instances"`
	} `json:"workload"`
}

type Transport struct {
	UID          string  `json:"uid"`
	Name         string  `json:"name"`
	CurrentTrack Ref     `json:"currentTrack"`
	Volume       float64 `json:"volume"`
	Brightness   float64 `json:"brightness"`
}

// Ref returns the {uid, name} of the transport.
func (t Transport) Ref() Ref {
	return Ref{UID: t.UID, Name: t.Name}
}

type Track struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

type Note struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
	Type string  `json:"type"`
}

type Tag struct {
	Time  float64 `json:"time"`
	Value string  `json:"value"`
	Type  string  `json:"type"`
}

// Annotations is the result of the annotations endpoint. Annotations is nil
// when the server answered without the expected object.
type Annotations struct {
	Annotations *struct {
		Notes []Note `json:"notes"`
		Tags  []Tag  `json:"tags"`
	} `json:"annotations"`
}

// Cue is a note or a tag of a track, as listed in a cue list.
type Cue struct {
	Time float64 `json:"time"`
	Note string  `json:"note,omitempty"`
	Tag  string  `json:"tag,omitempty"`
	Type string  `json:"type"`
}

// Cues merges notes and tags into a single list ordered by time. Notes come
// before tags at the same time.
func (a Annotations) Cues() []Cue {
	if a.Annotations == nil {
		return nil
	}
	cues := make([]Cue, 0, len(a.Annotations.Notes)+len(a.Annotations.Tags))
	for _, n := range a.Annotations.Notes {
		cues = append(cues, Cue{Time: n.Time, Note: n.Text, Type: n.Type})
	}
	for _, t := range a.Annotations.Tags {
		cues = append(cues, Cue{Time: t.Time, Tag: t.Value, Type: t.Type})
	}
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Time < cues[j].Time })
	return cues
}

type Notification struct {
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

type MachineNotifications struct {
	Machine       Ref            `json:"machine"`
	Notifications []Notification `json:"notifications"`
}
