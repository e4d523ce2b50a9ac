package d3

import "context"

// https://developer.disguise.one/api/session/mixedreality/
const mixedRealityAPI = "/api/session/mixedreality/"

func (c *Client) Cameras(ctx context.Context) ([]Camera, error) {
	var cams []Camera
	err := c.Get(ctx, mixedRealityAPI+"cameras", nil, &cams)
	return cams, err
}

func (c *Client) MRSets(ctx context.Context) ([]MRSet, error) {
	var sets []MRSet
	err := c.Get(ctx, mixedRealityAPI+"mrsets", nil, &sets)
	return sets, err
}

func (c *Client) SpatialCalibrations(ctx context.Context) ([]SpatialCalibration, error) {
	var cals []SpatialCalibration
	err := c.Get(ctx, mixedRealityAPI+"spatialcalibrations", nil, &cals)
	return cals, err
}

// CaptureInProgress reports whether an observation capture is still running.
func (c *Client) CaptureInProgress(ctx context.Context) (bool, error) {
	var busy bool
	err := c.Get(ctx, mixedRealityAPI+"captureprogress", nil, &busy)
	return busy, err
}

// CaptureObservation starts capturing a new observation for camera into cal.
func (c *Client) CaptureObservation(ctx context.Context, camera, cal Ref) error {
	body := struct {
		Camera             Ref `json:"camera"`
		SpatialCalibration Ref `json:"spatialCalibration"`
	}{camera, cal}
	return c.Post(ctx, mixedRealityAPI+"captureobservation", body, nil)
}

type observationEnable struct {
	UID    string `json:"uid"`
	Enable bool   `json:"enable"`
}

// EnableObservations enables or disables the observations with the given uids.
func (c *Client) EnableObservations(ctx context.Context, enable bool, uids ...string) error {
	body := struct {
		Observations []observationEnable `json:"observations"`
	}{}
	for _, uid := range uids {
		body.Observations = append(body.Observations, observationEnable{UID: uid, Enable: enable})
	}
	return c.Post(ctx, mixedRealityAPI+"enableobservations", body, nil)
}

func (c *Client) DeleteObservations(ctx context.Context, uids ...string) error {
	body := struct {
		Observations []string `json:"observations"`
	}{uids}
	return c.Post(ctx, mixedRealityAPI+"deleteobservations", body, nil)
}

func (c *Client) DeleteAllObservations(ctx context.Context, cal Ref) error {
	body := struct {
		SpatialCalibration Ref `json:"spatialCalibration"`
	}{cal}
	return c.Post(ctx, mixedRealityAPI+"deleteallobservations", body, nil)
}

// SelectCamera overrides the camera used by an MR set.
func (c *Client) SelectCamera(ctx context.Context, set, camera Ref) error {
	body := struct {
		MRSet          Ref `json:"mrSet"`
		CameraOverride Ref `json:"cameraOverride"`
	}{set, camera}
	return c.Post(ctx, mixedRealityAPI+"selectcamera", body, nil)
}
