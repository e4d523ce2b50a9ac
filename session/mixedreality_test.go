package session

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

func mockMRSets(camera string) {
	set := map[string]interface{}{"uid": "s1", "name": "stage"}
	if camera != "" {
		set["currentCamera"] = map[string]string{"uid": camera, "name": camera}
	}
	gock.New(testBase).
		Get("/api/session/mixedreality/mrsets").
		Reply(200).
		JSON(ok([]interface{}{set, map[string]interface{}{"uid": "s2"}}))
}

func mockCameras(times int) {
	gock.New(testBase).
		Get("/api/session/mixedreality/cameras").
		Times(times).
		Reply(200).
		JSON(ok([]map[string]interface{}{
			{"uid": "cam1", "name": "cam1", "spatialCalibration": map[string]string{"uid": "sc1", "name": "cal 1"}},
			{"uid": "cam2", "name": "cam2", "spatialCalibration": map[string]string{"uid": "sc2", "name": "cal 2"}},
		}))
}

func mockCalibrations() {
	gock.New(testBase).
		Get("/api/session/mixedreality/spatialcalibrations").
		Reply(200).
		JSON(ok([]map[string]interface{}{
			{"uid": "sc1", "observations": []map[string]interface{}{
				{
					"uid": "o1", "isEnabled": true, "type": "manual",
					"trackedPose": map[string]interface{}{"position": map[string]float64{"x": 1, "y": 2.5, "z": -3}},
					"zoom":        1.5, "focus": 0.25, "rmsError": 0.123456789,
				},
				{"uid": "o2", "isEnabled": false},
			}},
			{"uid": "sc2", "observations": []map[string]interface{}{{"uid": "o3"}}},
		}))
}

func loadMR(t *testing.T, s *Session) {
	t.Helper()
	mockMRSets("cam1")
	mockCameras(2)
	mockCalibrations()
	require.NoError(t, s.RefreshMRSets(context.Background()))
}

func TestRefreshMRSets(t *testing.T) {
	assert := require.New(t)
	s, _ := newTestSession(t)
	loadMR(t, s)
	assert.True(gock.IsDone())

	mr := s.Snapshot().MixedReality
	assert.Len(mr.Sets, 2)
	assert.True(mr.Sets[0].Selected)
	assert.Equal("cam1", mr.Sets[0].Data.CameraName)
	assert.Equal(None, mr.Sets[1].Data.Name)
	assert.Equal(None, mr.Sets[1].Data.CameraName)
	assert.Len(mr.Sets[0].Data.Choices, 2)

	assert.Equal("cam1", mr.Caption)
	assert.Equal("sc1", mr.Calibration.UID)
	assert.Len(mr.Observations, 2)
	obs := mr.Observations[0].Data
	assert.Equal(1, obs.Index)
	assert.Equal("1,2.5,-3", obs.Position)
	assert.Equal("1.5x", obs.Zoom)
	assert.Equal("0.25", obs.Focus)
	assert.Equal("0.12345", obs.RMSError)
	assert.True(obs.Enabled)
}

func TestSelectMRSetWithoutCamera(t *testing.T) {
	assert := require.New(t)
	s, _ := newTestSession(t)
	loadMR(t, s)

	mockCalibrations()
	mockCameras(1)
	selected, err := s.SelectMRSet(context.Background(), "s2")
	assert.NoError(err)
	assert.True(selected)

	mr := s.Snapshot().MixedReality
	assert.False(mr.Sets[0].Selected)
	assert.Empty(mr.Observations)
	assert.Nil(mr.Calibration)

	assert.True(errors.Is(s.CaptureObservation(context.Background()), ErrNoCamera))
	assert.True(errors.Is(s.DeleteAllObservations(context.Background()), ErrNoCalibration))
}

func TestObservationEdits(t *testing.T) {
	assert := require.New(t)
	s, _ := newTestSession(t)
	ctx := context.Background()
	loadMR(t, s)

	assert.True(errors.Is(s.EnableObservation(ctx, true), ErrNoSelection))

	_, err := s.SelectObservation("o2")
	assert.NoError(err)

	gock.New(testBase).
		Post("/api/session/mixedreality/enableobservations").
		MatchType("json").
		JSON(map[string]interface{}{"observations": []map[string]interface{}{{"uid": "o2", "enable": true}}}).
		Reply(200).
		JSON(ok(nil))
	mockCalibrations()
	mockCameras(1)
	assert.NoError(s.MRAction(ctx, ActionEnable, ""))
	assert.True(gock.IsDone())

	gock.New(testBase).
		Post("/api/session/mixedreality/deleteallobservations").
		MatchType("json").
		JSON(map[string]interface{}{"spatialCalibration": map[string]string{"uid": "sc1", "name": "cal 1"}}).
		Reply(200).
		JSON(ok(nil))
	mockCalibrations()
	mockCameras(1)
	assert.NoError(s.MRAction(ctx, ActionDeleteAll, ""))
	assert.True(gock.IsDone())

	assert.True(errors.Is(s.MRAction(ctx, "explode", ""), d3.ErrInvalidAction))
}

func TestOverrideCamera(t *testing.T) {
	assert := require.New(t)
	s, _ := newTestSession(t)
	ctx := context.Background()
	loadMR(t, s)

	assert.Error(s.OverrideCamera(ctx, "cam9"))

	gock.New(testBase).
		Post("/api/session/mixedreality/selectcamera").
		MatchType("json").
		JSON(map[string]interface{}{
			"mrSet":          map[string]string{"uid": "s1", "name": "stage"},
			"cameraOverride": map[string]string{"uid": "cam2", "name": "cam2"},
		}).
		Reply(200).
		JSON(ok(nil))
	mockMRSets("cam2")
	mockCameras(2)
	mockCalibrations()
	assert.NoError(s.MRAction(ctx, ActionSelectCam, "cam2"))
	assert.True(gock.IsDone())

	mr := s.Snapshot().MixedReality
	assert.Equal("cam2", mr.Caption)
	assert.Len(mr.Observations, 1)
}

func captureAsync(s *Session) <-chan error {
	res := make(chan error, 1)
	go func() {
		res <- s.CaptureObservation(context.Background())
	}()
	return res
}

// drive moves the mock clock a second at a time until the capture returns.
func drive(t *testing.T, mock *clock.Mock, res <-chan error) error {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-res:
			return err
		case <-deadline:
			t.Fatal("capture never returned")
		case <-time.After(5 * time.Millisecond):
			mock.Add(CaptureInterval)
		}
	}
}

func TestCaptureObservation(t *testing.T) {
	assert := require.New(t)
	s, mock := newTestSession(t)
	loadMR(t, s)

	gock.New(testBase).
		Post("/api/session/mixedreality/captureobservation").
		MatchType("json").
		JSON(map[string]interface{}{
			"camera":             map[string]string{"uid": "cam1", "name": "cam1"},
			"spatialCalibration": map[string]string{"uid": "sc1", "name": "cal 1"},
		}).
		Reply(200).
		JSON(ok(nil))
	gock.New(testBase).
		Get("/api/session/mixedreality/captureprogress").
		Times(2).
		Reply(200).
		JSON(ok(true))
	gock.New(testBase).
		Get("/api/session/mixedreality/captureprogress").
		Reply(200).
		JSON(ok(false))
	mockCalibrations()
	mockCameras(1)

	assert.NoError(drive(t, mock, captureAsync(s)))
	assert.True(gock.IsDone())
	assert.False(s.Snapshot().MixedReality.CaptureInProgress)
}

func TestCaptureTimeout(t *testing.T) {
	assert := require.New(t)
	s, mock := newTestSession(t, CaptureTimeout(5*time.Second))
	loadMR(t, s)

	gock.New(testBase).
		Post("/api/session/mixedreality/captureobservation").
		Reply(200).
		JSON(ok(nil))
	gock.New(testBase).
		Get("/api/session/mixedreality/captureprogress").
		Persist().
		Reply(200).
		JSON(ok(true))

	res := captureAsync(s)
	require.Eventually(t, func() bool {
		return s.Snapshot().MixedReality.CaptureInProgress
	}, 2*time.Second, time.Millisecond)
	assert.True(errors.Is(s.CaptureObservation(context.Background()), ErrCaptureRunning))

	err := drive(t, mock, res)
	assert.True(errors.Is(err, ErrCaptureTimeout))
	assert.False(s.Snapshot().MixedReality.CaptureInProgress)
	assert.Contains(alertMessages(s), MsgCaptureTimeout)
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0"},
		{in: 0.125, want: "0.125"},
		{in: -2.5, want: "-2.5"},
		{in: 1e-6, want: "0.000001"},
		{in: 1e-7, want: "1e-7"},
		{in: -3.25e-9, want: "-3.25e-9"},
		{in: 1e21, want: "1e+21"},
		{in: 123456789, want: "123456789"},
	}
	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			require.Equal(t, test.want, formatFloat(test.in))
		})
	}

	assert := require.New(t)
	assert.Equal("1e-7", truncate(formatFloat(1e-7), 7))
	assert.Equal("0.01234", truncate(formatFloat(0.0123456789), 7))
}
