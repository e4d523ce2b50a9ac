package d3

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

const testBase = "http://10.0.0.5:80"

func newTestClient(t *testing.T, options ...Option) *Client {
	t.Helper()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	t.Cleanup(gock.Off)
	return New("10.0.0.5", 80, append([]Option{HTTPClient(hc)}, options...)...)
}

func ok(result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"status": map[string]interface{}{"code": 0, "message": "", "details": []interface{}{}},
		"result": result,
	}
}

func TestGetDecodesResult(t *testing.T) {
	assert := require.New(t)
	c := newTestClient(t)

	gock.New(testBase).
		Get("/api/session/colour/cdls").
		Reply(200).
		JSON(ok([]map[string]interface{}{
			{"uid": "1", "name": "warm", "slope": map[string]float64{"x": 1, "y": 1.1, "z": 0.9}, "saturation": 1.2},
			{"uid": "2", "name": "cold"},
		}))

	cdls, err := c.CDLs(context.Background())
	assert.NoError(err)
	assert.Len(cdls, 2)
	assert.Equal("warm", cdls[0].Name)
	assert.Equal(1.1, cdls[0].Slope.Y)
	assert.Equal(1.2, cdls[0].Saturation)
	assert.True(gock.IsDone())
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	assert := require.New(t)
	c := newTestClient(t)

	gock.New(testBase).
		Get("/api/session/status/notifications").
		Reply(200).
		JSON(ok([]interface{}{}))

	n, err := c.Notifications(context.Background())
	assert.NoError(err)
	assert.Empty(n)
}

func TestRequestErrors(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		assert := require.New(t)
		c := newTestClient(t)
		gock.New(testBase).
			Get("/api/session/renderstream/layers").
			ReplyError(errors.New("connection refused"))

		_, err := c.Layers(context.Background())
		assert.Error(err)
		assert.True(errors.Is(err, ErrRequest))
		var rerr *RequestError
		assert.True(errors.As(err, &rerr))
		assert.Equal(http.MethodGet, rerr.Method)
	})
	t.Run("not json", func(t *testing.T) {
		assert := require.New(t)
		c := newTestClient(t)
		gock.New(testBase).
			Get("/api/session/renderstream/layers").
			Reply(200).
			BodyString("<html>d3 is starting</html>")

		_, err := c.Layers(context.Background())
		assert.True(errors.Is(err, ErrRequest))
	})
	t.Run("wrong result shape", func(t *testing.T) {
		assert := require.New(t)
		c := newTestClient(t)
		gock.New(testBase).
			Get("/api/session/renderstream/layers").
			Reply(200).
			JSON(ok("not a list"))

		_, err := c.Layers(context.Background())
		assert.True(errors.Is(err, ErrRequest))
	})
}

func TestStatusMessagesAreHandedOver(t *testing.T) {
	assert := require.New(t)
	var got []string
	c := newTestClient(t, OnStatus(func(_ context.Context, s Status) {
		got = append(got, s.DetailMessage())
	}))

	gock.New(testBase).
		Post("/api/session/colour/cdl").
		Reply(200).
		JSON(map[string]interface{}{
			"status": map[string]interface{}{
				"code":    0,
				"details": []map[string]string{{"type": "warning", "message": "cdl is locked"}},
			},
		})
	gock.New(testBase).
		Post("/api/session/renderstream/stoplayers").
		Reply(400).
		JSON(map[string]interface{}{
			"status": map[string]interface{}{
				"code":    3,
				"message": "bad request",
				"details": []map[string]string{{"message": "unknown layer"}},
			},
		})

	err := c.SetCDL(context.Background(), CDL{UID: "1", Name: "warm"})
	assert.NoError(err)

	err = c.LayerAction(context.Background(), "stoplayers", []Layer{{UID: "9", Name: "x"}})
	assert.True(errors.Is(err, ErrStatus))
	assert.False(errors.Is(err, ErrRequest))

	assert.Equal([]string{"cdl is locked", "unknown layer"}, got)
}

func TestPostBodies(t *testing.T) {
	assert := require.New(t)
	c := newTestClient(t)
	ctx := context.Background()
	tr := Ref{UID: "t1", Name: "main"}

	gock.New(testBase).
		Post("/api/session/transport/gotonote").
		JSON(map[string]interface{}{
			"transports": []map[string]interface{}{{
				"transport":       map[string]string{"uid": "t1", "name": "main"},
				"note":            "intro",
				"type":            "note",
				"value":           "",
				"allowGlobalJump": true,
				"playmode":        "NotSet",
			}},
		}).
		Reply(200).
		JSON(ok(nil))
	gock.New(testBase).
		Post("/api/session/transport/gototag").
		Reply(200).
		JSON(ok(nil))
	gock.New(testBase).
		Post("/api/session/transport/brightness").
		JSON(map[string]interface{}{
			"transports": []map[string]interface{}{{
				"transport":  map[string]string{"uid": "t1", "name": "main"},
				"brightness": 0.5,
			}},
		}).
		Reply(200).
		JSON(ok(nil))
	gock.New(testBase).
		Post("/api/session/mixedreality/enableobservations").
		JSON(map[string]interface{}{
			"observations": []map[string]interface{}{{"uid": "o1", "enable": false}},
		}).
		Reply(200).
		JSON(ok(nil))

	assert.NoError(c.GoToCue(ctx, tr, CueJump{Note: "intro", Type: "note"}))
	assert.NoError(c.GoToCue(ctx, tr, CueJump{Type: "tc", Value: "01:00:00:00"}))
	assert.NoError(c.SetMasterOutput(ctx, tr, "brightness", 0.5))
	assert.NoError(c.EnableObservations(ctx, false, "o1"))
	assert.True(gock.IsDone())

	err := c.SetMasterOutput(ctx, tr, "gain", 1)
	assert.True(errors.Is(err, ErrInvalidOutput))
}

func TestInvalidActionsNeverLeave(t *testing.T) {
	assert := require.New(t)
	c := newTestClient(t)
	ctx := context.Background()

	for _, action := range []string{"", "../colour/cdl", "stop layers", "Stop"} {
		assert.True(errors.Is(c.LayerAction(ctx, action, nil), ErrInvalidAction), action)
		assert.True(errors.Is(c.ProjectAction(ctx, action, nil), ErrInvalidAction), action)
		assert.True(errors.Is(c.TransportAction(ctx, action, Ref{}), ErrInvalidAction), action)
	}
}

func TestLayerQuery(t *testing.T) {
	assert := require.New(t)
	c := newTestClient(t)

	gock.New(testBase).
		Get("/api/session/renderstream/layerconfig").
		MatchParam("uid", "42").
		MatchParam("name", "stage left").
		Reply(200).
		JSON(ok(map[string]interface{}{
			"asset":           map[string]string{"uid": "a", "name": "unreal"},
			"channelMappings": []map[string]interface{}{{"channel": "ch1", "mapping": map[string]string{"name": "led"}, "assigner": map[string]string{"name": "auto"}}},
		}))

	cfg, err := c.LayerConfig(context.Background(), Layer{UID: "42", Name: "stage left"})
	assert.NoError(err)
	assert.NotNil(cfg.Asset)
	assert.Nil(cfg.Pool)
	assert.Equal("led", cfg.ChannelMappings[0].Mapping.Name)
}

func TestWithHost(t *testing.T) {
	assert := require.New(t)
	c := newTestClient(t)
	other := c.WithHost("10.0.0.9")

	gock.New("http://10.0.0.9:80").
		Post("/api/service/project/startlocalproject").
		JSON(map[string]interface{}{"projectPath": `projects\show`, "soloMode": true, "allowUpgrade": false}).
		Reply(200).
		JSON(ok(nil))

	err := other.ProjectAction(context.Background(), StartLocalProject, StartProject{ProjectPath: `projects\show`, SoloMode: true})
	assert.NoError(err)
	assert.True(gock.IsDone())
}

func TestMetrics(t *testing.T) {
	assert := require.New(t)
	totals := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t"}, []string{"method", "group"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "e"}, []string{"method", "group"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "d"}, []string{"method", "group"})
	c := newTestClient(t, Metrics(totals, errs, duration))

	gock.New(testBase).Get("/api/session/transport/tracks").Reply(200).JSON(ok([]interface{}{}))
	gock.New(testBase).Get("/api/session/transport/tracks").ReplyError(errors.New("reset"))

	_, err := c.Tracks(context.Background())
	assert.NoError(err)
	_, err = c.Tracks(context.Background())
	assert.Error(err)

	labels := prometheus.Labels{"method": "GET", "group": "transport"}
	assert.Equal(2.0, testutil.ToFloat64(totals.With(labels)))
	assert.Equal(1.0, testutil.ToFloat64(errs.With(labels)))
}

func TestGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/session/colour/cdls", "colour"},
		{"/api/service/system/detectsystems", "system"},
		{"/api/service/project/startlocalproject", "project"},
		{"/setting", ""},
	}
	for _, test := range tests {
		if got := group(test.path); got != test.want {
			t.Errorf("path: %s, want: %s, got: %s", test.path, test.want, got)
		}
	}
}
