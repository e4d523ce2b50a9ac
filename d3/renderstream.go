package d3

import (
	"context"
	"net/url"
)

// https://developer.disguise.one/api/session/renderstream/
const renderstreamAPI = "/api/session/renderstream/"

func layerQuery(l Layer) url.Values {
	return url.Values{"uid": {l.UID}, "name": {l.Name}}
}

func (c *Client) Layers(ctx context.Context) ([]Layer, error) {
	var layers []Layer
	err := c.Get(ctx, renderstreamAPI+"layers", nil, &layers)
	return layers, err
}

func (c *Client) LayerConfig(ctx context.Context, l Layer) (LayerConfig, error) {
	var cfg LayerConfig
	err := c.Get(ctx, renderstreamAPI+"layerconfig", layerQuery(l), &cfg)
	return cfg, err
}

func (c *Client) LayerStatus(ctx context.Context, l Layer) (LayerStatus, error) {
	var st LayerStatus
	err := c.Get(ctx, renderstreamAPI+"layerstatus", layerQuery(l), &st)
	return st, err
}

// LayerAction posts the given layers to the renderstream endpoint named action,
// e.g. startlayers or stoplayers.
func (c *Client) LayerAction(ctx context.Context, action string, layers []Layer) error {
	if err := checkAction(action); err != nil {
		return err
	}
	body := struct {
		Layers []Layer `json:"layers"`
	}{layers}
	if body.Layers == nil {
		body.Layers = []Layer{}
	}
	return c.Post(ctx, renderstreamAPI+action, body, nil)
}
