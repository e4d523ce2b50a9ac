package d3

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
)

// https://developer.disguise.one/api/session/colour/
const colourAPI = "/api/session/colour/"

var actionRegex = regexp.MustCompile(`^[a-z]+$`)

// ErrInvalidAction is returned for action names that can not be an API endpoint.
var ErrInvalidAction = errors.New("invalid action name")

func checkAction(action string) error {
	if !actionRegex.MatchString(action) {
		return errors.Wrapf(ErrInvalidAction, "%q", action)
	}
	return nil
}

// CDLs lists every colour decision list of the session.
func (c *Client) CDLs(ctx context.Context) ([]CDL, error) {
	var cdls []CDL
	err := c.Get(ctx, colourAPI+"cdls", nil, &cdls)
	return cdls, err
}

// SetCDL overwrites the values of the CDL with cdl.UID.
func (c *Client) SetCDL(ctx context.Context, cdl CDL) error {
	body := struct {
		CDL CDL `json:"cdl"`
	}{cdl}
	return c.Post(ctx, colourAPI+"cdl", body, nil)
}
