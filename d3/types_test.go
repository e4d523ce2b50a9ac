package d3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Cue
	}{
		{
			name: "missing annotations",
			body: `{}`,
		},
		{
			name: "tag before note",
			body: `{"annotations":{"notes":[{"time":5,"text":"n1","type":"note"}],"tags":[{"time":2,"value":"t1","type":"tc"}]}}`,
			want: []Cue{
				{Time: 2, Tag: "t1", Type: "tc"},
				{Time: 5, Note: "n1", Type: "note"},
			},
		},
		{
			name: "stable on equal time",
			body: `{"annotations":{"notes":[{"time":1,"text":"a"},{"time":1,"text":"b"}],"tags":[{"time":1,"value":"c"},{"time":0,"value":"d"}]}}`,
			want: []Cue{
				{Time: 0, Tag: "d"},
				{Time: 1, Note: "a"},
				{Time: 1, Note: "b"},
				{Time: 1, Tag: "c"},
			},
		},
		{
			name: "empty lists",
			body: `{"annotations":{"notes":null,"tags":[]}}`,
			want: []Cue{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)
			var a Annotations
			assert.NoError(json.Unmarshal([]byte(test.body), &a))
			assert.Equal(test.want, a.Cues())
		})
	}
}
