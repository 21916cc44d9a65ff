package collection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{float64(7), "7", true},
		{7.5, "7.5", true},
		{"  7 ", "7", true},
		{json.Number("12"), "12", true},
		{int64(3), "3", true},
		{42, "42", true},
		{"", "", false},
		{nil, "", false},
		{true, "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeID(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestParseDelta(t *testing.T) {
	d, err := ParseDelta(json.RawMessage(`{"action":"UPDATE","id":1,"data":{"status":"closed"}}`))
	require.NoError(t, err)
	assert.Equal(t, Delta{Action: ActionUpdate, ID: "1", RawID: float64(1), Data: Entity{"status": "closed"}}, d)

	d, err = ParseDelta(json.RawMessage(`{"action":"create","data":{"id":"x9"}}`))
	require.NoError(t, err)
	assert.Equal(t, "x9", d.ID)
	assert.Equal(t, "x9", d.RawID)

	_, err = ParseDelta(json.RawMessage(`[1]`))
	assert.ErrorIs(t, err, ErrMalformedDelta)
	_, err = ParseDelta(json.RawMessage(`null`))
	assert.ErrorIs(t, err, ErrMalformedDelta)
}

func TestEventFor(t *testing.T) {
	assert.Equal(t, "request_update", EventFor("requests"))
	assert.Equal(t, "task_update", EventFor("tasks"))
	assert.Equal(t, "equipment_update", EventFor("equipment"))
	assert.Equal(t, "notification", EventFor("notifications"))
	assert.Equal(t, "vendors_update", EventFor("vendors"))
}
