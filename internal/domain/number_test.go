package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberDecodesPlatformShapes(t *testing.T) {
	cases := map[string]Number{
		`12.5`:     Num(12.5),
		`"12.50"`:  Num(12.5),
		`" 3 "`:    Num(3),
		`null`:     {},
		`""`:       {},
		`"abc"`:    {},
		`"1e2"`:    Num(100),
		`"-0.125"`: Num(-0.125),
	}
	for raw, want := range cases {
		var got Number
		require.NoError(t, json.Unmarshal([]byte(raw), &got), raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNumberRejectsNonFinite(t *testing.T) {
	assert.False(t, Num(math.NaN()).Valid)
	assert.False(t, Num(math.Inf(1)).Valid)
	assert.Equal(t, 7.0, Num(math.Inf(-1)).Or(7))
}

func TestNumberEncodesMissingAsNull(t *testing.T) {
	payload, err := json.Marshal(struct {
		A Number `json:"a"`
		B Number `json:"b"`
	}{A: Num(0.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0.5,"b":null}`, string(payload))
}

func TestDateAcceptsDayAndTimestamp(t *testing.T) {
	var day Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-16"`), &day))
	assert.Equal(t, "2026-03-16", day.String())

	var stamp Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-16T18:45:00Z"`), &stamp))
	assert.True(t, day.Equal(stamp.Time))

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`"16/03/2026"`), &bad))

	payload, err := json.Marshal(NewDate(time.Date(2026, 3, 16, 23, 59, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-16"`, string(payload))
}
