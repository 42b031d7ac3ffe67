package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowThreshold(t *testing.T) {
	const now = int64(1_700_000_000_000)

	assert.Equal(t, int64(1_699_913_600_000), Day.Threshold(now))
	assert.Equal(t, int64(1_699_395_200_000), Week.Threshold(now))
	assert.Equal(t, int64(0), All.Threshold(now))
}

func TestWindowSpans(t *testing.T) {
	assert.Equal(t, int64(86_400_000), Day.Span().Milliseconds())
	assert.Equal(t, int64(604_800_000), Week.Span().Milliseconds())
	assert.False(t, All.Bounded())
	assert.Equal(t, []Window{Day, Week, All}, Windows())
}

func TestWindowCountJSON(t *testing.T) {
	out, err := json.Marshal([]WindowCount{{Window: Day, Count: 5}, {Window: All, Count: 500}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"window":"DAY","count":5},{"window":"ALL","count":500}]`, string(out))

	var decoded []WindowCount
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, Day, decoded[0].Window)
	assert.Equal(t, All, decoded[1].Window)

	var w Window
	assert.Error(t, w.UnmarshalText([]byte("MONTH")))
}
