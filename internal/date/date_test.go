package date

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse("2010-05-07")
	require.NoError(t, err)
	assert.Equal(t, New(2010, time.May, 7), d)
	assert.Equal(t, "2010-05-07", d.String())

	_, err = Parse("07/05/2010")
	require.Error(t, err)
}

func TestNew_Normalizes(t *testing.T) {
	assert.Equal(t, MustParse("2021-02-01"), New(2021, time.January, 32))
	assert.Equal(t, MustParse("2021-03-01"), MustParse("2021-02-28").AddDays(1))
}

func TestFromTime_UsesLocation(t *testing.T) {
	// 2021-11-28 23:30 UTC is already the 29th in Tokyo.
	ts := time.Date(2021, time.November, 28, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)

	assert.Equal(t, New(2021, time.November, 28), FromTime(ts, time.UTC))
	assert.Equal(t, New(2021, time.November, 29), FromTime(ts, tokyo))
}

func TestMidnight(t *testing.T) {
	d := New(2021, time.November, 28)
	assert.Equal(t, int64(1638057600), d.Midnight(time.UTC).Unix())
}

func TestOrdering(t *testing.T) {
	a, b := MustParse("1999-01-04"), MustParse("1999-01-05")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.After(a))
	assert.True(t, a.Equal(MustParse("1999-01-04")))
}

func TestJSON(t *testing.T) {
	var v struct {
		On Date `json:"on"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"on":"2021-01-01"}`), &v))
	assert.Equal(t, New(2021, time.January, 1), v.On)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":"2021-01-01"}`, string(b))

	assert.True(t, Date{}.IsZero())
	assert.Equal(t, "", Date{}.String())
}
