package catalog_test

import (
	"regexp"
	"strconv"
	"testing"
	"time"

	"codeberg.org/mutker/wvasim/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var textualPattern = regexp.MustCompile(`^string([1-9][0-9]{0,2}|1000)$`)

func TestDescribe(t *testing.T) {
	c := catalog.Default()

	tests := []struct {
		path  string
		found bool
		kind  catalog.Kind
		group catalog.Group
	}{
		{"vehicle/data/EngineRPM", true, catalog.Numeric, catalog.DataItem},
		{"/vehicle/data/Ignition_State/", true, catalog.Textual, catalog.DataItem},
		{"vehicle/ecus/can0ecu0/VIN", true, catalog.Textual, catalog.ECUProperty},
		{"vehicle/ecus/can1ecu0/Price", true, catalog.Numeric, catalog.ECUProperty},
		{"vehicle/data/Temperature", false, 0, 0},
		{"vehicle/ecus/can9ecu9/VIN", false, 0, 0},
		{"vehicle/ecus/can0ecu0/Mileage", false, 0, 0},
		{"vehicle/data", false, 0, 0},
		{"hw/leds/0", false, 0, 0},
		{"", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d, ok := c.Describe(tt.path)
			assert.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.kind, d.Kind)
				assert.Equal(t, tt.group, d.Group)
			}
		})
	}
}

func TestListings(t *testing.T) {
	c := catalog.Default()

	assert.ElementsMatch(t, []string{
		"vehicle/data/EngineRPM",
		"vehicle/data/Ignition_State",
		"vehicle/data/VehicleSpeed",
		"vehicle/data/Elapsed_Time",
	}, c.DataItemPaths())

	assert.Equal(t, []string{
		"vehicle/ecus/can0ecu0",
		"vehicle/ecus/can0ecu1",
		"vehicle/ecus/can1ecu0",
	}, c.ECUPaths())

	assert.ElementsMatch(t, []string{
		"vehicle/ecus/can0ecu0/VIN",
		"vehicle/ecus/can0ecu0/Price",
		"vehicle/ecus/can0ecu0/Previous_Owner",
	}, c.ECUPropertyPaths("can0ecu0"))

	assert.Nil(t, c.ECUPropertyPaths("nope"))
	assert.Len(t, c.Descriptors(), 4+3*3)
}

func TestListingsAreCopies(t *testing.T) {
	c := catalog.Default()
	ecus := c.ECUs()
	ecus[0] = "mutated"
	assert.True(t, c.HasECU("can0ecu0"))
}

func TestSynthesizeRanges(t *testing.T) {
	c := catalog.Default()
	s := catalog.NewSeededSynthesizer(42, nil)

	for _, d := range c.Descriptors() {
		for i := 0; i < 200; i++ {
			v, _ := s.Synthesize(d)
			require.Equal(t, d.Kind, v.Kind)
			switch d.Kind {
			case catalog.Numeric:
				assert.GreaterOrEqual(t, v.Numeric, 1, d.Path)
				assert.LessOrEqual(t, v.Numeric, 1000, d.Path)
				assert.Equal(t, v.Numeric, v.Any())
			case catalog.Textual:
				assert.Regexp(t, textualPattern, v.Text, d.Path)
				assert.Equal(t, v.Text, v.Any())
			}
		}
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	d, ok := catalog.Default().DataItem("EngineRPM")
	require.True(t, ok)

	a := catalog.NewSeededSynthesizer(7, nil)
	b := catalog.NewSeededSynthesizer(7, nil)
	for i := 0; i < 20; i++ {
		va, _ := a.Synthesize(d)
		vb, _ := b.Synthesize(d)
		assert.Equal(t, va, vb)
	}
}

func TestSynthesizeTimestamp(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 14, 30, 5, 123, time.FixedZone("CET", 3600))
	s := catalog.NewSeededSynthesizer(1, func() time.Time { return fixed })

	d, _ := catalog.Default().DataItem("VehicleSpeed")
	v, ts := s.Synthesize(d)

	assert.Equal(t, fixed, ts)
	assert.Equal(t, "2024-03-09T13:30:05Z", catalog.FormatTimestamp(ts))
	_, err := strconv.Atoi(v.String())
	assert.NoError(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "numeric", catalog.Numeric.String())
	assert.Equal(t, "textual", catalog.Textual.String())
	assert.Equal(t, "unknown", catalog.Kind(0).String())
}
