package dryrun

import (
	"testing"

	"github.com/Speshl/gorrc_robot/internal/command"
	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T) *CommandDriver {
	t.Helper()
	driver := NewCommand(config.CommandConfig{
		ServoCfgs: []config.ServoConfig{{Name: "steer"}, {Name: "esc"}},
	}, hclog.NewNullLogger())
	require.NoError(t, driver.Init())
	return driver
}

func TestDryRunRecordsFractions(t *testing.T) {
	driver := newDriver(t)

	value, ok := driver.Fraction("steer")
	require.True(t, ok)
	assert.Equal(t, MidValue, value)

	err := driver.SetMany([]command.DriverCommand{
		{Name: "steer", Value: 100, Min: -100, Max: 100},
		{Name: "esc", Value: -50, Min: -100, Max: 100},
	})
	require.NoError(t, err)

	value, _ = driver.Fraction("steer")
	assert.Equal(t, 1.0, value)
	value, _ = driver.Fraction("esc")
	assert.Equal(t, 0.25, value)
	assert.Equal(t, 2, driver.Writes())
}

func TestDryRunUnknownChannel(t *testing.T) {
	driver := newDriver(t)
	err := driver.Set(command.DriverCommand{Name: "turret", Value: 1, Min: -1, Max: 1})
	assert.ErrorAs(t, err, &command.ErrUnknownChannel{})
}

func TestDryRunStopCenters(t *testing.T) {
	driver := newDriver(t)
	require.NoError(t, driver.Set(command.DriverCommand{Name: "esc", Value: 80, Min: -100, Max: 100}))

	require.NoError(t, driver.Stop())

	value, _ := driver.Fraction("esc")
	assert.Equal(t, MidValue, value)
	assert.True(t, driver.Stopped())
}
