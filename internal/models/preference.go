package models

import "fmt"

// Preferences holds the four display settings of a user. The field order
// matches the order in which they are stored and read back.
type Preferences struct {
	Temperature string `json:"temperature"`
	Pressure    string `json:"pressure"`
	Theme       string `json:"theme"`
	Timeframe   string `json:"timeframe"`
}

// Allowed values per preference field.
var (
	TemperatureUnits = []string{"Celsius", "Kelvin", "Fahrenheit"}
	PressureUnits    = []string{"Atmosphere", "Millibar", "Bar", "PSI", "Mercury"}
	Themes           = []string{"Light", "Dark"}
	Timeframes       = []string{"Week", "Month", "QuarterYear"}
)

// DefaultPreferences returns the preferences every new user starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		Temperature: "Celsius",
		Pressure:    "Bar",
		Theme:       "Light",
		Timeframe:   "Week",
	}
}

// Validate checks every field against its allowed values and reports the
// first one that does not match.
func (p Preferences) Validate() error {
	fields := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"temperature", p.Temperature, TemperatureUnits},
		{"pressure", p.Pressure, PressureUnits},
		{"theme", p.Theme, Themes},
		{"timeframe", p.Timeframe, Timeframes},
	}
	for _, f := range fields {
		if !contains(f.allowed, f.value) {
			return fmt.Errorf("invalid %s %q", f.name, f.value)
		}
	}
	return nil
}

// Values returns the preferences as an ordered tuple.
func (p Preferences) Values() []string {
	return []string{p.Temperature, p.Pressure, p.Theme, p.Timeframe}
}

// PreferencesFromValues builds Preferences from an ordered tuple. A short
// tuple leaves the trailing fields empty.
func PreferencesFromValues(values []string) Preferences {
	var p Preferences
	dst := []*string{&p.Temperature, &p.Pressure, &p.Theme, &p.Timeframe}
	for i, v := range values {
		if i >= len(dst) {
			break
		}
		*dst[i] = v
	}
	return p
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
