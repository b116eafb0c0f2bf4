package model

import "time"

// SettingKeyApp is the settings row holding the calendar UI preferences.
const SettingKeyApp = "app_settings"

// AppSettings drives which calendar modules and day fields the UI renders.
type AppSettings struct {
	ModulesEnabled ModulesEnabled `json:"modules_enabled"`
	DayFields      DayFields      `json:"day_fields"`
	Goals          Goals          `json:"goals"`
	LayoutOrder    []string       `json:"layout_order"`
}

type ModulesEnabled struct {
	Withings      bool `json:"withings"`
	Todos         bool `json:"todos"`
	Supplements   bool `json:"supplements"`
	WeeklySummary bool `json:"weekly_summary"`
}

type DayFields struct {
	Steps         bool `json:"steps"`
	CardioMinutes bool `json:"cardio_minutes"`
	CaloriesOut   bool `json:"calories_out"`
	MaxHR         bool `json:"max_hr"`
	Sleep         bool `json:"sleep"`
}

type Goals struct {
	Steps         int `json:"steps"`
	CardioMinutes int `json:"cardio_minutes"`
	CaloriesOut   int `json:"calories_out"`
}

// DefaultAppSettings is served until an admin stores settings.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		ModulesEnabled: ModulesEnabled{
			Withings:      true,
			Todos:         true,
			Supplements:   true,
			WeeklySummary: true,
		},
		DayFields: DayFields{
			Steps:         true,
			CardioMinutes: true,
			CaloriesOut:   true,
		},
		Goals: Goals{
			Steps:         10000,
			CardioMinutes: 30,
			CaloriesOut:   2500,
		},
		LayoutOrder: []string{"metrics", "workouts", "todos", "supplements"},
	}
}

// Setting is one key/value row of the settings table. Value is JSON, sealed
// when an encryption key is configured.
type Setting struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Key       string    `json:"key"`
	Value     string    `json:"-"`
	ID        int64     `json:"id"`
}
