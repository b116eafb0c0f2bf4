package model

// Measurement labels surfaced in DayHealthSnapshot.Measurements.
const (
	MeasurementWeight      = "Weight"
	MeasurementFatMass     = "Fat Mass"
	MeasurementMuscleMass  = "Muscle Mass"
	MeasurementHeartRate   = "Heart Rate"
	MeasurementSystolicBP  = "Systolic BP"
	MeasurementDiastolicBP = "Diastolic BP"
	MeasurementVO2Max      = "VO2 Max"
)

// DefaultWorkoutCategory labels workouts whose category code is not mapped.
const DefaultWorkoutCategory = "Träning"

// MinWorkoutMinutes is the shortest workout surfaced to callers.
const MinWorkoutMinutes = 3

// DayHealthSnapshot is the normalized health data for one user and day.
// Activity and Sleep are nil when Withings has nothing for the day.
type DayHealthSnapshot struct {
	Measurements map[string]float64 `json:"measurements"`
	Activity     *DayActivity       `json:"activity"`
	Sleep        *SleepSummary      `json:"sleep"`
	Workouts     []Workout          `json:"workouts"`
}

type DayActivity struct {
	Date     string  `json:"date,omitempty"`
	Steps    int     `json:"steps"`
	Distance float64 `json:"distance"`
	Calories float64 `json:"calories"`
	Moderate int     `json:"moderate"`
	Intense  int     `json:"intense"`
}

// SleepSummary is the first Withings sleep series entry of the day, passed
// through with its raw data fields.
type SleepSummary struct {
	Data      map[string]float64 `json:"data"`
	StartDate int64              `json:"startdate,omitempty"`
	EndDate   int64              `json:"enddate,omitempty"`
	Date      string             `json:"date,omitempty"`
}

// Workout is a normalized Withings workout.
type Workout struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	StartDate  int64   `json:"startdate"`
	EndDate    int64   `json:"enddate"`
	Duration   int     `json:"duration"`
	Calories   int     `json:"calories"`
	DistanceKM float64 `json:"distance"`
	Steps      int     `json:"steps"`
}
