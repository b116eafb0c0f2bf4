package mapper

import (
	"encoding/json"
	"fmt"
	"math"

	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/withings"
)

var measurementLabels = map[int]string{
	withings.MeasTypeWeight:      model.MeasurementWeight,
	withings.MeasTypeFatMass:     model.MeasurementFatMass,
	withings.MeasTypeMuscleMass:  model.MeasurementMuscleMass,
	withings.MeasTypeHeartRate:   model.MeasurementHeartRate,
	withings.MeasTypeSystolicBP:  model.MeasurementSystolicBP,
	withings.MeasTypeDiastolicBP: model.MeasurementDiastolicBP,
	withings.MeasTypeVO2Max:      model.MeasurementVO2Max,
}

var workoutCategories = map[int]string{
	1:   "Promenad",
	2:   "Löpning",
	3:   "Simning",
	8:   "Tennis",
	16:  "Styrketräning",
	17:  "Cykling",
	18:  "Elliptical",
	19:  "Rodd",
	20:  "Skidor",
	21:  "Alpint",
	22:  "Snowboard",
	23:  "Skridskor",
	24:  "Multisport",
	25:  "Yoga",
	26:  "Pilates",
	27:  "Dans",
	36:  "Annan träning",
	187: "Muskelträning",
	188: "Konditionsträning",
}

// DayPayloads is the raw Withings data fetched for one day.
type DayPayloads struct {
	Measurements map[int]float64
	Activity     *withings.Activity
	Sleep        *withings.SleepSeries
	Workouts     []withings.WorkoutSeries
}

// WithingsMapper turns raw Withings payloads into a DayHealthSnapshot.
// It is pure and never fails.
type WithingsMapper struct{}

func NewWithingsMapper() *WithingsMapper {
	return &WithingsMapper{}
}

func (m *WithingsMapper) Day(in DayPayloads) *model.DayHealthSnapshot {
	return &model.DayHealthSnapshot{
		Measurements: m.Measurements(in.Measurements),
		Activity:     m.Activity(in.Activity),
		Sleep:        m.Sleep(in.Sleep),
		Workouts:     m.Workouts(in.Workouts),
	}
}

func (m *WithingsMapper) Measurements(values map[int]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for code, value := range values {
		out[MeasurementLabel(code)] = value
	}
	return out
}

func (m *WithingsMapper) Activity(activity *withings.Activity) *model.DayActivity {
	if activity == nil {
		return nil
	}
	return &model.DayActivity{
		Date:     activity.Date,
		Steps:    roundHalfUp(activity.Steps),
		Distance: activity.Distance,
		Calories: activity.Calories,
		Moderate: roundHalfUp(activity.Moderate),
		Intense:  roundHalfUp(activity.Intense),
	}
}

// Sleep keeps the numeric data fields of the series entry and drops the rest.
func (m *WithingsMapper) Sleep(series *withings.SleepSeries) *model.SleepSummary {
	if series == nil {
		return nil
	}
	data := make(map[string]float64, len(series.Data))
	for key, raw := range series.Data {
		var value float64
		if err := json.Unmarshal(raw, &value); err == nil {
			data[key] = value
		}
	}
	return &model.SleepSummary{
		Data:      data,
		StartDate: series.StartDate,
		EndDate:   series.EndDate,
		Date:      series.Date,
	}
}

// Workouts normalizes the series and drops workouts shorter than
// MinWorkoutMinutes. Input order is preserved.
func (m *WithingsMapper) Workouts(series []withings.WorkoutSeries) []model.Workout {
	out := make([]model.Workout, 0, len(series))
	for _, raw := range series {
		workout := m.Workout(raw)
		if workout.Duration < model.MinWorkoutMinutes {
			continue
		}
		out = append(out, workout)
	}
	return out
}

func (m *WithingsMapper) Workout(raw withings.WorkoutSeries) model.Workout {
	workout := model.Workout{
		ID:        raw.ID.String(),
		Category:  WorkoutCategory(raw.Category),
		StartDate: raw.StartDate,
		EndDate:   raw.EndDate,
		Duration:  roundHalfUp(float64(raw.EndDate-raw.StartDate) / 60),
	}
	if raw.Data != nil {
		if raw.Data.Calories != nil {
			workout.Calories = roundHalfUp(*raw.Data.Calories)
		}
		if raw.Data.Distance != nil {
			workout.DistanceKM = math.Floor(*raw.Data.Distance/1000*100+0.5) / 100
		}
		if raw.Data.Steps != nil {
			workout.Steps = roundHalfUp(*raw.Data.Steps)
		}
	}
	return workout
}

func MeasurementLabel(code int) string {
	if label, ok := measurementLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown (%d)", code)
}

func WorkoutCategory(code int) string {
	if label, ok := workoutCategories[code]; ok {
		return label
	}
	return model.DefaultWorkoutCategory
}

// roundHalfUp rounds .5 towards positive infinity, so 2.5 becomes 3 and
// -2.5 becomes -2.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
