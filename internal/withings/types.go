package withings

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Measurement type codes requested from getmeas.
const (
	MeasTypeWeight      = 1
	MeasTypeFatMass     = 8
	MeasTypeMuscleMass  = 76
	MeasTypeHeartRate   = 11
	MeasTypeSystolicBP  = 10
	MeasTypeDiastolicBP = 9
	MeasTypeVO2Max      = 123
)

// RequestedMeasTypes is the meastype list sent with getmeas, in request order.
var RequestedMeasTypes = []int{
	MeasTypeWeight,
	MeasTypeFatMass,
	MeasTypeMuscleMass,
	MeasTypeHeartRate,
	MeasTypeSystolicBP,
	MeasTypeDiastolicBP,
	MeasTypeVO2Max,
}

// envelope is the wrapper around every Withings response.
type envelope struct {
	Status *int            `json:"status"`
	Body   json.RawMessage `json:"body"`
	Error  string          `json:"error"`
}

// FlexString accepts a JSON string or number. Withings sends ids both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Activity is one entry of getactivity's activities list.
type Activity struct {
	Date     string  `json:"date"`
	Steps    float64 `json:"steps"`
	Distance float64 `json:"distance"`
	Calories float64 `json:"calories"`
	Moderate float64 `json:"moderate"`
	Intense  float64 `json:"intense"`
}

type activityBody struct {
	Activities []Activity `json:"activities"`
}

type Measure struct {
	Value float64 `json:"value"`
	Unit  int     `json:"unit"`
	Type  int     `json:"type"`
}

type MeasureGroup struct {
	Date     int64     `json:"date"`
	Measures []Measure `json:"measures"`
}

type measureBody struct {
	MeasureGroups []MeasureGroup `json:"measuregrps"`
}

// SleepSeries is one getsleep series entry. Data values that are not numbers
// are kept raw and dropped during normalization.
type SleepSeries struct {
	Data      map[string]json.RawMessage `json:"data"`
	StartDate int64                      `json:"startdate"`
	EndDate   int64                      `json:"enddate"`
	Date      string                     `json:"date"`
}

type sleepBody struct {
	Series []SleepSeries `json:"series"`
}

type WorkoutData struct {
	Calories *float64 `json:"calories"`
	Distance *float64 `json:"distance"`
	Steps    *float64 `json:"steps"`
}

type WorkoutSeries struct {
	Data      *WorkoutData `json:"data"`
	ID        FlexString   `json:"id"`
	Category  int          `json:"category"`
	StartDate int64        `json:"startdate"`
	EndDate   int64        `json:"enddate"`
}

type workoutBody struct {
	Series []WorkoutSeries `json:"series"`
}

type tokenBody struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	UserID       FlexString `json:"userid"`
	Scope        string     `json:"scope"`
	ExpiresIn    *int64     `json:"expires_in"`
}

func joinInts(values []int) string {
	var buf []byte
	for i, v := range values {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(v), 10)
	}
	return string(buf)
}
