package forecast

import (
	"context"
	"errors"
	"math"
	"time"
)

// Conditions is the station state a Zambretti forecast is derived from.
// Pressure and Trend are sea-level hPa; Trend is the change over the last
// three hours. WindDir is nil when the wind has been calm.
type Conditions struct {
	Pressure float64
	Trend    float64
	WindDir  *float64
}

// ConditionsFunc supplies current conditions. ok is false until enough
// history has accumulated to compute a pressure trend.
type ConditionsFunc func(now time.Time) (Conditions, bool)

// ErrNoConditions is returned while the station has not yet reported
// enough pressure history for a forecast.
var ErrNoConditions = errors.New("insufficient conditions for forecast")

// Zambretti computes the classic Negretti and Zambra forecast locally from
// barometric pressure, its three hour trend and the wind direction.
type Zambretti struct {
	conditions ConditionsFunc
	north      bool
	baroTop    float64
	baroBottom float64
}

// NewZambretti builds a Zambretti provider. north selects the northern
// hemisphere wind adjustments.
func NewZambretti(conditions ConditionsFunc, north bool) *Zambretti {
	return &Zambretti{
		conditions: conditions,
		north:      north,
		baroTop:    1050.0,
		baroBottom: 950.0,
	}
}

var zambrettiText = [26]string{
	"Settled fine",
	"Fine weather",
	"Becoming fine",
	"Fine, becoming less settled",
	"Fine, possible showers",
	"Fairly fine, improving",
	"Fairly fine, possible showers early",
	"Fairly fine, showery later",
	"Showery early, improving",
	"Changeable, mending",
	"Fairly fine, showers likely",
	"Rather unsettled clearing later",
	"Unsettled, probably improving",
	"Showery, bright intervals",
	"Showery, becoming less settled",
	"Changeable, some rain",
	"Unsettled, short fine intervals",
	"Unsettled, rain later",
	"Unsettled, some rain",
	"Mostly very unsettled",
	"Occasional rain, worsening",
	"Rain at times, very unsettled",
	"Rain at frequent intervals",
	"Rain, very unsettled",
	"Stormy, may improve",
	"Stormy, much rain",
}

var (
	riseOptions   = [22]int{25, 25, 25, 24, 24, 19, 16, 12, 11, 9, 8, 6, 5, 2, 1, 1, 0, 0, 0, 0, 0, 0}
	steadyOptions = [22]int{25, 25, 25, 25, 25, 25, 23, 23, 22, 18, 15, 13, 10, 4, 1, 1, 0, 0, 0, 0, 0, 0}
	fallOptions   = [22]int{25, 25, 25, 25, 25, 25, 25, 25, 23, 23, 21, 20, 17, 14, 7, 3, 1, 1, 1, 0, 0, 0}
)

// Wind direction adjustments per 16-sector compass rose, northern
// hemisphere, expressed as a percentage of the barometer range.
var windAdjustNorth = [16]float64{6, 5, 5, 2, -0.5, -2, -5, -8.5, -12, -10, -6, -4.5, -3, -0.5, 1.5, 3}

// A three hour change beyond this many hPa counts as rising or falling.
const trendThreshold = 1.0

// Text implements Provider.
func (z *Zambretti) Text(_ context.Context, now time.Time) (string, error) {
	cond, ok := z.conditions(now)
	if !ok {
		return "", ErrNoConditions
	}
	return z.forecast(cond, now.Month()), nil
}

func (z *Zambretti) forecast(cond Conditions, month time.Month) string {
	span := z.baroTop - z.baroBottom
	pressure := cond.Pressure

	if cond.WindDir != nil {
		sector := int(math.Mod(math.Round(*cond.WindDir/22.5), 16))
		adjust := windAdjustNorth[sector]
		if !z.north {
			adjust = windAdjustNorth[(sector+8)%16]
		}
		pressure += adjust * span / 100.0
	}

	rising := cond.Trend > trendThreshold
	falling := cond.Trend < -trendThreshold

	summer := month >= time.April && month <= time.September
	if !z.north {
		summer = month <= time.March || month >= time.October
	}
	if summer {
		if rising {
			pressure += 7.0 * span / 100.0
		} else if falling {
			pressure -= 7.0 * span / 100.0
		}
	}

	if pressure >= z.baroTop {
		pressure = z.baroTop - 1
	}
	option := int(math.Floor((pressure - z.baroBottom) / (span / 22.0)))
	if option < 0 {
		option = 0
	}
	if option > 21 {
		option = 21
	}

	switch {
	case rising:
		return zambrettiText[riseOptions[option]]
	case falling:
		return zambrettiText[fallOptions[option]]
	default:
		return zambrettiText[steadyOptions[option]]
	}
}
