package domain

import (
	"math"
	"strings"
)

// ActivityType enumerates the exercise kinds users can log.
type ActivityType string

const (
	ActivityWalking       ActivityType = "walking"
	ActivityRunning       ActivityType = "running"
	ActivityCycling       ActivityType = "cycling"
	ActivitySwimming      ActivityType = "swimming"
	ActivityYoga          ActivityType = "yoga"
	ActivityHiking        ActivityType = "hiking"
	ActivityDancing       ActivityType = "dancing"
	ActivityWeightlifting ActivityType = "weightlifting"
)

// ActivityTypes lists every supported activity type in display order.
var ActivityTypes = []ActivityType{
	ActivityWalking,
	ActivityRunning,
	ActivityCycling,
	ActivitySwimming,
	ActivityYoga,
	ActivityHiking,
	ActivityDancing,
	ActivityWeightlifting,
}

// InputUnit is the unit a quantity was entered in.
type InputUnit string

const (
	UnitSteps      InputUnit = "steps"
	UnitKilometers InputUnit = "km"
	UnitMinutes    InputUnit = "minutes"
)

// InputUnits lists every supported input unit.
var InputUnits = []InputUnit{UnitSteps, UnitKilometers, UnitMinutes}

// ParseActivityType validates a raw activity type.
func ParseActivityType(raw string) (ActivityType, error) {
	candidate := ActivityType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range ActivityTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", Validationf("unknown activity type %q", raw)
}

// ParseInputUnit validates a raw unit. "kilometers" is accepted as an alias of "km".
func ParseInputUnit(raw string) (InputUnit, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "steps":
		return UnitSteps, nil
	case "km", "kilometers":
		return UnitKilometers, nil
	case "minutes":
		return UnitMinutes, nil
	}
	return "", Validationf("unknown unit %q", raw)
}

type conversionKey struct {
	activity ActivityType
	unit     InputUnit
}

// conversionRates holds steps per unit for every valid (type, unit) pair.
// For non-walking activities a "steps" entry is credited at the per-minute cadence.
var conversionRates = map[conversionKey]float64{
	{ActivityWalking, UnitSteps}:      1,
	{ActivityWalking, UnitKilometers}: 1300,

	{ActivityRunning, UnitSteps}:      120,
	{ActivityRunning, UnitKilometers}: 1400,
	{ActivityRunning, UnitMinutes}:    120,

	{ActivityCycling, UnitSteps}:      80,
	{ActivityCycling, UnitKilometers}: 600,
	{ActivityCycling, UnitMinutes}:    80,

	{ActivitySwimming, UnitSteps}:   100,
	{ActivitySwimming, UnitMinutes}: 100,

	{ActivityYoga, UnitSteps}:   50,
	{ActivityYoga, UnitMinutes}: 50,

	{ActivityHiking, UnitSteps}:      100,
	{ActivityHiking, UnitKilometers}: 1500,
	{ActivityHiking, UnitMinutes}:    100,

	{ActivityDancing, UnitSteps}:   120,
	{ActivityDancing, UnitMinutes}: 120,

	{ActivityWeightlifting, UnitSteps}:   80,
	{ActivityWeightlifting, UnitMinutes}: 80,
}

// Rate returns the steps-per-unit rate for a pair and whether the pair is supported.
func Rate(activity ActivityType, unit InputUnit) (float64, bool) {
	rate, ok := conversionRates[conversionKey{activity, unit}]
	return rate, ok
}

// Converter turns activity quantities into step-equivalents.
//
// A strict converter rejects pairs missing from the rate table. A lenient one
// credits them one step per unit, which is how the first mobile release behaved.
type Converter struct {
	Lenient bool
}

// Convert returns the step-equivalent of quantity, rounded half up.
func (c Converter) Convert(activity ActivityType, quantity float64, unit InputUnit) (int64, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return 0, Validationf("quantity must be a positive number")
	}
	rate, ok := Rate(activity, unit)
	if !ok {
		if !c.Lenient {
			return 0, NewError(ErrCodeUnsupportedUnit, "unit "+string(unit)+" is not supported for "+string(activity))
		}
		rate = 1
	}
	product := quantity * rate
	if product >= math.MaxInt64 {
		return 0, Validationf("quantity is too large")
	}
	return roundHalfUp(product), nil
}

// Convert applies the strict conversion table.
func Convert(activity ActivityType, quantity float64, unit InputUnit) (int64, error) {
	return Converter{}.Convert(activity, quantity, unit)
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
