package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertExamples(t *testing.T) {
	cases := []struct {
		activity ActivityType
		quantity float64
		unit     InputUnit
		want     int64
	}{
		{ActivityRunning, 3, UnitKilometers, 4200},
		{ActivityCycling, 5, UnitKilometers, 3000},
		{ActivitySwimming, 25, UnitMinutes, 2500},
		{ActivityWalking, 8421, UnitSteps, 8421},
		{ActivityHiking, 2.5, UnitKilometers, 3750},
		{ActivityYoga, 30, UnitSteps, 1500},
		{ActivityWalking, 0.5, UnitSteps, 1},
		{ActivityWalking, 0.0005, UnitKilometers, 1},
		{ActivityWalking, 0.0003, UnitKilometers, 0},
	}

	for _, tc := range cases {
		got, err := Convert(tc.activity, tc.quantity, tc.unit)
		require.NoError(t, err, "%s %v %s", tc.activity, tc.quantity, tc.unit)
		require.Equal(t, tc.want, got, "%s %v %s", tc.activity, tc.quantity, tc.unit)
	}
}

func TestConvertIdentityForWalkingSteps(t *testing.T) {
	for _, q := range []float64{1, 2, 999, 12345, 1e6} {
		got, err := Convert(ActivityWalking, q, UnitSteps)
		require.NoError(t, err)
		require.Equal(t, int64(q), got)
	}
}

func TestConvertIsNonNegativeAcrossTable(t *testing.T) {
	for _, activity := range ActivityTypes {
		for _, unit := range InputUnits {
			if _, ok := Rate(activity, unit); !ok {
				continue
			}
			for _, q := range []float64{0.001, 1, 7.5, 600} {
				got, err := Convert(activity, q, unit)
				require.NoError(t, err)
				require.GreaterOrEqual(t, got, int64(0))
				again, _ := Convert(activity, q, unit)
				require.Equal(t, got, again)
			}
		}
	}
}

func TestConvertRejectsInvalidQuantity(t *testing.T) {
	for _, q := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Convert(ActivityRunning, q, UnitMinutes)
		require.True(t, IsCode(err, ErrCodeValidation), "quantity %v", q)
	}
}

func TestConvertUnsupportedPair(t *testing.T) {
	_, err := Convert(ActivitySwimming, 2, UnitKilometers)
	require.True(t, IsCode(err, ErrCodeUnsupportedUnit))

	got, err := Converter{Lenient: true}.Convert(ActivitySwimming, 2, UnitKilometers)
	require.NoError(t, err)
	require.Equal(t, int64(2), got)

	_, err = Convert(ActivityWalking, 30, UnitMinutes)
	require.True(t, IsCode(err, ErrCodeUnsupportedUnit))
}

func TestParseInputUnitAliases(t *testing.T) {
	unit, err := ParseInputUnit("Kilometers")
	require.NoError(t, err)
	require.Equal(t, UnitKilometers, unit)

	_, err = ParseInputUnit("miles")
	require.True(t, IsCode(err, ErrCodeValidation))

	_, err = ParseActivityType("skydiving")
	require.True(t, IsCode(err, ErrCodeValidation))
}
