package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_RejectsWrongFieldCount(t *testing.T) {
	_, err := Parse("* * * *")
	require.Error(t, err)
}

func TestParse_RejectsOutOfRange(t *testing.T) {
	_, err := Parse("60 * * * *")
	require.Error(t, err)
}

func TestNextAfter_EveryMinute(t *testing.T) {
	expr, err := Parse("* * * * *")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 10, 30, 15, 0, time.UTC)
	next, err := expr.NextAfter(from, time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 10, 31, 0, 0, time.UTC), next)
}

func TestNextAfter_DailyAtMidnight(t *testing.T) {
	expr, err := Parse("0 0 * * *")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	next, err := expr.NextAfter(from, time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), next)
}

func TestNextAfter_StepExpression(t *testing.T) {
	expr, err := Parse("*/15 * * * *")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 10, 16, 0, 0, time.UTC)
	next, err := expr.NextAfter(from, time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), next)
}

func TestNextAfter_DomDowUnionSemantics(t *testing.T) {
	// Fires on the 1st of the month OR any Friday — union, not intersection.
	expr, err := Parse("0 9 1 * 5")
	require.NoError(t, err)

	// 2026-03-02 is a Monday, not the 1st and not a Friday; next hit should
	// be 2026-03-06 (Friday) at 09:00, before the 1st of April.
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	next, err := expr.NextAfter(from, time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC), next)
	require.Equal(t, time.Friday, next.Weekday())
}

func TestNextAfter_MonotonicAcrossRepeatedCalls(t *testing.T) {
	expr, err := Parse("0 */6 * * *")
	require.NoError(t, err)

	cursor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		next, err := expr.NextAfter(cursor, time.UTC)
		require.NoError(t, err)
		require.True(t, next.After(cursor))
		cursor = next
	}
}

func TestNextAfter_SundayAcceptsBothZeroAndSeven(t *testing.T) {
	exprZero, err := Parse("0 0 * * 0")
	require.NoError(t, err)
	exprSeven, err := Parse("0 0 * * 7")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) // a Sunday
	nextZero, err := exprZero.NextAfter(from, time.UTC)
	require.NoError(t, err)
	nextSeven, err := exprSeven.NextAfter(from, time.UTC)
	require.NoError(t, err)
	require.Equal(t, nextZero, nextSeven)
}
