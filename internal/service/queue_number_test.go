package service

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNumberFormat(t *testing.T) {
	gen := newQueueNumberGenerator(1)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^CDM-20250602-\d{4}$`)

	for i := 0; i < 100; i++ {
		qn := gen.Next(now)
		require.Regexp(t, pattern, qn)

		suffix := qn[strings.LastIndex(qn, "-")+1:]
		n, err := strconv.Atoi(suffix)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
}

func TestQueueNumberTracksDate(t *testing.T) {
	gen := newQueueNumberGenerator(1)

	qn := gen.Next(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(qn, "CDM-20251231-"))

	qn = gen.Next(time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(qn, "CDM-20260101-"))
}
