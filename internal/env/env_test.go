package env

import (
	"testing"
	"time"
)

func TestGetters(t *testing.T) {
	t.Setenv("SEPA_TEST_INT", "12")
	t.Setenv("SEPA_TEST_BAD_INT", "twelve")
	t.Setenv("SEPA_TEST_BOOL", "true")
	t.Setenv("SEPA_TEST_DURATION", "90s")
	t.Setenv("SEPA_TEST_TIME", "2013-10-30T23:00:00Z")

	if got := GetInt("SEPA_TEST_INT", 0); got != 12 {
		t.Errorf("GetInt = %d", got)
	}
	if got := GetInt("SEPA_TEST_BAD_INT", 5); got != 5 {
		t.Errorf("GetInt with bad value = %d", got)
	}
	if !GetBool("SEPA_TEST_BOOL", false) {
		t.Errorf("GetBool = false")
	}
	if got := GetDuration("SEPA_TEST_DURATION", 0); got != 90*time.Second {
		t.Errorf("GetDuration = %v", got)
	}

	want := time.Date(2013, 10, 30, 23, 0, 0, 0, time.UTC)
	if got := GetTime("SEPA_TEST_TIME", time.Time{}); !got.Equal(want) {
		t.Errorf("GetTime = %v", got)
	}

	if got := GetString("SEPA_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetString = %q", got)
	}
}
