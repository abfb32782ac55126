package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"empty", "", 5 * time.Second},
		{"go duration", "90s", 90 * time.Second},
		{"seconds", "30", 30 * time.Second},
		{"garbage", "soon", 5 * time.Second},
		{"negative", "-3s", 5 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENVUTIL_TEST_DURATION", tc.raw)
			if got := Duration("ENVUTIL_TEST_DURATION", 5*time.Second); got != tc.want {
				t.Fatalf("Duration(%q): want=%s got=%s", tc.raw, tc.want, got)
			}
		})
	}
}

func TestBoolAndInt(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	if Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool: want=false got=true")
	}
	t.Setenv("ENVUTIL_TEST_INT", "7")
	if got := Int("ENVUTIL_TEST_INT", 1); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
}
