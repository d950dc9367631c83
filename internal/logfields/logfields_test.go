package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"TransitionID", KeyTransitionID, "t-1", TransitionID("t-1")},
		{"Source", KeySource, "spotify", Source("spotify")},
		{"Target", KeyTarget, "radio", Target("radio")},
		{"Unit", KeyUnit, "bluealsa", Unit("bluealsa")},
		{"Device", KeyDevice, "AA:BB", Device("AA:BB")},
		{"Subject", KeySubject, "audiohub.seek", Subject("audiohub.seek")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.attr.Key != tc.attrKey {
				t.Fatalf("key = %q, want %q", tc.attr.Key, tc.attrKey)
			}
			if got := tc.attr.Value.String(); got != tc.attrVal {
				t.Fatalf("value = %q, want %q", got, tc.attrVal)
			}
		})
	}
}

func TestErrorHelper(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Fatalf("nil error value = %q, want empty", got)
	}
	if got := Error(errors.New("boom")).Value.String(); got != "boom" {
		t.Fatalf("error value = %q", got)
	}
}
