package logging_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf)
	gt.V(t, logger).NotNil()

	logger.Info("hive online")
	gt.S(t, buf.String()).Contains("hive online")
}

func TestLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectWarn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, false},
		{"DEBUG", true, true},
		{"bogus", false, true}, // falls back to info
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("debug message")
			logger.Warn("warn message")

			out := buf.String()
			if tc.expectDebug {
				gt.S(t, out).Contains("debug message")
			} else {
				gt.S(t, out).NotContains("debug message")
			}
			if tc.expectWarn {
				gt.S(t, out).Contains("warn message")
			} else {
				gt.S(t, out).NotContains("warn message")
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf)

	ctx := logging.With(context.Background(), logger)
	gt.V(t, logging.From(ctx)).Equal(logger)

	// Context without a logger yields the default
	gt.V(t, logging.From(context.Background())).Equal(logging.Default())
}
