package observability

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {

	defer SetupLogger("info", "text")

	tests := []struct {
		level, format string
		wantLevel     logrus.Level
		json          bool
	}{
		{"debug", "json", logrus.DebugLevel, true},
		{"warn", "text", logrus.WarnLevel, false},
		{"bogus", "", logrus.InfoLevel, false},
		{"", "JSON", logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		SetupLogger(tt.level, tt.format)

		assert.Equal(t, tt.wantLevel, logrus.GetLevel(), tt.level)

		_, isJSON := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
		assert.Equal(t, tt.json, isJSON, tt.format)
	}
}
