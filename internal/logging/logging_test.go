package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		name       string
		config     Config
		expectErr  bool
		expectLine bool
		expectText string
	}{
		{name: "info passes info", config: Config{Level: "info", Format: "logfmt"}, expectLine: true, expectText: "component=test"},
		{name: "error drops info", config: Config{Level: "error"}},
		{name: "terminal format", config: DefaultConfig(), expectLine: true, expectText: "booted"},
		{name: "bad level", config: Config{Level: "loud"}, expectErr: true},
		{name: "bad format", config: Config{Level: "info", Format: "xml"}, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(tc.config, &buf, "component", "test")
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info("booted", "tasks", 2)
			if !tc.expectLine {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tc.expectText)
		})
	}
}

func TestOr(t *testing.T) {
	logger := Or(nil)
	require.NotNil(t, logger)
	logger.Info("dropped")
}
