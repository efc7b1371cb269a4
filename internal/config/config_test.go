package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/walking_synth/internal/signals"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walking_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsOnEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# nothing here\n\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.UsesMQTT())
	assert.False(t, cfg.UsesNATS())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
MQTT_BROKER=tcp://pi.local:1883
TOPIC_TEMPO = walk/tempo
TRANSPORT=both
NATS_URL=nats://pi.local:4222
IMU_ACCEL_RANGE=2
IMU_SAMPLE_INTERVAL=10
SIGNAL_MODE=gravity_diff
SIGNAL_KINDS=magnitude
SIGNAL_SCALE=1
GRAVITY_ALPHA=0.95
THRESHOLD_INIT=2.5
THRESHOLD_MIN=0.5
THRESHOLD_MAX=6
STEP_REFRACTORY_MS=300
TEMPO_WINDOW=3
STEP_TIMEOUT_MS=2500
RESUME_WINDOW_MS=10000
WEB_SERVER_PORT=9090
`))
	require.NoError(t, err)

	assert.Equal(t, "tcp://pi.local:1883", cfg.MQTTBroker)
	assert.Equal(t, "walk/tempo", cfg.TopicTempo)
	assert.True(t, cfg.UsesMQTT())
	assert.True(t, cfg.UsesNATS())
	assert.Equal(t, byte(2), cfg.IMUAccelRange)
	assert.Equal(t, 10, cfg.IMUSampleInterval)
	assert.Equal(t, signals.ModeGravityDiff, cfg.SignalMode)
	assert.Equal(t, signals.KindMagnitude, cfg.SignalKinds)
	assert.Equal(t, 1.0, cfg.SignalScale)
	assert.Equal(t, 0.95, cfg.GravityAlpha)
	assert.Equal(t, 2.5, cfg.ThresholdInit)
	assert.Equal(t, 0.5, cfg.ThresholdMin)
	assert.Equal(t, 6.0, cfg.ThresholdMax)
	assert.Equal(t, 300, cfg.StepRefractoryMS)
	assert.Equal(t, 3, cfg.TempoWindow)
	assert.Equal(t, 2500, cfg.StepTimeoutMS)
	assert.Equal(t, 10000, cfg.ResumeWindowMS)
	assert.Equal(t, 9090, cfg.WebServerPort)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing equals", "MQTT_BROKER\n"},
		{"unknown key", "FOO=bar\n"},
		{"accel range", "IMU_ACCEL_RANGE=4\n"},
		{"not a number", "TEMPO_WINDOW=four\n"},
		{"window too large", "TEMPO_WINDOW=17\n"},
		{"bad transport", "TRANSPORT=carrier-pigeon\n"},
		{"bad mode", "SIGNAL_MODE=jerk\n"},
		{"bad alpha", "GRAVITY_ALPHA=1\n"},
		{"inverted threshold", "THRESHOLD_MIN=130\nTHRESHOLD_MAX=90\n"},
		{"empty broker", "MQTT_BROKER=\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "walking_config.txt"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
