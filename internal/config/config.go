package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/walking_synth/internal/signals"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDStepd    string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicSamples string // imu.Sample JSON, producer -> stepd
	TopicTempo   string // tempo.State JSON, stepd -> consumers
	TopicSignal  string // signals.Value JSON, stepd -> web
	TopicControl string // control commands, consumers -> stepd

	// Snapshot transport: "mqtt", "nats" or "both"
	Transport        string
	NATSURL          string
	NATSSubjectTempo string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// Timing
	IMUSampleInterval int // milliseconds

	// Mock walker
	MockCadenceSPM float64

	// Signal conditioning
	SignalMode   signals.Mode
	SignalKinds  signals.Kinds
	SignalScale  float64
	GravityAlpha float64

	// Threshold
	ThresholdInit float64
	ThresholdMin  float64
	ThresholdMax  float64
	ThresholdFile string

	// Step / tempo
	StepRefractoryMS int
	TempoWindow      int
	StepTimeoutMS    int
	ResumeWindowMS   int

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every tunable at its stock value.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "walking-imu-producer",
		MQTTClientIDStepd:    "walking-stepd",
		MQTTClientIDConsole:  "walking-console",
		MQTTClientIDWeb:      "walking-web",
		MQTTClientIDDisplay:  "walking-display",

		TopicSamples: "walking/imu/samples",
		TopicTempo:   "walking/tempo",
		TopicSignal:  "walking/signal",
		TopicControl: "walking/control",

		Transport:        "mqtt",
		NATSURL:          "nats://127.0.0.1:4222",
		NATSSubjectTempo: "walking.tempo",

		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "8",
		IMUAccelRange: 1,

		IMUSampleInterval: 20,
		MockCadenceSPM:    110,

		SignalMode:   signals.ModeMagnitude,
		SignalKinds:  signals.KindAll,
		SignalScale:  signals.DefaultScale,
		GravityAlpha: signals.DefaultAlpha,

		ThresholdInit: 110,
		ThresholdMin:  90,
		ThresholdMax:  130,
		ThresholdFile: "walking_threshold.json",

		StepRefractoryMS: 250,
		TempoWindow:      4,
		StepTimeoutMS:    3000,
		ResumeWindowMS:   0,

		WebServerPort: 8080,

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file on top of Default().
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_STEPD":
		c.MQTTClientIDStepd = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_TEMPO":
		c.TopicTempo = value
	case "TOPIC_SIGNAL":
		c.TopicSignal = value
	case "TOPIC_CONTROL":
		c.TopicControl = value

	// Transport
	case "TRANSPORT":
		switch value {
		case "mqtt", "nats", "both":
			c.Transport = value
		default:
			return fmt.Errorf("TRANSPORT must be mqtt, nats or both, got %q", value)
		}
	case "NATS_URL":
		c.NATSURL = value
	case "NATS_SUBJECT_TEMPO":
		c.NATSSubjectTempo = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		var v int
		if v, err = intInRange(key, value, 0, 3); err == nil {
			c.IMUAccelRange = byte(v)
		}

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = intInRange(key, value, 1, 1000)
	case "MOCK_CADENCE_SPM":
		c.MockCadenceSPM, err = floatInRange(key, value, 1, 300)

	// Signal conditioning
	case "SIGNAL_MODE":
		c.SignalMode, err = signals.ParseMode(value)
	case "SIGNAL_KINDS":
		c.SignalKinds, err = signals.ParseKinds(value)
	case "SIGNAL_SCALE":
		c.SignalScale, err = floatInRange(key, value, 1e-6, 1e6)
	case "GRAVITY_ALPHA":
		c.GravityAlpha, err = floatInRange(key, value, 0.01, 0.9999)

	// Threshold
	case "THRESHOLD_INIT":
		c.ThresholdInit, err = floatInRange(key, value, -1e6, 1e6)
	case "THRESHOLD_MIN":
		c.ThresholdMin, err = floatInRange(key, value, -1e6, 1e6)
	case "THRESHOLD_MAX":
		c.ThresholdMax, err = floatInRange(key, value, -1e6, 1e6)
	case "THRESHOLD_FILE":
		c.ThresholdFile = value

	// Step / tempo
	case "STEP_REFRACTORY_MS":
		c.StepRefractoryMS, err = intInRange(key, value, 1, 5000)
	case "TEMPO_WINDOW":
		c.TempoWindow, err = intInRange(key, value, 1, 16)
	case "STEP_TIMEOUT_MS":
		c.StepTimeoutMS, err = intInRange(key, value, 100, 60000)
	case "RESUME_WINDOW_MS":
		c.ResumeWindowMS, err = intInRange(key, value, 0, 3_600_000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intInRange(key, value, 1, 65535)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = intInRange(key, value, 10, 60000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

func intInRange(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

func floatInRange(key, value string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %g-%g, got %g", key, min, max, v)
	}
	return v, nil
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicSamples == "" || c.TopicTempo == "" || c.TopicControl == "" {
		return fmt.Errorf("TOPIC_SAMPLES, TOPIC_TEMPO and TOPIC_CONTROL are required")
	}
	if c.ThresholdMin >= c.ThresholdMax {
		return fmt.Errorf("THRESHOLD_MIN (%g) must be below THRESHOLD_MAX (%g)", c.ThresholdMin, c.ThresholdMax)
	}
	if c.Transport != "mqtt" && c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required when TRANSPORT=%s", c.Transport)
	}
	if c.ThresholdFile == "" {
		return fmt.Errorf("THRESHOLD_FILE is required")
	}
	return nil
}

// UsesMQTT reports whether tempo snapshots go out over MQTT.
func (c *Config) UsesMQTT() bool { return c.Transport == "mqtt" || c.Transport == "both" }

// UsesNATS reports whether tempo snapshots go out over NATS.
func (c *Config) UsesNATS() bool { return c.Transport == "nats" || c.Transport == "both" }

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
