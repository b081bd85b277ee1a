package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carhack/internal/canusb"
)

const tomlConfig = `
vehicle = "nissan_370z"
format = "cbor"

[log]
level = "debug"
format = "json"

[canusb]
port = "${CARHACK_TEST_PORT}"
bitrate = 250000

[canusb.serial]
baud_rate = 9600
parity = "E"
`

const yamlConfig = `
vehicle: nissan_370z
format: cbor
log:
  level: debug
  format: json
canusb:
  port: ${CARHACK_TEST_PORT}
  bitrate: 250000
  serial:
    baud_rate: 9600
    parity: E
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTOMLAndYAMLAgree(t *testing.T) {
	t.Setenv("CARHACK_TEST_PORT", "/dev/ttyACM3")

	fromTOML, err := Load(writeFile(t, "carhack.toml", tomlConfig))
	require.NoError(t, err)
	fromYAML, err := Load(writeFile(t, "carhack.yaml", yamlConfig))
	require.NoError(t, err)

	if diff := cmp.Diff(fromTOML, fromYAML); diff != "" {
		t.Errorf("TOML and YAML configs differ (-toml +yaml):\n%s", diff)
	}

	want := Config{
		Vehicle: "nissan_370z",
		Format:  "cbor",
		Log:     Log{Level: "debug", Format: "json"},
		Topics:  Topics{Source: "canusb", Bus: "can"},
		CANUSB: CANUSB{
			Port:    "/dev/ttyACM3",
			Bitrate: 250000,
			Serial:  canusb.PortOptions{BaudRate: 9600, Parity: "E"},
		},
	}
	assert.Equal(t, want, fromTOML)
}

func TestLoadKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "min.yml", "format: json\n"))
	require.NoError(t, err)

	want := Default()
	want.Format = "json"
	assert.Equal(t, want, cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "config file not found")

	_, err = Load(writeFile(t, "bad.toml", "vehicle = \n"))
	assert.ErrorContains(t, err, "invalid TOML")

	_, err = Load(writeFile(t, "bad.yaml", "vehicle: [\n"))
	assert.ErrorContains(t, err, "invalid YAML")

	_, err = Load(writeFile(t, "carhack.json", "{}"))
	assert.ErrorContains(t, err, "unsupported config extension")

	_, err = Load(writeFile(t, "car.toml", `vehicle = "nissan_350z"`))
	assert.ErrorContains(t, err, "unknown vehicle")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.CANUSB.Bitrate = 33_333
	assert.ErrorContains(t, cfg.Validate(), "unsupported bitrate")

	cfg = Default()
	cfg.Topics.Bus = " "
	assert.ErrorContains(t, cfg.Validate(), "topics")

	cfg = Default()
	cfg.CANUSB.Serial.Parity = "mark"
	assert.ErrorContains(t, cfg.Validate(), "canusb serial")
}
