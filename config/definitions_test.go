package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYamlDefinitionsKeepOrder(t *testing.T) {
	defs, err := ParseDefinitions([]byte(`
parameters:
  mailer.host: smtp.local
  mailer.port: 25
services:
  zeta: ZetaService
  alpha:
    class: AlphaService
    arguments: ["@zeta", "%mailer.port%"]
  factory_made: ["@builder", build, [1]]
`), "yaml")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"mailer.host": "smtp.local", "mailer.port": 25}, defs.Parameters)
	require.Len(t, defs.Services, 3)
	assert.Equal(t, "zeta", defs.Services[0].Name)
	assert.Equal(t, "ZetaService", defs.Services[0].Options)
	assert.Equal(t, "alpha", defs.Services[1].Name)
	assert.Equal(t, map[string]any{
		"class":     "AlphaService",
		"arguments": []any{"@zeta", "%mailer.port%"},
	}, defs.Services[1].Options)
	assert.Equal(t, []any{"@builder", "build", []any{1}}, defs.Services[2].Options)
}

func TestJsonDefinitionsNormalizeNumbers(t *testing.T) {
	defs, err := ParseDefinitions([]byte(`{
		"parameters": {"retries": 3, "ratio": 0.5},
		"services": {"b": {"class": "B"}, "a": "A"}
	}`), "json")
	require.NoError(t, err)

	assert.Equal(t, 3, defs.Parameters["retries"])
	assert.Equal(t, 0.5, defs.Parameters["ratio"])
	require.Len(t, defs.Services, 2)
	assert.Equal(t, "a", defs.Services[0].Name)
	assert.Equal(t, "b", defs.Services[1].Name)
}

func TestTomlDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(`
[parameters]
retries = 3

[services.mailer]
class = "Mailer"
arguments = ["%retries%", 10]

[[services.mailer.calls]]
method = "setTransport"
arguments = ["@transport"]
`), "toml")
	require.NoError(t, err)

	assert.Equal(t, 3, defs.Parameters["retries"])
	require.Len(t, defs.Services, 1)
	options := defs.Services[0].Options.(map[string]any)
	assert.Equal(t, []any{"%retries%", 10}, options["arguments"])
	assert.Equal(t, []any{map[string]any{
		"method":    "setTransport",
		"arguments": []any{"@transport"},
	}}, options["calls"])
}

func TestDefinitionsErrors(t *testing.T) {
	_, err := ParseDefinitions([]byte("services: [a, b]"), "yaml")
	assert.Error(t, err)

	_, err = ParseDefinitions([]byte(`{"services": []}`), "json")
	assert.Error(t, err)

	_, err = ParseDefinitions([]byte("{}"), "ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadDefinitionsFile("services.xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
