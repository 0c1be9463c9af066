package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iofault/fi/internal/clock"
)

func TestLoad_Empty(t *testing.T) {
	chain, err := Load(strings.NewReader(""), clock.Real{})
	require.NoError(t, err)
	require.NotNil(t, chain)
}

func TestLoad_FaultLatencyAttrOverride(t *testing.T) {
	doc := `[
		{"fault": {"faults": [{"methods": ["open"], "path": "/forbidden", "errno": 13, "percent": 100}]}},
		{"latency": {"methods": ["read"], "path": "*", "delay": "200ms", "percent": 100}},
		{"attr_override": {"path": "/zero", "size": 1048576}}
	]`

	chain, err := Load(strings.NewReader(doc), clock.NewFake(time.Unix(0, 0)))
	require.NoError(t, err)
	require.NotNil(t, chain)
}

func TestLoad_RejectsUnknownMethod(t *testing.T) {
	doc := `[{"fault": {"faults": [{"methods": ["teleport"], "path": "*", "errno": 1, "percent": 100}]}}]`
	_, err := Load(strings.NewReader(doc), clock.Real{})
	require.Error(t, err)
}

func TestLoad_RejectsOutOfRangePercent(t *testing.T) {
	doc := `[{"latency": {"methods": ["read"], "path": "*", "delay": "1ms", "percent": 150}}]`
	_, err := Load(strings.NewReader(doc), clock.Real{})
	require.Error(t, err)
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	doc := `[{"fault": {"faults": [{"methods": ["open"], "path": "*", "errno": 1, "percent": 100, "unexpected": true}]}}]`
	_, err := Load(strings.NewReader(doc), clock.Real{})
	require.Error(t, err)
}

func TestLoad_RejectsMultipleVariantsInOneRule(t *testing.T) {
	doc := `[{
		"fault": {"faults": [{"methods": ["open"], "path": "*", "errno": 1, "percent": 100}]},
		"latency": {"methods": ["read"], "path": "*", "delay": "1ms", "percent": 100}
	}]`
	_, err := Load(strings.NewReader(doc), clock.Real{})
	assert.Error(t, err)
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	doc := `[{"latency": {"methods": ["read"], "path": "*", "delay": "not-a-duration", "percent": 100}}]`
	_, err := Load(strings.NewReader(doc), clock.Real{})
	require.Error(t, err)
}
