// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Out: &buf})

	log.Debug().Msg("hidden")
	log.Info().Str("k", "v").Msg("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"message":"shown"`)
	require.Contains(t, out, `"k":"v"`)
}

func TestNew_UnknownLevelDefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "chatty", Out: &buf})

	log.Info().Msg("info")
	log.Warn().Msg("warn")

	require.NotContains(t, buf.String(), `"message":"info"`)
	require.Contains(t, buf.String(), `"message":"warn"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Options{Level: "debug", Out: &buf}), "apiclient")
	log.Debug().Msg("x")
	require.Contains(t, buf.String(), `"component":"apiclient"`)
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, "none", Fingerprint(""))

	fp := Fingerprint("eyJhbGciOi.secret.token")
	require.Len(t, fp, 8)
	require.Equal(t, fp, Fingerprint("eyJhbGciOi.secret.token"))
	require.NotEqual(t, fp, Fingerprint("other"))
	require.False(t, strings.Contains(fp, "secret"))
}
