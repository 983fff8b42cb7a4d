package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/longkey1/nostack/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefaultConfig(t *testing.T) {
	defaults := config.NewDefaultConfig("/home/user/.config/nostack/prompts")

	var buf bytes.Buffer
	require.NoError(t, writeDefaultConfig(&buf, defaults))
	out := buf.String()

	var got config.Config
	md, err := toml.Decode(out, &got)
	require.NoError(t, err)
	assert.Empty(t, md.Undecoded())
	assert.Equal(t, *defaults, got)

	assert.Contains(t, out, "# Attached images are downscaled")
	assert.Contains(t, out, "max_image_size = 2048")
	assert.Contains(t, out, "model_cache_hours = 24")
	assert.Contains(t, out, `anthropic_token = "$ANTHROPIC_API_KEY"`)
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("max_tokens")), bytes.Index(buf.Bytes(), []byte("max_image_size")))
}

func TestPrintVersion(t *testing.T) {
	t.Cleanup(func() { versionShort, versionJSON = false, false })

	var buf bytes.Buffer
	versionJSON = true
	require.NoError(t, printVersion(&buf))
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, version.Get(), info)

	buf.Reset()
	versionJSON, versionShort = false, true
	require.NoError(t, printVersion(&buf))
	assert.Equal(t, version.Short()+"\n", buf.String())
}
