// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protoserial/stack/config"
	"github.com/protoserial/stack/ident"
	"github.com/protoserial/stack/link"
)

func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "stack.yml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeTmpConfig(t, `
stack:
  links:
    - name: uplink
      kind: uart
      local_address: 1
`))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.True(t, cfg.Log.JSON)
	require.False(t, cfg.Metrics.Enabled)
	require.Equal(t, ":9108", cfg.Metrics.Listen)
	require.Len(t, cfg.Links, 1)
	require.Equal(t, byte(1), cfg.Links[0].LocalAddress)
}

func TestLoadRejectsUnnamedLink(t *testing.T) {
	_, err := config.Load(writeTmpConfig(t, `
stack:
  links:
    - kind: uart
      local_address: 1
`))
	require.Error(t, err)
}

func TestLoadRejectsUnknownLinkKind(t *testing.T) {
	_, err := config.Load(writeTmpConfig(t, `
stack:
  links:
    - name: uplink
      kind: carrier-pigeon
      local_address: 1
`))
	require.Error(t, err)
}

func TestLinkConfigOptionsSetLocalAddress(t *testing.T) {
	lc := config.LinkConfig{Name: "a", Kind: "loopback", LocalAddress: 5}
	l := link.New(ident.New(ident.KindLoopback, "a"), lc.Options()...)
	require.Equal(t, link.Address(5), l.LocalAddress())
}
