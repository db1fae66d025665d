package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/allowlist"
)

var (
	wl1    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	wl2    = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	wl3    = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	hacker = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
)

func writeAllowlist(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allowlist.txt")
	content := "# early buyers\n" + wl1.Hex() + "\n" + wl2.Hex() + "\n" + wl3.Hex() + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAllowlistRoot(t *testing.T) {
	path := writeAllowlist(t)
	tree, err := allowlist.NewTree([]common.Address{wl1, wl2, wl3})
	require.NoError(t, err)

	out, err := run(t, "allowlist", "root", "--allowlist", path)
	require.NoError(t, err)
	assert.Equal(t, tree.Root().Hex(), strings.TrimSpace(out))
}

func TestAllowlistProof(t *testing.T) {
	path := writeAllowlist(t)
	tree, err := allowlist.NewTree([]common.Address{wl1, wl2, wl3})
	require.NoError(t, err)

	t.Run("member", func(t *testing.T) {
		out, err := run(t, "allowlist", "proof", wl2.Hex(), "--allowlist", path)
		require.NoError(t, err)
		proof := allowlist.ParseProof(strings.Fields(out))
		assert.True(t, allowlist.Verify(tree.Root(), wl2, proof))
	})

	t.Run("non-member", func(t *testing.T) {
		_, err := run(t, "allowlist", "proof", hacker.Hex(), "--allowlist", path)
		require.Error(t, err)
	})

	t.Run("invalid address", func(t *testing.T) {
		_, err := run(t, "allowlist", "proof", "0x1234", "--allowlist", path)
		require.ErrorContains(t, err, "invalid address")
	})

	t.Run("no allowlist configured", func(t *testing.T) {
		_, err := run(t, "allowlist", "root")
		require.ErrorContains(t, err, "no allowlist file configured")
	})
}
