package cmd

import (
	"bytes"
	"image"
	"os"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its children to its default, since
// cobra keeps parsed values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfgFile = ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// writeDocumentPhoto stores the default synthetic document photo in dir.
func writeDocumentPhoto(t *testing.T, dir string) string {
	t.Helper()
	return testutil.WriteDocument(t, dir, "document.png", testutil.DefaultDocumentConfig())
}

// writeEmptyTable stores a frame without any sheet of paper in dir.
func writeEmptyTable(t *testing.T, dir string) string {
	t.Helper()
	cfg := testutil.DefaultDocumentConfig()
	cfg.Corners = [4]image.Point{}
	return testutil.WriteDocument(t, dir, "table.png", cfg)
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}
