package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/pager/service/spawner"
)

func run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	bhv := Main(context.Background(), append([]string{"pager"}, args...), &stdout, &stderr)
	err := bhv.action()
	return stdout.String(), stderr.String(), err
}

func TestMain_Parse(t *testing.T) {
	testCases := []struct {
		name       string
		args       []string
		expectCode int
	}{
		{name: "unknown command", args: []string{"wow"}, expectCode: exitUsage},
		{name: "layout without length", args: []string{"layout"}, expectCode: exitUsage},
		{name: "layout", args: []string{"layout", "--length", "4097"}, expectCode: exitOK},
		{name: "layout empty image", args: []string{"layout", "--length", "0"}, expectCode: exitFatal},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := run(tc.args...)
			assert.Equal(t, tc.expectCode, exitCode(err), "%v", err)
		})
	}
}

func TestLayoutCmd(t *testing.T) {
	stdout, _, err := run("layout", "--length", "4097")
	require.NoError(t, err)
	assert.Contains(t, stdout, "text")
	assert.Contains(t, stdout, "0x10001001")
	assert.Contains(t, stdout, "0x1fffeff8")
}

func TestBootCmd(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	baseURL := "mem://localhost/cmd/images"
	for name, size := range map[string]int{"mm0.bin": 100, "fs0.bin": 5000, "test0.bin": 10} {
		require.NoError(t, fs.Upload(ctx, baseURL+"/"+name, file.DefaultFileOsMode, bytes.NewReader(make([]byte, size))))
	}
	configURL := "mem://localhost/cmd/pager.yaml"
	config := "log:\n  level: error\n"
	require.NoError(t, fs.Upload(ctx, configURL, file.DefaultFileOsMode, strings.NewReader(config)))

	stdout, _, err := run("boot", "--config", configURL, "--images", baseURL)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1 "), lines[1])
	assert.Contains(t, lines[1], "fs0")
	assert.Contains(t, lines[2], "test0")
	assert.NotContains(t, stdout, "mm0")
}

func TestBootCmd_Fatal(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	baseURL := "mem://localhost/cmd/fatal"
	require.NoError(t, fs.Upload(ctx, baseURL+"/fs0.bin", file.DefaultFileOsMode, bytes.NewReader(make([]byte, 10))))
	configURL := "mem://localhost/cmd/fatal.yaml"
	config := "log:\n  level: crit\nbuffer:\n  areaStart: 0xf8000000\n  areaEnd: 0xf8000000\n"
	require.NoError(t, fs.Upload(ctx, configURL, file.DefaultFileOsMode, strings.NewReader(config)))
	_, _, err := run("boot", "--config", configURL, "--images", baseURL)
	assert.Error(t, err, "invalid buffer area is rejected")

	config = "log:\n  level: crit\nbuffer:\n  areaStart: 0xf8000000\n  areaEnd: 0xf8001000\n  capacity: 512\n"
	require.NoError(t, fs.Upload(ctx, configURL, file.DefaultFileOsMode, strings.NewReader(config)))
	require.NoError(t, fs.Upload(ctx, baseURL+"/test0.bin", file.DefaultFileOsMode, bytes.NewReader(make([]byte, 10))))
	_, _, err = run("boot", "--config", configURL, "--images", baseURL)
	var fatalErr *spawner.FatalError
	require.True(t, errors.As(err, &fatalErr), "%v", err)
	assert.Equal(t, spawner.StageBuffer, fatalErr.Stage)
	assert.Equal(t, exitFatal, exitCode(err))
}

func TestBootCmd_NoCoordinator(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	baseURL := "mem://localhost/cmd/nocoordinator"
	require.NoError(t, fs.Upload(ctx, baseURL+"/test0.bin", file.DefaultFileOsMode, bytes.NewReader(make([]byte, 10))))
	configURL := "mem://localhost/cmd/nocoordinator.yaml"
	require.NoError(t, fs.Upload(ctx, configURL, file.DefaultFileOsMode, strings.NewReader("log:\n  level: crit\n")))

	stdout, _, err := run("boot", "--config", configURL, "--images", baseURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fs0")
	assert.Equal(t, exitFatal, exitCode(err))
	assert.Empty(t, stdout)
}
