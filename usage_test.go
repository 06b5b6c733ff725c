package dieselsss

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/dieselsss/kernel"
	"github.com/andewx/dieselsss/render"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultUsageIsValid(t *testing.T) {
	u := DefaultUsage()
	require.NoError(t, u.Validate())
	assert.Equal(t, 10*time.Second, u.FenceTimeout())
	assert.Equal(t, kernel.DefaultParams(), u.KernelParams())
}

func TestLoadUsageTOMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "usage.toml", `
[window]
width = 640

[kernel]
samples = 11
strength_scale = 0.5
`)
	u, err := LoadUsage(path)
	require.NoError(t, err)
	assert.Equal(t, 640, u.Window.Width)
	assert.Equal(t, 720, u.Window.Height)
	assert.Equal(t, 11, u.Kernel.Samples)
	assert.Equal(t, float32(0.5), u.KernelParams().StrengthScale)
	assert.Equal(t, DefaultUsage().Shadow, u.Shadow)
}

func TestLoadUsageYAMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "usage.yaml", `
shadow:
  resolution: 1024
  bias_slope: 2.5
frames:
  in_flight: 3
`)
	u, err := LoadUsage(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), u.Shadow.Resolution)
	assert.Equal(t, 3, u.Frames.InFlight)
	assert.Equal(t, float32(2.5), u.Light().BiasSlope)
	assert.Equal(t, DefaultUsage().Window, u.Window)
}

func TestLoadUsageEmptyYAML(t *testing.T) {
	u, err := LoadUsage(writeConfig(t, "usage.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultUsage(), u)
}

func TestLoadUsageRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		is      error
	}{
		{"unknown toml key", "a.toml", "[window]\nwdth = 3\n", nil},
		{"unknown yaml key", "a.yaml", "window:\n  wdth: 3\n", nil},
		{"even kernel", "a.toml", "[kernel]\nsamples = 10\n", kernel.ErrSampleCount},
		{"shadow resolution", "a.toml", "[shadow]\nresolution = 1000\n", ErrInvalidUsage},
		{"gbuffer samples", "a.yaml", "gbuffer:\n  samples: 3\n", ErrInvalidUsage},
		{"depth range", "a.toml", "[shadow]\nnear = 5.0\nfar = 1.0\n", ErrInvalidUsage},
		{"extension", "a.json", "{}", ErrInvalidUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadUsage(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	u := DefaultUsage()
	u.Window.Width = 0
	u.Frames.InFlight = 0
	u.Kernel.Samples = 4
	err := u.Validate()
	require.ErrorIs(t, err, ErrInvalidUsage)
	assert.ErrorIs(t, err, kernel.ErrSampleCount)
	assert.Contains(t, err.Error(), "window extent")
	assert.Contains(t, err.Error(), "in_flight")
}

func TestEncodeTOMLRoundTrips(t *testing.T) {
	want := DefaultUsage()
	want.Window.Title = "round trip"
	want.Kernel.Samples = 7
	data, err := want.EncodeTOML()
	require.NoError(t, err)

	got, err := LoadUsage(writeConfig(t, "usage.toml", string(data)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRendererOptions(t *testing.T) {
	u := DefaultUsage()
	u.Frames.InFlight = 3
	u.GBuffer.Samples = 4
	quad := render.Mesh{Vertices: 1, Indices: 2, IndexCount: 6}
	fallback := render.TextureBinding{View: 3, Sampler: 4}
	opts := u.RendererOptions(quad, fallback)
	assert.Equal(t, 3, opts.Resources.Slots)
	assert.Equal(t, 4, opts.Resources.Samples)
	assert.Equal(t, u.Shadow.Resolution, opts.Resources.ShadowResolution)
	assert.Equal(t, u.Frames.SwapchainImages, opts.ImageCount)
	assert.Equal(t, u.Shadow.BiasConstant, opts.Light.BiasConstant)
	assert.Equal(t, fallback, opts.Resources.Fallback)
	assert.Equal(t, quad, opts.Quad)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 640\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Usage, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(u Usage, err error) {
			if err != nil || u.Window.Width != 800 {
				return
			}
			select {
			case got <- u:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	for received := false; !received; {
		require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 800\n"), 0o644))
		select {
		case u := <-got:
			assert.Equal(t, 720, u.Window.Height)
			received = true
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no reload after writing the config")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
