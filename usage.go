package dieselsss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/andewx/dieselsss/kernel"
	"github.com/andewx/dieselsss/render"
)

var ErrInvalidUsage = errors.New("invalid usage")

//Usage is the application configuration. It is read from a TOML or YAML file,
//any field the file leaves out keeps its DefaultUsage value.
type Usage struct {
	Window   WindowUsage   `toml:"window" yaml:"window"`
	Frames   FrameUsage    `toml:"frames" yaml:"frames"`
	Shadow   ShadowUsage   `toml:"shadow" yaml:"shadow"`
	GBuffer  GBufferUsage  `toml:"gbuffer" yaml:"gbuffer"`
	Kernel   KernelUsage   `toml:"kernel" yaml:"kernel"`
	Lighting LightingUsage `toml:"lighting" yaml:"lighting"`
	Shaders  ShaderUsage   `toml:"shaders" yaml:"shaders"`
	Logging  LoggingUsage  `toml:"logging" yaml:"logging"`
}

type WindowUsage struct {
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	Title  string `toml:"title" yaml:"title"`
}

type FrameUsage struct {
	InFlight        int `toml:"in_flight" yaml:"in_flight"`
	SwapchainImages int `toml:"swapchain_images" yaml:"swapchain_images"`
	FenceTimeoutMS  int `toml:"fence_timeout_ms" yaml:"fence_timeout_ms"`
}

type ShadowUsage struct {
	Resolution   uint32  `toml:"resolution" yaml:"resolution"`
	FOV          float32 `toml:"fov" yaml:"fov"`
	Near         float32 `toml:"near" yaml:"near"`
	Far          float32 `toml:"far" yaml:"far"`
	BiasConstant float32 `toml:"bias_constant" yaml:"bias_constant"`
	BiasSlope    float32 `toml:"bias_slope" yaml:"bias_slope"`
}

type GBufferUsage struct {
	Samples int `toml:"samples" yaml:"samples"`
}

type KernelUsage struct {
	Samples       int        `toml:"samples" yaml:"samples"`
	Strength      [3]float32 `toml:"strength" yaml:"strength"`
	Falloff       [3]float32 `toml:"falloff" yaml:"falloff"`
	StrengthScale float32    `toml:"strength_scale" yaml:"strength_scale"`
	FalloffScale  float32    `toml:"falloff_scale" yaml:"falloff_scale"`
}

type LightingUsage struct {
	Ambient     [4]float32 `toml:"ambient" yaml:"ambient"`
	Directional [4]float32 `toml:"directional" yaml:"directional"`
}

type ShaderUsage struct {
	Dir string `toml:"dir" yaml:"dir"`
}

type LoggingUsage struct {
	Dir        string `toml:"dir" yaml:"dir"`
	Validation bool   `toml:"validation" yaml:"validation"`
}

func DefaultUsage() Usage {
	k := kernel.DefaultParams()
	light := render.DefaultLight()
	return Usage{
		Window: WindowUsage{Width: 1280, Height: 720, Title: "dieselsss"},
		Frames: FrameUsage{
			InFlight:        render.DefaultFramesInFlight,
			SwapchainImages: render.DefaultImageCount,
			FenceTimeoutMS:  int(render.DefaultFenceTimeout / time.Millisecond),
		},
		Shadow: ShadowUsage{
			Resolution:   render.DefaultShadowResolution,
			FOV:          light.FOV,
			Near:         light.Near,
			Far:          light.Far,
			BiasConstant: light.BiasConstant,
			BiasSlope:    light.BiasSlope,
		},
		GBuffer: GBufferUsage{Samples: 1},
		Kernel: KernelUsage{
			Samples:       k.Samples,
			Strength:      k.Strength,
			Falloff:       k.Falloff,
			StrengthScale: k.StrengthScale,
			FalloffScale:  k.FalloffScale,
		},
		Lighting: LightingUsage{Ambient: light.Ambient, Directional: light.Directional},
		Shaders:  ShaderUsage{Dir: "shaders"},
		Logging:  LoggingUsage{Dir: "logs"},
	}
}

//LoadUsage decodes path over DefaultUsage, choosing the format by extension.
//Unknown keys are an error.
func LoadUsage(path string) (Usage, error) {
	u := DefaultUsage()
	data, err := os.ReadFile(path)
	if err != nil {
		return u, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&u)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(&u); errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return u, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidUsage, ext)
	}
	if err != nil {
		return u, fmt.Errorf("config %s: %w", path, err)
	}
	return u, u.Validate()
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

func (u Usage) Validate() error {
	var errs []error
	if u.Window.Width <= 0 || u.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window extent %dx%d is empty", u.Window.Width, u.Window.Height))
	}
	if u.Frames.InFlight < 1 {
		errs = append(errs, fmt.Errorf("frames.in_flight %d is below 1", u.Frames.InFlight))
	}
	if u.Frames.SwapchainImages < 1 {
		errs = append(errs, fmt.Errorf("frames.swapchain_images %d is below 1", u.Frames.SwapchainImages))
	}
	if u.Frames.FenceTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("frames.fence_timeout_ms %d must be positive", u.Frames.FenceTimeoutMS))
	}
	if !isPowerOfTwo(u.Shadow.Resolution) {
		errs = append(errs, fmt.Errorf("shadow.resolution %d is not a power of two", u.Shadow.Resolution))
	}
	if u.Shadow.Near <= 0 || u.Shadow.Far <= u.Shadow.Near {
		errs = append(errs, fmt.Errorf("shadow depth range %g..%g", u.Shadow.Near, u.Shadow.Far))
	}
	if s := u.GBuffer.Samples; s < 1 || s > 16 || !isPowerOfTwo(uint32(s)) {
		errs = append(errs, fmt.Errorf("gbuffer.samples %d is not one of 1, 2, 4, 8, 16", s))
	}
	if err := u.KernelParams().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("kernel: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidUsage, errors.Join(errs...))
	}
	return nil
}

func (u Usage) KernelParams() kernel.Params {
	return kernel.Params{
		Samples:       u.Kernel.Samples,
		Strength:      mgl32.Vec3(u.Kernel.Strength),
		Falloff:       mgl32.Vec3(u.Kernel.Falloff),
		StrengthScale: u.Kernel.StrengthScale,
		FalloffScale:  u.Kernel.FalloffScale,
	}
}

func (u Usage) Light() render.Light {
	light := render.DefaultLight()
	light.FOV = u.Shadow.FOV
	light.Near = u.Shadow.Near
	light.Far = u.Shadow.Far
	light.BiasConstant = u.Shadow.BiasConstant
	light.BiasSlope = u.Shadow.BiasSlope
	light.Ambient = mgl32.Vec4(u.Lighting.Ambient)
	light.Directional = mgl32.Vec4(u.Lighting.Directional)
	return light
}

func (u Usage) FenceTimeout() time.Duration {
	return time.Duration(u.Frames.FenceTimeoutMS) * time.Millisecond
}

//RendererOptions maps the configuration onto the renderer. The quad and fallback
//texture come from the device, they are not configurable.
func (u Usage) RendererOptions(quad render.Mesh, fallback render.TextureBinding) render.RendererOptions {
	return render.RendererOptions{
		Resources: render.ResourceOptions{
			ShadowResolution: u.Shadow.Resolution,
			Samples:          u.GBuffer.Samples,
			Slots:            u.Frames.InFlight,
			Fallback:         fallback,
		},
		Camera:     render.DefaultCamera(),
		Light:      u.Light(),
		Kernel:     u.KernelParams(),
		Quad:       quad,
		ImageCount: u.Frames.SwapchainImages,
	}
}

func (u Usage) EncodeTOML() ([]byte, error) {
	return toml.Marshal(u)
}

//Watch reloads path whenever it is written and hands the result to fn, including
//load and validation errors. Events come from the parent directory, so a file
//replaced by rename is picked up too. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(Usage, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fn(LoadUsage(path))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fn(Usage{}, err)
		}
	}
}
