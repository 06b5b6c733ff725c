package dieselsss

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/andewx/dieselsss/render"
)

//BaseCore is the DieselSSS host. It owns the glfw window, the Vulkan platform and
//render instance, and drives the renderer through the frame scheduler. Every
//method except SetKernel belongs to the main thread.
type BaseCore struct {
	usage   Usage
	name    string
	session string

	info_log  *log.Logger
	error_log *log.Logger
	warn_log  *log.Logger
	log_files []*os.File

	platform  *CorePlatform
	display   *CoreDisplay
	instance  *CoreRenderInstance
	shaders   *CoreShader
	app       Application
	fallback  Texture
	quad      render.Mesh
	renderer  *render.Renderer
	scheduler *render.FrameScheduler

	scope render.Scope
}

type CoreOptions struct {
	//Verbose tees the info log to stderr
	Verbose bool
}

//Opens the info, error and warning logs in the configured directory, each line
//prefixed with a session id
func (base *BaseCore) openLogs(dir string, verbose bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base.session = uuid.NewString()[:8]
	open := func(name string) (io.Writer, error) {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, err
		}
		base.log_files = append(base.log_files, f)
		return f, nil
	}

	info_file, err := open("info_log.txt")
	if err != nil {
		return err
	}
	error_file, err := open("error_log.txt")
	if err != nil {
		return err
	}
	warn_file, err := open("warn_log.txt")
	if err != nil {
		return err
	}
	if verbose {
		info_file = io.MultiWriter(info_file, os.Stderr)
	}

	flags := log.Ldate | log.Ltime | log.Lshortfile | log.Lmsgprefix
	base.info_log = log.New(info_file, base.session+" INFO: ", flags)
	base.error_log = log.New(error_file, base.session+" ERROR: ", flags)
	base.warn_log = log.New(warn_file, base.session+" WARNING: ", flags)
	return nil
}

//NewBaseCore brings up the window, Vulkan, the application scene and the renderer.
//glfw must already be initialized on the calling thread, see InitDisplay.
func NewBaseCore(usage Usage, app Application, opts CoreOptions) (base *BaseCore, err error) {
	if err := usage.Validate(); err != nil {
		return nil, err
	}
	base = &BaseCore{usage: usage, name: app.VulkanAppName(), app: app}
	if err := base.openLogs(usage.Logging.Dir, opts.Verbose); err != nil {
		base.closeLogs()
		return nil, fmt.Errorf("logs: %w", err)
	}
	defer func() {
		if err != nil {
			base.error_log.Print(err)
			base.Close()
			base = nil
		}
	}()
	base.info_log.Printf("starting %s", base.name)

	base.display, err = NewCoreDisplay(usage.Window.Width, usage.Window.Height, usage.Window.Title)
	if err != nil {
		return base, err
	}
	base.scope.Defer(base.display.Destroy)

	base.platform, err = NewCorePlatform(PlatformOptions{
		AppName:    base.name,
		Required:   base.display.RequiredExtensions(),
		Validation: usage.Logging.Validation,
		Logger:     base.warn_log,
	})
	if err != nil {
		return base, err
	}
	base.scope.Defer(base.platform.Destroy)

	base.instance, err = NewCoreRenderInstance(base.platform, base.display, "Render", base.info_log)
	if err != nil {
		return base, err
	}
	base.scope.Defer(base.instance.Destroy)

	//Neutral grey stands in for every material map the scene leaves empty
	base.fallback, err = base.instance.CreateSolidTexture([4]uint8{128, 128, 128, 255})
	if err != nil {
		return base, err
	}
	base.scope.Defer(func() { base.instance.DestroyTexture(base.fallback) })

	base.quad, err = ScreenQuad().Upload(base.instance)
	if err != nil {
		return base, err
	}
	base.scope.Defer(func() { base.instance.DestroyMesh(base.quad) })

	objects, err := app.Scene(base.instance)
	if err != nil {
		return base, err
	}
	base.scope.Defer(func() { app.Release(base.instance) })

	base.shaders = NewCoreShader(usage.Shaders.Dir)
	ropts := usage.RendererOptions(base.quad, base.fallback.TextureBinding)
	ropts.Logger = base.warn_log
	base.renderer, err = render.NewRenderer(base.instance, base.shaders, objects, ropts)
	if err != nil {
		return base, err
	}

	base.scheduler = render.NewFrameScheduler(base.instance, base.display, base.renderer, render.SchedulerOptions{
		FramesInFlight: usage.Frames.InFlight,
		FenceTimeout:   usage.FenceTimeout(),
		Logger:         base.info_log,
	})
	base.info_log.Printf("%s ready on %s with %d objects", base.name, base.instance.Device().Name(), len(objects))
	return base, nil
}

//Run renders until the window closes or ctx is done
func (base *BaseCore) Run(ctx context.Context) error {
	err := base.scheduler.Run(ctx)
	if err != nil && ctx.Err() == nil {
		base.error_log.Print(err)
	}
	stats := base.scheduler.Stats()
	base.info_log.Printf("rendered %d frames, %d resizes", stats.Frames, stats.Resizes)
	return err
}

//SetKernel hands new kernel parameters to the renderer, they apply on the next
//recorded frame. Safe to call from any goroutine.
func (base *BaseCore) SetKernel(usage Usage) error {
	if base.renderer == nil {
		return fmt.Errorf("renderer is not running")
	}
	if err := base.renderer.SetKernel(usage.KernelParams()); err != nil {
		base.warn_log.Printf("kernel reload rejected: %v", err)
		return err
	}
	base.info_log.Printf("kernel reloaded with %d samples", usage.Kernel.Samples)
	return nil
}

func (base *BaseCore) Usage() Usage {
	return base.usage
}

func (base *BaseCore) Display() *CoreDisplay {
	return base.display
}

func (base *BaseCore) GetInstance() *CoreRenderInstance {
	return base.instance
}

//Close stops the scheduler and releases everything in reverse order of creation
func (base *BaseCore) Close() error {
	var err error
	if base.scheduler != nil {
		err = base.scheduler.Close()
		base.scheduler = nil
	}
	base.scope.Release()
	if base.info_log != nil {
		base.info_log.Printf("%s shut down", base.name)
	}
	base.closeLogs()
	return err
}

func (base *BaseCore) closeLogs() {
	for _, f := range base.log_files {
		f.Close()
	}
	base.log_files = nil
}
