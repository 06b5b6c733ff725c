package dieselsss

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

var PlatformOS = runtime.GOOS

const (
	debugReportExtension          = "VK_EXT_debug_report"
	portabilityEnumerateExtension = "VK_KHR_portability_enumeration"
	validationLayer               = "VK_LAYER_KHRONOS_validation"
)

//Validation messages are routed here, the callback has no user pointer we can use safely
var debug_log = log.New(io.Discard, "", 0)

type PlatformOptions struct {
	AppName string
	//Required are the instance extensions the window system needs
	Required   []string
	Validation bool
	Logger     *log.Logger
}

//CorePlatform is the Vulkan instance plus the validation state that was
//negotiated when creating it
type CorePlatform struct {
	instance       vk.Instance
	extensions     *BaseExtensions
	layers         *BaseExtensions
	debug_callback vk.DebugReportCallback
	logger         *log.Logger
}

func NewCorePlatform(opts PlatformOptions) (p *CorePlatform, err error) {
	defer checkErr(&err)

	p = &CorePlatform{logger: opts.Logger}
	if p.logger == nil {
		p.logger = log.New(io.Discard, "", 0)
	}

	wanted := []string{}
	wanted_layers := []string{}
	if opts.Validation {
		wanted = append(wanted, debugReportExtension)
		wanted_layers = append(wanted_layers, validationLayer)
	}
	var flags vk.InstanceCreateFlags
	if PlatformOS == "darwin" {
		wanted = append(wanted, portabilityEnumerateExtension)
		flags = vk.InstanceCreateFlags(0x00000001) //VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT
	}

	p.extensions, err = NewBaseInstanceExtensions(wanted, opts.Required)
	orPanic(err)
	if ok, missing := p.extensions.HasRequired(); !ok {
		orPanic(fmt.Errorf("missing required instance extensions %v", missing))
	}
	if ok, missing := p.extensions.HasWanted(); !ok {
		p.logger.Printf("vulkan: instance extensions unavailable %v", missing)
	}
	p.layers, err = NewBaseLayerExtensions(wanted_layers)
	orPanic(err)
	if ok, missing := p.layers.HasWanted(); !ok {
		p.logger.Printf("vulkan: validation layers unavailable %v", missing)
	}
	extensions := p.extensions.GetExtensions()
	layers := p.layers.GetExtensions()
	if !contains(extensions, portabilityEnumerateExtension) {
		flags = 0
	}

	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(DefaultVulkanAPIVersion),
			ApplicationVersion: uint32(DefaultVulkanAppVersion),
			PApplicationName:   safeString(opts.AppName),
			PEngineName:        safeString("dieselsss"),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
		Flags:                   flags,
	}, nil, &p.instance)
	orPanic(NewError(ret))
	vk.InitInstance(p.instance)
	p.logger.Printf("vulkan: instance with %d extensions and %d layers", len(extensions), len(layers))

	if opts.Validation && contains(extensions, debugReportExtension) {
		debug_log = p.logger
		ret := vk.CreateDebugReportCallback(p.instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}, nil, &p.debug_callback)
		orPanic(NewError(ret), p.Destroy)
		p.logger.Println("vulkan: DebugReportCallback enabled")
	}
	return p, nil
}

func (p *CorePlatform) Instance() vk.Instance {
	return p.instance
}

func (p *CorePlatform) Layers() []string {
	if p.layers == nil {
		return nil
	}
	return p.layers.GetExtensions()
}

func (p *CorePlatform) Destroy() {
	if p.debug_callback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(p.instance, p.debug_callback, nil)
		p.debug_callback = vk.NullDebugReportCallback
	}
	if p.instance != nil {
		vk.DestroyInstance(p.instance, nil)
		p.instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		debug_log.Printf("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		debug_log.Printf("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		debug_log.Printf("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		debug_log.Printf("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		debug_log.Printf("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
