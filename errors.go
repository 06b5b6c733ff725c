package dieselsss

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

//Maps the results the frame scheduler reacts to onto the render sentinels so
//callers can match them with errors.Is. Every other failure keeps the Vulkan text.
func resultError(ret vk.Result) error {
	switch ret {
	case vk.ErrorOutOfDate:
		return render.ErrSurfaceStale
	case vk.Suboptimal:
		return render.ErrSuboptimal
	case vk.Timeout:
		return render.ErrTimeout
	}
	return vk.Error(ret)
}

// NewError converts a Vulkan result into an error annotated with the calling
// function and line. Success yields nil.
func NewError(ret vk.Result) error {
	if !isError(ret) {
		return nil
	}
	base := resultError(ret)
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("vulkan error: %w (%d)", base, ret)
	}
	frame := newStackFrame(pc)
	return fmt.Errorf("vulkan error: %w (%d) on %s", base, ret, frame.String())
}

type stackFrame struct {
	file string
	line int
	name string
}

func newStackFrame(pc uintptr) stackFrame {
	frame := stackFrame{name: "unknown"}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return frame
	}
	frame.file, frame.line = fn.FileLine(pc)
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	frame.name = name
	return frame
}

func (f stackFrame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.name, filepath.Base(f.file), f.line)
}

// Fatal runs the finalizers, writes err to fatal_log.txt and exits. A nil err is a no-op.
func Fatal(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}

		file, ferr := os.OpenFile("fatal_log.txt", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if ferr != nil {
			log.Fatal(err)
		}
		fatal_log := log.New(file, "FATAL: ", log.Ldate|log.Ltime|log.Lshortfile)
		fatal_log.Fatal(err)
	}
}

//Bring-up paths panic through orPanic and recover here into a returned error
func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}

func orPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}
