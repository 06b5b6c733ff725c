package dieselsss

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/andewx/dieselsss/render"
)

const spirvMagic = 0x07230203

//CoreShader resolves shader programs from compiled SPIR-V files named
//<name>.<stage>.spv in a single directory. Loaded code is cached by path.
type CoreShader struct {
	dir   string
	mu    sync.Mutex
	cache map[string][]byte
}

func NewCoreShader(dir string) *CoreShader {
	return &CoreShader{
		dir:   dir,
		cache: make(map[string][]byte),
	}
}

func (core *CoreShader) Path(name string, stage render.ShaderStage) string {
	return filepath.Join(core.dir, fmt.Sprintf("%s.%s.spv", name, stage))
}

func (core *CoreShader) Program(name string, stage render.ShaderStage) (render.ShaderProgram, error) {
	path := core.Path(name, stage)

	core.mu.Lock()
	code, ok := core.cache[path]
	core.mu.Unlock()
	if !ok {
		var err error
		if code, err = loadSPIRV(path); err != nil {
			return render.ShaderProgram{}, err
		}
		core.mu.Lock()
		core.cache[path] = code
		core.mu.Unlock()
	}
	return render.ShaderProgram{Name: name, Stage: stage, Code: code, Entry: "main"}, nil
}

//Forget drops cached code so the next Program call reads the file again
func (core *CoreShader) Forget() {
	core.mu.Lock()
	core.cache = make(map[string][]byte)
	core.mu.Unlock()
}

func loadSPIRV(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	//Vulkan expects to recieve type uint32 data
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader: %s is %d bytes, not a whole number of SPIR-V words", path, len(data))
	}
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		return nil, fmt.Errorf("shader: %s is not SPIR-V", path)
	}
	return data, nil
}

var _ render.ShaderLibrary = (*CoreShader)(nil)
