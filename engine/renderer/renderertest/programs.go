package renderertest

import (
	"fmt"
	"os"
	"sync"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

// Programs serves a fake SPIR-V blob for every program, except the ones in Missing.
type Programs struct {
	mu      sync.Mutex
	Missing map[string]bool
	Loads   map[string]int
}

func NewPrograms() *Programs {
	return &Programs{
		Missing: make(map[string]bool),
		Loads:   make(map[string]int),
	}
}

func (p *Programs) Program(file string, stage metadata.ShaderStage) ([]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := fmt.Sprintf("%s.%s", file, stage.FileSuffix())
	if p.Missing[key] {
		return nil, fmt.Errorf("%s.spv: %w", key, os.ErrNotExist)
	}
	p.Loads[key]++
	return []uint32{spirvMagic, 0x00010000, 0, 1, 0}, nil
}
