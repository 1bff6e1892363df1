package assets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

var ErrInvalidProgram = errors.New("not a SPIR-V program")

type ProgramInfo struct {
	Path       string
	LastLoaded time.Time
	// Stale is set when the file changed after it was loaded. Shader sets are
	// immutable, so a stale program only takes effect after a restart.
	Stale bool
}

/**
 * @brief Serves compiled shader programs from a directory and, when
 * watching, tracks which of the loaded programs changed on disk.
 */
type AssetManager struct {
	shaderDir string
	programs  map[string]ProgramInfo

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	// OnChange, if set, is called from the watcher goroutine for every changed program.
	OnChange func(path string)
}

func NewAssetManager(shaderDir string) (*AssetManager, error) {
	fi, err := os.Stat(shaderDir)
	if err != nil {
		return nil, fmt.Errorf("shader directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("shader directory %s is not a directory", shaderDir)
	}
	return &AssetManager{
		shaderDir: shaderDir,
		programs:  make(map[string]ProgramInfo),
		done:      make(chan struct{}),
	}, nil
}

// Watch starts watching the shader directory and all sub-directories.
func (am *AssetManager) Watch() error {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	if am.fsnotify != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = w
	if err := am.watchRecursive(am.shaderDir); err != nil {
		w.Close()
		am.fsnotify = nil
		return err
	}
	am.wg.Add(1)
	go am.start(w)
	return nil
}

func (am *AssetManager) start(w *fsnotify.Watcher) {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					am.mutex.Lock()
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogError(err.Error())
					}
					am.mutex.Unlock()
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				am.handleFileEvent(e.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// handleFileEvent marks a loaded program stale. Programs never loaded are ignored.
func (am *AssetManager) handleFileEvent(path string) {
	if filepath.Ext(path) != ".spv" {
		return
	}
	path = filepath.Clean(path)
	am.mutex.Lock()
	info, ok := am.programs[path]
	if ok {
		info.Stale = true
		am.programs[path] = info
	}
	onChange := am.OnChange
	am.mutex.Unlock()

	if !ok {
		return
	}
	core.LogWarn("shader program %s changed on disk; restart to rebuild its shader set", path)
	if onChange != nil {
		onChange(path)
	}
}

func (am *AssetManager) programPath(file string, stage metadata.ShaderStage) string {
	return filepath.Clean(filepath.Join(am.shaderDir, fmt.Sprintf("%s.%s.spv", file, stage.FileSuffix())))
}

/**
 * @brief Reads <shaderDir>/<file>.<stage>.spv, e.g. pbr.frag.spv.
 * @return The program as SPIR-V words; ErrInvalidProgram for files that are
 * not SPIR-V.
 */
func (am *AssetManager) Program(file string, stage metadata.ShaderStage) ([]uint32, error) {
	path := am.programPath(file, stage)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := decodeSPIRV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	am.mutex.Lock()
	am.programs[path] = ProgramInfo{Path: path, LastLoaded: time.Now()}
	am.mutex.Unlock()
	core.LogDebug("loaded shader program %s (%d words)", path, len(code))
	return code, nil
}

func decodeSPIRV(data []byte) ([]uint32, error) {
	if len(data) < 20 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidProgram, len(data))
	}
	order := binary.ByteOrder(binary.LittleEndian)
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		if binary.BigEndian.Uint32(data) != spirvMagic {
			return nil, fmt.Errorf("%w: bad magic", ErrInvalidProgram)
		}
		order = binary.BigEndian
	}
	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = order.Uint32(data[i*4:])
	}
	return code, nil
}

// Programs lists the programs loaded so far, sorted by path.
func (am *AssetManager) Programs() []ProgramInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make([]ProgramInfo, 0, len(am.programs))
	for _, info := range am.programs {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b ProgramInfo) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Stale lists the paths of loaded programs that changed on disk.
func (am *AssetManager) Stale() []string {
	var out []string
	for _, info := range am.Programs() {
		if info.Stale {
			out = append(out, info.Path)
		}
	}
	return out
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	close(am.done)
	w := am.fsnotify
	am.mutex.Unlock()

	am.wg.Wait()
	if w != nil {
		return w.Close()
	}
	return nil
}
