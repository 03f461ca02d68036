package weights

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FileStore keeps each version as weights/v<N>.json. Publish writes the
// new file with a temp-and-rename so readers never observe a partial
// version, and the highest N on disk is always the active version.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the weights directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create weights dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) versionNumbers() ([]int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list weights dir: %w", err)
	}
	var nums []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".json"))
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

func (f *FileStore) read(number int) (Version, bool, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, fmt.Sprintf("v%d.json", number)))
	if err != nil {
		if os.IsNotExist(err) {
			return Version{}, false, nil
		}
		return Version{}, false, fmt.Errorf("read weights v%d: %w", number, err)
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return Version{}, false, fmt.Errorf("decode weights v%d: %w", number, err)
	}
	return v, true, nil
}

// Active returns the highest published version.
func (f *FileStore) Active(_ context.Context) (Version, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nums, err := f.versionNumbers()
	if err != nil || len(nums) == 0 {
		return Version{}, false, err
	}
	return f.read(nums[len(nums)-1])
}

// Get fetches one version by number.
func (f *FileStore) Get(_ context.Context, number int) (Version, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(number)
}

// Publish assigns the next version number and writes it atomically.
func (f *FileStore) Publish(_ context.Context, next Version) (Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	nums, err := f.versionNumbers()
	if err != nil {
		return Version{}, err
	}
	next.Number = 1
	if len(nums) > 0 {
		next.Number = nums[len(nums)-1] + 1
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return Version{}, fmt.Errorf("encode weights v%d: %w", next.Number, err)
	}
	final := filepath.Join(f.dir, fmt.Sprintf("v%d.json", next.Number))
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Version{}, fmt.Errorf("write weights v%d: %w", next.Number, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return Version{}, fmt.Errorf("commit weights v%d: %w", next.Number, err)
	}
	return next, nil
}
