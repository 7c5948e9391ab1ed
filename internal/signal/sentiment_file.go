package signal

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// FileScoreSource reads sentiment scores from a JSON file mapping symbol to
// score in [-1,1]. An external classifier refreshes the file; the source
// reloads it when the modification time changes, so scores update without a
// restart.
type FileScoreSource struct {
	path string

	mu       sync.Mutex
	scores   map[string]float64
	loadedAt time.Time
}

// NewFileScoreSource creates a source backed by the given JSON file. A
// missing or unreadable file simply yields no scores.
func NewFileScoreSource(path string) *FileScoreSource {
	return &FileScoreSource{path: path, scores: make(map[string]float64)}
}

func (f *FileScoreSource) Score(symbol string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reload()
	score, ok := f.scores[symbol]
	return score, ok
}

func (f *FileScoreSource) reload() {
	info, err := os.Stat(f.path)
	if err != nil {
		f.scores = map[string]float64{}
		return
	}
	if !info.ModTime().After(f.loadedAt) {
		return
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return
	}
	var scores map[string]float64
	if err := json.Unmarshal(raw, &scores); err != nil {
		// Keep the last good scores when the file is mid-write.
		return
	}
	f.scores = scores
	f.loadedAt = info.ModTime()
}
