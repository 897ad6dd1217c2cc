package recorder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileProgress keeps the completed-PIN checkpoint in an append-only
// text file, one PIN per line. This is the on-disk format earlier
// runs of the harvester used (data/completed_pins.csv), so existing
// checkpoint files keep working.
type FileProgress struct {
	path string

	mu   sync.Mutex
	seen map[string]bool
}

func NewFileProgress(path string) (*FileProgress, error) {
	seen := map[string]bool{}

	file, err := os.Open(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			pin := strings.TrimSpace(scanner.Text())
			if pin != "" {
				seen[pin] = true
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	return &FileProgress{path: path, seen: seen}, nil
}

func (p *FileProgress) IsComplete(ctx context.Context, pin string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[pin], nil
}

func (p *FileProgress) MarkComplete(ctx context.Context, pin string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen[pin] {
		return nil
	}

	file, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = fmt.Fprintf(file, "%s\n", pin)
	if err != nil {
		return err
	}
	p.seen[pin] = true
	return nil
}
