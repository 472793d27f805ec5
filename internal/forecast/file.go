package forecast

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// File reads forecast text from a local file maintained by some other
// process. Only the first non-empty line is used.
type File struct {
	path string
}

// NewFile builds a File provider for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Text implements Provider.
func (f *File) Text(_ context.Context, _ time.Time) (string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return "", fmt.Errorf("open forecast file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read forecast file: %w", err)
	}
	return "", nil
}

// Static returns a fixed, operator-configured scroller text.
type Static struct {
	text string
}

// NewStatic builds a Static provider.
func NewStatic(text string) *Static {
	return &Static{text: text}
}

// Text implements Provider.
func (s *Static) Text(_ context.Context, _ time.Time) (string, error) {
	return s.text, nil
}
