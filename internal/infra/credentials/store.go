package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"lookbook/internal/domain"
)

const (
	ProviderGemini  = "gemini"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// Source yields an already selected key, or "" when it has none.
type Source interface {
	Lookup(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Lookup(ctx context.Context) (string, error) { return f(ctx) }

// EnvSource reads the key from an environment variable.
func EnvSource(name string) Source {
	return SourceFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(os.Getenv(name)), nil
	})
}

// FileSource reads name from a dotenv formatted file. A missing file is not
// an error.
func FileSource(path, name string) Source {
	return SourceFunc(func(context.Context) (string, error) {
		path = strings.TrimSpace(path)
		if path == "" {
			return "", nil
		}
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil
			}
			return "", fmt.Errorf("read key file: %w", err)
		}
		return strings.TrimSpace(values[name]), nil
	})
}

// SaveKeyFile writes key to path in the format FileSource reads, keeping any
// other entries already in the file.
func SaveKeyFile(path, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read key file: %w", err)
		}
		values = map[string]string{}
	}
	values[EnvGeminiAPIKey] = key
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// Prompter asks the user to select a key.
type Prompter interface {
	Prompt(ctx context.Context) (string, error)
}

// ReaderPrompter asks on Out and reads one line from In.
type ReaderPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p ReaderPrompter) Prompt(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Out != nil {
		fmt.Fprint(p.Out, "Gemini API key: ")
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Store caches the one-time credential check of a session. It is explicit
// controller state so it can be reset between sessions and in tests.
type Store struct {
	mu       sync.Mutex
	sources  []Source
	prompter Prompter
	key      string
	verified bool
}

// NewStore consults sources in order; prompter may be nil when no
// interactive selection is possible.
func NewStore(prompter Prompter, sources ...Source) *Store {
	return &Store{sources: sources, prompter: prompter}
}

// Ensure returns the session key, selecting one on first use. Lack of a key
// is reported as domain.ErrCredentialUnavailable.
func (s *Store) Ensure(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verified {
		return s.key, nil
	}
	key, err := s.lookupLocked(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
	}
	if key == "" && s.prompter != nil {
		key, err = s.prompter.Prompt(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: prompt: %v", domain.ErrCredentialUnavailable, err)
		}
		key = strings.TrimSpace(key)
	}
	if key == "" {
		return "", fmt.Errorf("%w: no %s api key selected", domain.ErrCredentialUnavailable, ProviderGemini)
	}
	s.key = key
	s.verified = true
	return key, nil
}

// Select replaces the session key explicitly.
func (s *Store) Select(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.verified = true
	return nil
}

// Verified reports whether the session already holds a key.
func (s *Store) Verified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified
}

// Reset forgets the cached key.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = ""
	s.verified = false
}

func (s *Store) lookupLocked(ctx context.Context) (string, error) {
	for _, src := range s.sources {
		key, err := src.Lookup(ctx)
		if err != nil {
			return "", err
		}
		if key = strings.TrimSpace(key); key != "" {
			return key, nil
		}
	}
	return "", nil
}
