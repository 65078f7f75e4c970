package auth

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TokenStore holds the control tokens accepted by the HTTP API. Tokens live in
// a single file, one per line, optionally prefixed with a label:
//
//	# comment
//	kitchen: 3f9c1d...
//	5b2e77...
//
// The file is watched and reloaded shortly after it changes.
type TokenStore struct {
	file     string
	logger   *log.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu     sync.RWMutex
	tokens []labelledToken

	reloadMu    sync.Mutex
	reloadTimer *time.Timer
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
	closeErr    error
}

type labelledToken struct {
	label string
	value []byte
}

// NewTokenStore loads filePath and starts watching it. The parent directory is
// watched as well so that editors replacing the file are picked up.
func NewTokenStore(filePath string, debounce time.Duration, logger *log.Logger) (*TokenStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &TokenStore{
		file:     filepath.Clean(filePath),
		logger:   logger,
		watcher:  watcher,
		debounce: debounce,
		done:     make(chan struct{}),
	}

	if err := s.reload(); err != nil {
		watcher.Close()
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(s.file)); err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(s.file); err != nil {
		s.logger.Printf("token file not watched directly: %v", err)
	}

	s.wg.Add(1)
	go s.watch()

	return s, nil
}

// Close stops watching the token file.
func (s *TokenStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		s.reloadMu.Lock()
		if s.reloadTimer != nil {
			s.reloadTimer.Stop()
			s.reloadTimer = nil
		}
		s.reloadMu.Unlock()

		s.closeErr = s.watcher.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

// Authorize reports whether token is accepted and returns its label. Tokens
// without a label are reported as "anonymous".
func (s *TokenStore) Authorize(token string) (string, bool) {
	candidate := []byte(strings.TrimSpace(token))
	if len(candidate) == 0 {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if subtle.ConstantTimeCompare(candidate, t.value) == 1 {
			return t.label, true
		}
	}
	return "", false
}

// Len returns the number of loaded tokens.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func (s *TokenStore) watch() {
	defer s.wg.Done()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.file {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.scheduleReload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Printf("token watcher error: %v", err)
		case <-s.done:
			return
		}
	}
}

func (s *TokenStore) scheduleReload() {
	select {
	case <-s.done:
		return
	default:
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
	}
	s.reloadTimer = time.AfterFunc(s.debounce, func() {
		if err := s.reload(); err != nil {
			s.logger.Printf("token reload error: %v", err)
		}
	})
}

func (s *TokenStore) reload() error {
	data, err := os.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		s.replace(nil)
		s.logger.Printf("token file %s missing; control API locked", s.file)
		return nil
	}
	if err != nil {
		return err
	}

	tokens := parseTokens(data)
	s.replace(tokens)
	s.logger.Printf("loaded %d control tokens", len(tokens))
	return nil
}

func (s *TokenStore) replace(tokens []labelledToken) {
	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
}

func parseTokens(data []byte) []labelledToken {
	var tokens []labelledToken
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		label := "anonymous"
		value := line
		if name, rest, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(name) != "" && strings.TrimSpace(rest) != "" {
			label = strings.TrimSpace(name)
			value = strings.TrimSpace(rest)
		}

		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		tokens = append(tokens, labelledToken{label: label, value: []byte(value)})
	}
	return tokens
}
