package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// LocalStore writes images into a directory that is served under a public
// prefix, e.g. public/profiles served at /profiles.
type LocalStore struct {
	dir    string
	prefix string
	now    func() time.Time
}

func NewLocalStore(dir, prefix string) *LocalStore {
	return &LocalStore{dir: dir, prefix: prefix, now: time.Now}
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Prefix() string {
	return s.prefix
}

func (s *LocalStore) Save(_ context.Context, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrWrite, s.dir, err)
	}

	name := fileName(s.now())
	path := filepath.Join(s.dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	// a partial file must not show up in List
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	log.Infof("stored image %s", name)
	return joinURL(s.prefix, name), nil
}

// List returns the public paths of every stored file, creating the
// directory first if needed.
func (s *LocalStore) List(_ context.Context) ([]string, error) {
	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrRead, s.dir, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, joinURL(s.prefix, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
