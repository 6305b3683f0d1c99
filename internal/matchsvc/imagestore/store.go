package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWrite = errors.New("failed to store image")
	ErrRead  = errors.New("failed to read images")
)

const (
	imageExt    = ".png"
	tokenLength = 7
)

// Store persists uploaded profile images under generated names. Returned
// paths are usable as public URLs.
type Store interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	List(ctx context.Context) ([]string, error)
}

// fileName is "<unix millis>-<short token>.png". The token is not meant to be
// unique, only to make collisions within one millisecond unlikely.
func fileName(now time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), token, imageExt)
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}
