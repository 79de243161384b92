package counting

import "context"

// Counter produces the word count for a file's current on-disk content.
// Implementations may be slow (external tool startup plus file size) and
// must be safe for concurrent calls on different paths.
type Counter interface {
	Count(ctx context.Context, path string) (int, error)
}
