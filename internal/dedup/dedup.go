package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"MetalsMonitor/internal/domain"
)

// Identity derives the stable key recognizing the same article across runs.
// Two articles with equal (title, source) pairs are the same article. The
// hash is sha256 so the key never depends on process state or platform.
func Identity(title, source string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", title, source)))
	return hex.EncodeToString(sum[:])
}

// Filter returns the order-preserving subset of batch whose identities are
// neither in existing nor seen earlier within the batch itself. It has no
// side effects; merging admitted articles into the store is the caller's
// concern.
func Filter(existing map[string]struct{}, batch []domain.Article) []domain.Article {
	admitted := make([]domain.Article, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))

	for _, article := range batch {
		id := article.Identity
		if id == "" {
			id = Identity(article.Title, article.Source)
		}
		if _, ok := existing[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		admitted = append(admitted, article)
	}

	return admitted
}
