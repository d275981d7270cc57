package firestore

import (
	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
)

// pageWindow trims a lookahead query result down to the requested page size.
// List queries fetch limit+1 documents; when the extra document came back,
// there is a further page and the next-page token must reference the last
// document of the returned page, so that StartAfter resumes at the first
// document the caller has not seen yet.
func pageWindow[T any](docs []pfirestore.Document[T], limit int) ([]pfirestore.Document[T], *pfirestore.Document[T]) {
	if limit <= 0 || len(docs) <= limit {
		return docs, nil
	}
	page := docs[:limit]
	return page, &page[limit-1]
}
