package store

import "errors"

// ErrIndexUnavailable is the distinguishable "index missing / knn
// unsupported" error spec §4.A requires the vector half of the adapter to
// surface when the vector index is not ready, mapped from Qdrant's
// 404/"Not found: Collection" response.
var ErrIndexUnavailable = errors.New("store: vector index unavailable")

// ErrDocumentStoreUnavailable is returned by New when neither the keyword
// nor the vector store could be reached. The Retrieval Pipeline reports its
// own "not ready" condition with pipeline.ErrNotReady, not with this error.
var ErrDocumentStoreUnavailable = errors.New("store: document store unavailable")
