// Package retrieval implements an in-process hybrid document retrieval
// engine: approximate nearest-neighbor search over dense embeddings
// (HNSW, seeded and broadened by MinHash LSH candidates), lexical BM25
// scoring, metadata filtering, and a weighted fusion of all three into
// one ranked result set.
//
// A typical caller constructs an Engine with an Embedder and any tuning
// Options, builds it over a corpus, and then searches:
//
//	eng, err := retrieval.NewEngine(retrieval.WithEmbedder(myEmbedder))
//	if err != nil {
//		// ...
//	}
//	defer eng.Close()
//
//	report, err := eng.BuildIndexes(ctx, docs)
//	results, err := eng.Search(ctx, "python aws", 5, nil)
//
// Engine is safe for concurrent use: Search may run concurrently with
// itself and with AddDocument/UpdateDocument/DeleteDocument; mutating
// calls are serialized against each other and against BuildIndexes.
package retrieval
