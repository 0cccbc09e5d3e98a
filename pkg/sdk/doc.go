// Package grounder provides an in-process Go client for grounding free-text
// keywords to literal column values stored in MinHash-LSH shard catalogs.
//
// A catalog is a set of shard pairs under {base}/preprocessed/. Build them
// with WriteShard, then resolve keywords against them:
//
//	client, _ := grounder.New(ctx, grounder.WithBaseDir("/data"))
//	defer client.Close()
//
//	_ = client.WriteShard("retail", 0, []grounder.Entry{
//	    {Table: "orders", Column: "status", Value: "Shipped"},
//	    {Table: "orders", Column: "status", Value: "Cancelled"},
//	})
//	res, _ := client.Resolve(ctx, "retail", []string{"shiped"})
//	// res.Values["orders"]["status"] == []string{"Shipped"}
//
// Without an Embedder the semantic re-ranking stage is skipped and lexical
// survivors are kept. WithEmbedder enables cosine re-ranking; WithMemoryCache
// or WithRedisCache put an embedding cache in front of it.
//
// Column-name matching is available through MatchColumns:
//
//	matches, _ := client.MatchColumns(ctx, "order status", grounder.Schema{
//	    "orders": {"order_id", "status"},
//	}, "")
package grounder
