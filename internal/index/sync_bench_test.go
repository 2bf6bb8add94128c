package index

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Aman-CERP/tfrag/internal/chunk"
	"github.com/Aman-CERP/tfrag/internal/embed"
	"github.com/Aman-CERP/tfrag/internal/manifest"
	"github.com/Aman-CERP/tfrag/internal/store"
)

func benchDocs(n int) map[string]string {
	docs := make(map[string]string, n)
	for i := range n {
		docs[fmt.Sprintf("aws/r/resource_%04d.md", i)] = fmt.Sprintf("# aws_resource_%d\n\n", i) +
			strings.Repeat("The bucket argument is optional. Changing it forces a new resource. ", 20)
	}
	return docs
}

func benchSync(b *testing.B, docs map[string]string) (*Synchronizer, *memSource) {
	b.Helper()
	coll, err := store.Open(context.Background(), store.Options{Collection: "bench"})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = coll.Close() })

	ch, err := chunk.New(500, 100)
	if err != nil {
		b.Fatal(err)
	}
	src := &memSource{docs: docs}
	s, err := NewSynchronizer(Dependencies{
		Loader:   src,
		Chunker:  ch,
		Embedder: embed.NewStaticEmbedder(),
		Store:    coll,
		Manifest: manifest.NewStore(filepath.Join(b.TempDir(), "state.json")),
	}, Options{})
	if err != nil {
		b.Fatal(err)
	}
	return s, src
}

// BenchmarkUpdate_NoChanges measures the scan and diff cost of an update
// over an already indexed tree.
func BenchmarkUpdate_NoChanges(b *testing.B) {
	for _, n := range []int{100, 1000} {
		b.Run(fmt.Sprintf("docs=%d", n), func(b *testing.B) {
			s, _ := benchSync(b, benchDocs(n))
			if _, err := s.Update(context.Background()); err != nil {
				b.Fatal(err)
			}
			for b.Loop() {
				if _, err := s.Update(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkUpdate_OneChanged re-embeds a single document per iteration.
func BenchmarkUpdate_OneChanged(b *testing.B) {
	docs := benchDocs(500)
	s, src := benchSync(b, docs)
	if _, err := s.Update(context.Background()); err != nil {
		b.Fatal(err)
	}

	i := 0
	for b.Loop() {
		i++
		src.docs["aws/r/resource_0000.md"] = fmt.Sprintf("# aws_resource_0\n\nrevision %d", i)
		if _, err := s.Update(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
