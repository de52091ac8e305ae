package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/coder/hnsw"
)

var (
	// ErrIndexNotFound means no index has been built for the user yet.
	ErrIndexNotFound = errors.New("index not found for user")
	// ErrIndexInconsistent means the graph and the label mapping disagree.
	// The index must be rebuilt before it can serve queries.
	ErrIndexInconsistent = errors.New("index and mapping are inconsistent")
)

// Normalize scales a vector to unit length so cosine distance behaves on
// embeddings of uneven magnitude. The epsilon keeps a zero vector finite.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum) + 1e-12
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Index pairs an HNSW graph with its label mapping. Graph labels are dense
// ints assigned at build time; the mapping resolves them back to chunk ids.
type Index struct {
	graph   *hnsw.Graph[int]
	mapping map[int]int
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	return g
}

// NewIndex returns an empty index. Searching it yields no matches.
func NewIndex() *Index {
	return &Index{graph: newGraph(), mapping: make(map[int]int)}
}

// Add inserts a vector under the next dense label and records its chunk id.
// Vectors must already be normalized.
func (ix *Index) Add(chunkID int, vec []float32) {
	label := len(ix.mapping)
	ix.graph.Add(hnsw.MakeNode(label, vec))
	ix.mapping[label] = chunkID
}

func (ix *Index) Len() int {
	return len(ix.mapping)
}

// Match is one nearest neighbor, identified by chunk id. Distance is cosine
// distance, smaller is closer.
type Match struct {
	ChunkID  int
	Distance float32
}

// Search returns up to topK nearest chunks, closest first. The search beam
// widens with topK so recall does not collapse for large result sets.
func (ix *Index) Search(query []float32, topK int) []Match {
	if topK <= 0 || ix.Len() == 0 {
		return nil
	}
	ix.graph.EfSearch = 10 * topK

	nodes := ix.graph.Search(query, topK)
	matches := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, Match{
			ChunkID:  ix.mapping[n.Key],
			Distance: hnsw.CosineDistance(query, n.Value),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches
}

// Store persists one index per user as two files: the exported graph and a
// JSON label mapping next to it.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) indexPath(userID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("hnsw_index_%s.bin", userID))
}

func (s *Store) mappingPath(userID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("mapping_%s.json", userID))
}

// Save writes both files atomically. The mapping lands last, so a crash
// mid-save leaves either the old pair or a graph whose mapping is stale;
// Load detects the latter as inconsistent.
func (s *Store) Save(userID string, ix *Index) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := writeAtomic(s.dir, s.indexPath(userID), func(f *os.File) error {
		return ix.graph.Export(f)
	}); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}

	data, err := json.Marshal(ix.mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := writeAtomic(s.dir, s.mappingPath(userID), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

// Load reads the user's index pair. A missing file is ErrIndexNotFound; a
// size mismatch between graph and mapping is ErrIndexInconsistent.
func (s *Store) Load(userID string) (*Index, error) {
	gf, err := os.Open(s.indexPath(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	defer gf.Close()

	graph := newGraph()
	if err := graph.Import(gf); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	raw, err := os.ReadFile(s.mappingPath(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	mapping := make(map[int]int)
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}

	if graph.Len() != len(mapping) {
		return nil, fmt.Errorf("%w: graph has %d nodes, mapping has %d entries",
			ErrIndexInconsistent, graph.Len(), len(mapping))
	}
	return &Index{graph: graph, mapping: mapping}, nil
}

func writeAtomic(dir, final string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(dir, filepath.Base(final)+".tmp")
	if err != nil {
		return err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
