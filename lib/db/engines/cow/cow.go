package cow

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/db/util"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum   = "DTRIE\x00\x00\x00" // File format identifier
	cowVersion = 1                   // File format version
	infoSample = 1000                // Entries sampled by GetInfo
)

// --------------------------------------------------------------------------
// Core COW database structure
// --------------------------------------------------------------------------

// cowImpl implements db.PathDB as a persistent trie with an atomically swapped root.
//
// Readers load the current snapshot with one atomic operation and never lock. Writers are
// serialized by writeMu, copy the nodes on the path they change and publish the new root
// with an atomic store. A write that fails half-way never becomes visible.
type cowImpl struct {
	current     atomic.Pointer[snapshot]
	writeMu     sync.Mutex
	currIndex   atomic.Uint64 // Highest write index seen
	openCursors atomic.Int64
	keysOnly    bool
}

// DBOptions configures the cowImpl behavior during initialization
type DBOptions struct {
	KeysOnly bool // Store paths only, payloads are dropped
}

// DefaultOptions returns the default cowImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		KeysOnly: false,
	}
}

// NewCowDB creates a new, empty database with the specified options (optional).
func NewCowDB(opts *DBOptions) db.PathDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	d := &cowImpl{keysOnly: opts.KeysOnly}
	d.current.Store(d.emptySnapshot(0))
	return d
}

func (d *cowImpl) emptySnapshot(version uint64) *snapshot {
	return &snapshot{
		root:        &node{},
		version:     version,
		keysOnly:    d.keysOnly,
		openCursors: &d.openCursors,
	}
}

// publish makes the trie below root the current snapshot.
//
// Thread-safety: must be called with writeMu held.
func (d *cowImpl) publish(prev *snapshot, root *node, size int, writeIndex uint64) {
	d.SetWriteIdx(writeIndex)
	d.current.Store(&snapshot{
		root:        root,
		size:        size,
		version:     max(prev.version, writeIndex),
		keysOnly:    d.keysOnly,
		openCursors: &d.openCursors,
	})
}

// --------------------------------------------------------------------------
// PathDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert stores value under path. The path and the value are copied.
//
// Thread-safety: Writers are serialized, readers are never blocked.
func (d *cowImpl) Insert(path token.Path, value []byte, writeIndex uint64) db.Outcome {
	var stored []byte
	if !d.keysOnly && len(value) > 0 {
		stored = make([]byte, len(value))
		copy(stored, value)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	prev := d.current.Load()
	root, out := insertAt(prev.root, path.Clone(), stored)
	size := prev.size
	if out == db.OutcomeInserted {
		size++
	}
	d.publish(prev, root, size, writeIndex)
	return out
}

// Delete removes path. Childless ancestors are pruned and single-child chains merged.
//
// Thread-safety: Writers are serialized, readers are never blocked.
func (d *cowImpl) Delete(path token.Path, writeIndex uint64) db.Outcome {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	prev := d.current.Load()
	root, removed := deleteAt(prev.root, path)
	if !removed {
		d.SetWriteIdx(writeIndex)
		return db.OutcomeNotFound
	}
	d.publish(prev, root, prev.size-1, writeIndex)
	return db.OutcomeRemoved
}

// Clear replaces the content with an empty trie. Open cursors keep reading their snapshot.
func (d *cowImpl) Clear(writeIndex uint64) int {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	prev := d.current.Load()
	d.publish(prev, &node{}, 0, writeIndex)
	return prev.size
}

// --------------------------------------------------------------------------
// PathDB Interface Methods - Query Operations
// --------------------------------------------------------------------------

// Lookup returns a copy of the payload stored for path.
//
// Thread-safety: This method is lock-free.
func (d *cowImpl) Lookup(path token.Path) ([]byte, bool) {
	return d.current.Load().Lookup(path)
}

// Snapshot returns the current immutable view.
//
// Thread-safety: This method is lock-free.
func (d *cowImpl) Snapshot() db.Snapshot {
	return d.current.Load()
}

// --------------------------------------------------------------------------
// PathDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database. Sizes are estimated from a sample of the
// first entries in symbol order.
func (d *cowImpl) GetInfo() db.DatabaseInfo {
	snap := d.current.Load()

	histogram := util.NewSizeHistogram()
	var pathLens []float64

	cur := snap.Prefix(context.Background(), nil)
	for len(pathLens) < infoSample && cur.Next() {
		e := cur.Entry()
		pathBytes := len(e.Path.AppendBinary(nil))
		histogram.AddSample(pathBytes + len(e.Value))
		pathLens = append(pathLens, float64(len(e.Path)))
	}
	_ = cur.Close()

	nodes, branching := countNodes(snap.root, infoSample)

	// per entry: sampled bytes plus the node header
	nodeOverhead := 48
	medianSize := histogram.MedianEstimate() + nodeOverhead
	avgSize := histogram.AverageSize() + nodeOverhead

	// weighted estimate (60% median, 40% average)
	sizeBytes := snap.size * (medianSize*60 + avgSize*40) / 100

	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		SnapshotVersion   uint64                 `json:"snapshot_version"`
		OpenCursors       int64                  `json:"open_cursors"`
		KeysOnly          bool                   `json:"keys_only"`
		SampledNodes      int                    `json:"sampled_nodes"`
		PathLength        util.Stats             `json:"path_length"`
		Branching         util.DistributionStats `json:"branching"`
		Info              string                 `json:"info"`
	}{
		CurrentWriteIndex: d.currIndex.Load(),
		SnapshotVersion:   snap.version,
		OpenCursors:       d.openCursors.Load(),
		KeysOnly:          d.keysOnly,
		SampledNodes:      nodes,
		PathLength:        util.NewStats(pathLens),
		Branching:         util.NewDistributionStats(branching),
		Info:              "SizeBytes and the statistics are estimated from a sample of the database.",
	}

	var features []db.Feature
	for _, f := range db.AllFeatures {
		if d.SupportsFeature(f) {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Entries:           snap.size,
		DbType:            db.ImplCow,
		SupportedFeatures: features,
		Metadata:          meta,
	}
}

// countNodes visits up to limit nodes breadth-first and returns the number of visited nodes
// and the child count of every visited inner node.
func countNodes(root *node, limit int) (int, []float64) {
	queue := []*node{root}
	visited := 0
	var branching []float64
	for len(queue) > 0 && visited < limit {
		n := queue[0]
		queue = queue[1:]
		visited++
		if len(n.children) > 0 {
			branching = append(branching, float64(len(n.children)))
		}
		queue = append(queue, n.children...)
	}
	return visited, branching
}

// SupportsFeature checks if this implementation supports a specific PathDB feature
func (d *cowImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureInsert |
		db.FeatureDelete |
		db.FeatureLookup |
		db.FeaturePrefix |
		db.FeatureMatch |
		db.FeatureClear |
		db.FeatureSave |
		db.FeatureLoad |
		db.FeatureExplore
	if !d.keysOnly {
		supportedFeatures |= db.FeaturePayload
	}
	return supportedFeatures&feature == feature
}

// Close drops the content of the database. Snapshots that are still referenced stay valid.
func (d *cowImpl) Close() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.current.Store(d.emptySnapshot(d.currIndex.Load()))
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes the current snapshot to w. Writers are not blocked while saving.
func (d *cowImpl) Save(w io.Writer) error {
	return writeSnapshot(w, d.current.Load())
}

// Load replaces the content of the database with the data read from r. The new trie is
// built aside and published in one step, readers never see a partially loaded database.
func (d *cowImpl) Load(r io.Reader) error {
	root, size, version, err := readSnapshot(r, d.keysOnly)
	if err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.SetWriteIdx(version)
	d.current.Store(&snapshot{
		root:        root,
		size:        size,
		version:     version,
		keysOnly:    d.keysOnly,
		openCursors: &d.openCursors,
	})
	return nil
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (d *cowImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := d.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if d.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (d *cowImpl) WriteIdx() uint64 {
	return d.currIndex.Load()
}
