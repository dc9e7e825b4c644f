package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	opAdd    byte = 'A'
	opRemove byte = 'R'
)

// MemoryIndex is an in-memory vector index using brute-force inner product search.
// When opened with OpenMemoryIndex, every mutation is appended to a log next to the
// snapshot file and fsynced before it is applied, so acknowledged writes survive a crash.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	pos        map[string]int
	mu         sync.RWMutex

	path string
	log  *os.File
}

// NewMemoryIndex creates a non-persistent in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
		pos:        make(map[string]int),
	}, nil
}

// OpenMemoryIndex loads the snapshot at path, replays its append log and keeps the log
// open for further writes. Missing files yield an empty index.
func OpenMemoryIndex(path string, dimensions int) (*MemoryIndex, error) {
	m, err := NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	if err := m.Load(path); err != nil {
		return nil, err
	}
	if err := m.replayLog(logPath(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logPath(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open index log: %w", err)
	}
	m.path = path
	m.log = f
	return m, nil
}

func logPath(path string) string {
	return path + ".log"
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Add inserts vectors with the given IDs, replacing any existing vector for the same ID.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for i := range vectors {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.log != nil {
		var buf []byte
		for i, id := range ids {
			buf = appendEntry(buf, opAdd, id, vectors[i])
		}
		if err := m.writeLog(buf); err != nil {
			return err
		}
	}
	for i, id := range ids {
		m.put(id, vectors[i])
	}
	return nil
}

func (m *MemoryIndex) put(id string, v []float32) {
	vec := make([]float32, m.dimensions)
	copy(vec, v)
	if i, ok := m.pos[id]; ok {
		m.vectors[i] = vec
		return
	}
	m.pos[id] = len(m.ids)
	m.ids = append(m.ids, id)
	m.vectors = append(m.vectors, vec)
}

func (m *MemoryIndex) drop(id string) {
	i, ok := m.pos[id]
	if !ok {
		return
	}
	last := len(m.ids) - 1
	if i != last {
		m.ids[i] = m.ids[last]
		m.vectors[i] = m.vectors[last]
		m.pos[m.ids[i]] = i
	}
	m.ids = m.ids[:last]
	m.vectors = m.vectors[:last]
	delete(m.pos, id)
}

// Search returns the top-k vectors by cosine similarity, the same measure pgvector's <=>
// uses. Ties are broken by ID so results are deterministic.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	qn := L2Norm(query)
	scores := make([]*VectorResult, len(m.ids))
	for i, vec := range m.vectors {
		scores[i] = &VectorResult{ID: m.ids[i], Score: Cosine(query, vec, qn)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ID < scores[j].ID
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Remove deletes vectors by ID. Unknown IDs are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.log != nil {
		var buf []byte
		for _, id := range ids {
			buf = appendEntry(buf, opRemove, id, nil)
		}
		if err := m.writeLog(buf); err != nil {
			return err
		}
	}
	for _, id := range ids {
		m.drop(id)
	}
	return nil
}

// Reset removes every vector and, when persistent, rewrites an empty snapshot.
func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = make([]string, 0)
	m.vectors = make([][]float32, 0)
	m.pos = make(map[string]int)
	if m.log != nil {
		return m.compactLocked()
	}
	return nil
}

// IDs returns every stored ID in no particular order.
func (m *MemoryIndex) IDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out, nil
}

// Count returns the number of vectors in the index.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	return m.Size(), nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Compact writes a fresh snapshot and truncates the append log.
func (m *MemoryIndex) Compact() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.log == nil {
		return nil
	}
	return m.compactLocked()
}

func (m *MemoryIndex) compactLocked() error {
	if err := m.saveLocked(m.path); err != nil {
		return err
	}
	if err := m.log.Truncate(0); err != nil {
		return fmt.Errorf("truncate index log: %w", err)
	}
	return m.log.Sync()
}

// Close compacts a persistent index and releases its log file.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.log == nil {
		return nil
	}
	err := m.compactLocked()
	if cerr := m.log.Close(); err == nil {
		err = cerr
	}
	m.log = nil
	return err
}

func (m *MemoryIndex) writeLog(buf []byte) error {
	if _, err := m.log.Write(buf); err != nil {
		return fmt.Errorf("append index log: %w", err)
	}
	if err := m.log.Sync(); err != nil {
		return fmt.Errorf("sync index log: %w", err)
	}
	return nil
}

// appendEntry encodes one log entry: op (1), idLen (4), id, then the vector for adds.
func appendEntry(buf []byte, op byte, id string, vec []float32) []byte {
	buf = append(buf, op)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(id)))
	buf = append(buf, id...)
	if op == opAdd {
		buf = append(buf, float32SliceToBytes(vec)...)
	}
	return buf
}

// replayLog applies the log at path. A torn final entry from a crash mid-append is cut off.
func (m *MemoryIndex) replayLog(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index log: %w", err)
	}
	r := bufio.NewReader(f)
	var good int64
	vecBuf := make([]byte, m.dimensions*4)
loop:
	for {
		op, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("read index log: %w", err)
		}
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			break loop
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			break loop
		}
		n := int64(1 + 4 + idLen)
		switch op {
		case opAdd:
			if _, err := io.ReadFull(r, vecBuf); err != nil {
				break loop
			}
			m.put(string(id), bytesToFloat32Slice(vecBuf))
			n += int64(len(vecBuf))
		case opRemove:
			m.drop(string(id))
		default:
			_ = f.Close()
			return fmt.Errorf("corrupt index log entry at offset %d", good)
		}
		good += n
	}
	_ = f.Close()
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat index log: %w", err)
	}
	if info.Size() != good {
		if err := os.Truncate(path, good); err != nil {
			return fmt.Errorf("truncate torn index log: %w", err)
		}
	}
	return nil
}

// Save persists the index to path atomically. Directory is created if needed. Format: dimension (4), n (4),
// then per vector: idLen (4), id bytes, vector (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked(path)
}

func (m *MemoryIndex) saveLocked(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.writeSnapshot(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (m *MemoryIndex) writeSnapshot(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := io.WriteString(w, id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = make([]string, 0, n)
	m.vectors = make([][]float32, 0, n)
	m.pos = make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		m.put(string(idBytes), bytesToFloat32Slice(buf))
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
