package cache

import (
	"testing"
	"time"

	"github.com/irouter/irouter/pkg/types"
)

func sampleResult(id string) *types.QueryResult {
	return &types.QueryResult{
		QueryID: id,
		Columns: []string{"region", "total"},
		Rows: [][]interface{}{
			{"us-east", float64(42)},
		},
		Backend: types.BackendDuckDB,
	}
}

func TestHitAndMissCounters(t *testing.T) {
	c := New(10, time.Minute, nil)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache must miss")
	}
	c.Put("a", "sales", sampleResult("q1"))
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if !got.FromCache {
		t.Error("cached result must be marked FromCache")
	}
	if got.QueryID != "q1" {
		t.Errorf("QueryID = %q, want q1", got.QueryID)
	}

	s := c.Stats()
	if s.Requests != 2 || s.Hits != 1 || s.Misses != 1 {
		t.Errorf("counters = %+v", s)
	}
	if s.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", s.HitRate)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2, time.Minute, nil)
	c.Put("a", "t", sampleResult("a"))
	c.Put("b", "t", sampleResult("b"))
	c.Put("c", "t", sampleResult("c")) // evicts a, the least recently used

	if _, ok := c.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should survive")
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", s.Evictions)
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New(2, time.Minute, nil)
	c.Put("a", "t", sampleResult("a"))
	c.Put("b", "t", sampleResult("b"))
	c.Get("a")                         // a becomes most recent
	c.Put("c", "t", sampleResult("c")) // evicts b

	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry must survive")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
}

func TestTTLExpirationIsNotEviction(t *testing.T) {
	c := New(10, time.Minute, nil)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Put("a", "t", sampleResult("a"))
	c.now = func() time.Time { return base.Add(2 * time.Minute) }

	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry must miss")
	}
	s := c.Stats()
	if s.Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", s.Expirations)
	}
	if s.Evictions != 0 {
		t.Errorf("Evictions = %d, want 0; expiry is not eviction", s.Evictions)
	}
	if s.Size != 0 {
		t.Errorf("expired entry must be removed, size = %d", s.Size)
	}
}

func TestTableInvalidation(t *testing.T) {
	c := New(10, time.Minute, nil)
	c.Put("a", "sales", sampleResult("a"))
	c.Put("b", "sales", sampleResult("b"))
	c.Put("c", "users", sampleResult("c"))

	if n := c.InvalidateTable("sales"); n != 2 {
		t.Errorf("InvalidateTable = %d, want 2", n)
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("other table's entries must survive")
	}
	if s := c.Stats(); s.Invalidations != 2 {
		t.Errorf("Invalidations = %d, want 2", s.Invalidations)
	}
}

func TestInvalidateByPredicate(t *testing.T) {
	c := New(10, time.Minute, nil)
	c.Put("a", "sales", sampleResult("a"))
	c.Put("b", "users", sampleResult("b"))

	n := c.Invalidate(func(key, table string) bool { return key == "b" })
	if n != 1 {
		t.Errorf("Invalidate = %d, want 1", n)
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("unmatched entry must survive")
	}
}

func TestInvalidateAll(t *testing.T) {
	c := New(10, time.Minute, nil)
	c.Put("a", "t1", sampleResult("a"))
	c.Put("b", "t2", sampleResult("b"))
	if n := c.InvalidateAll(); n != 2 {
		t.Errorf("InvalidateAll = %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestCorruptPayloadForcesMiss(t *testing.T) {
	c := New(10, time.Minute, nil)
	c.Put("a", "t", sampleResult("a"))

	c.mu.Lock()
	elem := c.entries["a"]
	elem.Value.(*entry).payload = []byte{0xff, 0x00, 0x01}
	c.mu.Unlock()

	if _, ok := c.Get("a"); ok {
		t.Fatal("corrupt entry must miss, never error")
	}
	if c.Len() != 0 {
		t.Error("corrupt entry must be dropped")
	}
}

func TestZeroCapacityStoresNothing(t *testing.T) {
	c := New(0, time.Minute, nil)
	c.Put("a", "t", sampleResult("a"))
	if c.Len() != 0 {
		t.Error("zero-capacity cache must not store")
	}
}

func TestPutOverwriteDoesNotGrow(t *testing.T) {
	c := New(2, time.Minute, nil)
	c.Put("a", "t", sampleResult("v1"))
	c.Put("a", "t", sampleResult("v2"))
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	got, ok := c.Get("a")
	if !ok || got.QueryID != "v2" {
		t.Errorf("overwrite must keep latest value, got %+v", got)
	}
	if s := c.Stats(); s.Evictions != 0 {
		t.Errorf("overwrite must not evict, got %d", s.Evictions)
	}
}

func TestFingerprintNormalization(t *testing.T) {
	schema := types.Schema{"sales": {"region": "VARCHAR"}}
	a := Fingerprint("SELECT *   FROM sales\n WHERE x = 1", types.BackendDuckDB, schema)
	b := Fingerprint("SELECT * FROM sales WHERE x = 1", types.BackendDuckDB, schema)
	if a != b {
		t.Error("whitespace differences must not change the fingerprint")
	}

	c := Fingerprint("SELECT * FROM sales WHERE x = 1", types.BackendSQLite, schema)
	if a == c {
		t.Error("backend must be part of the fingerprint")
	}

	d := Fingerprint("SELECT * FROM sales WHERE x = 1", types.BackendDuckDB,
		types.Schema{"sales": {"region": "TEXT"}})
	if a == d {
		t.Error("schema must be part of the fingerprint")
	}

	if len(a) != 32 {
		t.Errorf("fingerprint must be 128-bit hex, got %d chars", len(a))
	}
}
