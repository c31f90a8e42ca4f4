package driver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/veridoc/keygraph/pkg/types"
)

// Key prefixes for the badger layout. Every scope-tagged record lives under
// a prefix ending in the scope name plus a separator, so ClearScope maps to
// DropPrefix.
const (
	scopeMarkerPrefix = "scope\x00"
	fragmentPrefix    = "frag\x00"
	keywordPrefix     = "kw\x00"
	appearsPrefix     = "app\x00"
	reversePrefix     = "rev\x00"
	similarPrefix     = "sim\x00"
)

// BadgerStore is an embedded persistent GraphStore on BadgerDB. The graph is
// laid out as adjacency lists: forward AppearsIn lists per keyword, reverse
// lists per fragment, and a weighted neighbor map per keyword for SimilarTo.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// NewBadgerStore opens (or creates) a badger-backed store at path. With
// inMemory set, nothing touches disk.
func NewBadgerStore(path string, inMemory bool) (*BadgerStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}

	logger := slog.Default().With("component", "badger")
	opts = opts.WithLogger(&badgerLoggerAdapter{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func scopeMarkerKey(scope string) []byte {
	return []byte(scopeMarkerPrefix + scope)
}

func scopedPrefix(prefix, scope string) []byte {
	return []byte(prefix + scope + "\x00")
}

func fragmentKey(scope string, id int) []byte {
	buf := scopedPrefix(fragmentPrefix, scope)
	out := make([]byte, len(buf)+8)
	copy(out, buf)
	binary.BigEndian.PutUint64(out[len(buf):], uint64(id))
	return out
}

func reverseKey(scope string, id int) []byte {
	buf := scopedPrefix(reversePrefix, scope)
	out := make([]byte, len(buf)+8)
	copy(out, buf)
	binary.BigEndian.PutUint64(out[len(buf):], uint64(id))
	return out
}

func keywordKey(scope, name string) []byte {
	return append(scopedPrefix(keywordPrefix, scope), name...)
}

func appearsKey(scope, name string) []byte {
	return append(scopedPrefix(appearsPrefix, scope), name...)
}

func similarKey(scope, name string) []byte {
	return append(scopedPrefix(similarPrefix, scope), name...)
}

// getJSON loads and decodes the value at key into out. Missing keys leave
// out untouched and return false.
func getJSON(txn *badger.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// ClearScope drops every record under the scope's prefixes.
func (b *BadgerStore) ClearScope(ctx context.Context, scope string) error {
	prefixes := [][]byte{
		scopedPrefix(fragmentPrefix, scope),
		scopedPrefix(keywordPrefix, scope),
		scopedPrefix(appearsPrefix, scope),
		scopedPrefix(reversePrefix, scope),
		scopedPrefix(similarPrefix, scope),
	}
	if err := b.db.DropPrefix(prefixes...); err != nil {
		return fmt.Errorf("failed to clear scope %q: %w", scope, err)
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(scopeMarkerKey(scope))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear scope marker %q: %w", scope, err)
	}
	return nil
}

func (b *BadgerStore) markScope(txn *badger.Txn, scope string) error {
	return txn.Set(scopeMarkerKey(scope), nil)
}

// UpsertFragments creates or updates fragment nodes.
func (b *BadgerStore) UpsertFragments(ctx context.Context, scope string, fragments []*types.Fragment) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := b.markScope(txn, scope); err != nil {
			return err
		}
		for _, f := range fragments {
			cp := *f
			cp.Scope = scope
			if err := setJSON(txn, fragmentKey(scope, f.ID), &cp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert fragments: %w", err)
	}
	return nil
}

// UpsertKeywords creates or updates keyword nodes.
func (b *BadgerStore) UpsertKeywords(ctx context.Context, scope string, keywords []*types.Keyword) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := b.markScope(txn, scope); err != nil {
			return err
		}
		for _, k := range keywords {
			cp := *k
			cp.Scope = scope
			if err := setJSON(txn, keywordKey(scope, k.Name), &cp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert keywords: %w", err)
	}
	return nil
}

// UpsertAppearsIn merges edges into the forward and reverse adjacency lists.
func (b *BadgerStore) UpsertAppearsIn(ctx context.Context, scope string, edges []types.AppearsIn) error {
	// Group first so each adjacency list is rewritten once.
	forward := make(map[string][]int)
	reverse := make(map[int][]string)
	for _, e := range edges {
		forward[e.Keyword] = append(forward[e.Keyword], e.FragmentID)
		reverse[e.FragmentID] = append(reverse[e.FragmentID], e.Keyword)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		if err := b.markScope(txn, scope); err != nil {
			return err
		}
		for kw, ids := range forward {
			var existing []int
			if _, err := getJSON(txn, appearsKey(scope, kw), &existing); err != nil {
				return err
			}
			if err := setJSON(txn, appearsKey(scope, kw), mergeInts(existing, ids)); err != nil {
				return err
			}
		}
		for id, kws := range reverse {
			var existing []string
			if _, err := getJSON(txn, reverseKey(scope, id), &existing); err != nil {
				return err
			}
			if err := setJSON(txn, reverseKey(scope, id), mergeStrings(existing, kws)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert appears-in edges: %w", err)
	}
	return nil
}

// UpsertSimilarTo merges symmetric weighted edges into both endpoints'
// neighbor maps.
func (b *BadgerStore) UpsertSimilarTo(ctx context.Context, scope string, edges []types.SimilarTo) error {
	grouped := make(map[string]map[string]float32)
	add := func(from, to string, w float32) {
		if grouped[from] == nil {
			grouped[from] = make(map[string]float32)
		}
		grouped[from][to] = w
	}
	for _, e := range edges {
		add(e.Source, e.Target, e.Weight)
		add(e.Target, e.Source, e.Weight)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		if err := b.markScope(txn, scope); err != nil {
			return err
		}
		for kw, neighbors := range grouped {
			existing := make(map[string]float32)
			if _, err := getJSON(txn, similarKey(scope, kw), &existing); err != nil {
				return err
			}
			for to, w := range neighbors {
				existing[to] = w
			}
			if err := setJSON(txn, similarKey(scope, kw), existing); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert similar-to edges: %w", err)
	}
	return nil
}

// ScopeKeywords returns every keyword node in the scope ordered by name.
func (b *BadgerStore) ScopeKeywords(ctx context.Context, scope string) ([]*types.Keyword, error) {
	var out []*types.Keyword
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := scopedPrefix(keywordPrefix, scope)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var k types.Keyword
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &k)
			})
			if err != nil {
				return err
			}
			out = append(out, &k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *BadgerStore) fragmentByID(txn *badger.Txn, scope string, id int) (*types.Fragment, error) {
	var f types.Fragment
	found, err := getJSON(txn, fragmentKey(scope, id), &f)
	if err != nil || !found {
		return nil, err
	}
	return &f, nil
}

// FragmentScores counts distinct matched keywords per reachable fragment.
func (b *BadgerStore) FragmentScores(ctx context.Context, scope string, matched []string) ([]ScoredFragment, error) {
	if len(matched) == 0 {
		return nil, nil
	}
	var out []ScoredFragment
	err := b.db.View(func(txn *badger.Txn) error {
		counts := make(map[int]int)
		seen := make(map[string]struct{}, len(matched))
		for _, kw := range matched {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			var ids []int
			if _, err := getJSON(txn, appearsKey(scope, kw), &ids); err != nil {
				return err
			}
			for _, id := range ids {
				counts[id]++
			}
		}
		for id, score := range counts {
			f, err := b.fragmentByID(txn, scope, id)
			if err != nil {
				return err
			}
			if f == nil {
				continue
			}
			out = append(out, ScoredFragment{Fragment: f, Score: score})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score fragments: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fragment.ID < out[j].Fragment.ID })
	return out, nil
}

// NeighborFragments unions the shared-keyword and similar-keyword relation
// compositions over the frontier.
func (b *BadgerStore) NeighborFragments(ctx context.Context, scope string, frontier []int) ([]*types.Fragment, error) {
	if len(frontier) == 0 {
		return nil, nil
	}
	var out []*types.Fragment
	err := b.db.View(func(txn *badger.Txn) error {
		found := make(map[int]struct{})
		collect := func(kw string) error {
			var ids []int
			if _, err := getJSON(txn, appearsKey(scope, kw), &ids); err != nil {
				return err
			}
			for _, id := range ids {
				found[id] = struct{}{}
			}
			return nil
		}

		for _, id := range frontier {
			var kws []string
			if _, err := getJSON(txn, reverseKey(scope, id), &kws); err != nil {
				return err
			}
			for _, kw := range kws {
				if err := collect(kw); err != nil {
					return err
				}
				neighbors := make(map[string]float32)
				if _, err := getJSON(txn, similarKey(scope, kw), &neighbors); err != nil {
					return err
				}
				for sim := range neighbors {
					if err := collect(sim); err != nil {
						return err
					}
				}
			}
		}

		for id := range found {
			f, err := b.fragmentByID(txn, scope, id)
			if err != nil {
				return err
			}
			if f != nil {
				out = append(out, f)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand frontier: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ScopeStats reports node and edge counts for a scope.
func (b *BadgerStore) ScopeStats(ctx context.Context, scope string) (*ScopeStats, error) {
	stats := &ScopeStats{Scope: scope, CollectedAt: time.Now()}
	err := b.db.View(func(txn *badger.Txn) error {
		countKeys := func(prefix []byte) int64 {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
			defer it.Close()
			var n int64
			for it.Rewind(); it.Valid(); it.Next() {
				n++
			}
			return n
		}
		stats.Fragments = countKeys(scopedPrefix(fragmentPrefix, scope))
		stats.Keywords = countKeys(scopedPrefix(keywordPrefix, scope))

		it := txn.NewIterator(badger.IteratorOptions{Prefix: scopedPrefix(appearsPrefix, scope), PrefetchValues: true})
		for it.Rewind(); it.Valid(); it.Next() {
			var ids []int
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &ids) }); err != nil {
				it.Close()
				return err
			}
			stats.AppearsIn += int64(len(ids))
		}
		it.Close()

		var directed int64
		it = txn.NewIterator(badger.IteratorOptions{Prefix: scopedPrefix(similarPrefix, scope), PrefetchValues: true})
		for it.Rewind(); it.Valid(); it.Next() {
			neighbors := make(map[string]float32)
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &neighbors) }); err != nil {
				it.Close()
				return err
			}
			directed += int64(len(neighbors))
		}
		it.Close()
		stats.SimilarTo = directed / 2
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return stats, nil
}

// CreateIndices is a no-op: badger keys are the index.
func (b *BadgerStore) CreateIndices(ctx context.Context) error {
	return nil
}

// ListScopes returns the scopes present in the store, sorted.
func (b *BadgerStore) ListScopes(ctx context.Context) ([]string, error) {
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(scopeMarkerPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Provider returns the backend type.
func (b *BadgerStore) Provider() GraphProvider {
	return GraphProviderBadger
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func mergeInts(existing, add []int) []int {
	seen := make(map[int]struct{}, len(existing)+len(add))
	out := make([]int, 0, len(existing)+len(add))
	for _, lists := range [][]int{existing, add} {
		for _, v := range lists {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func mergeStrings(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, lists := range [][]string{existing, add} {
		for _, v := range lists {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
