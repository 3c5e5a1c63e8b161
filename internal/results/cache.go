package results

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const defaultExportLengthConstant = 80

// Entry records one completed task invocation.
type Entry struct {
	TaskName   string
	Key        string
	Values     map[string]any
	Result     any
	FinishedAt time.Time
}

// NamedResult pairs a task name with its latest result rendered as text.
type NamedResult struct {
	TaskName string
	Value    string
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of retained entries. Zero keeps every entry.
	MaxEntries int
	Clock      func() time.Time
}

// Cache memoizes task results keyed by task name and the exact values of every declared input.
type Cache struct {
	mutex      sync.RWMutex
	entries    []Entry
	index      map[string]Entry
	bounded    *lru.Cache[string, Entry]
	maxEntries int
	flights    singleflight.Group
	clock      func() time.Time
}

// ErrNegativeCapacity indicates a negative cache bound.
var ErrNegativeCapacity = errors.New("cache max entries cannot be negative")

// NewCache constructs a cache. Without MaxEntries the cache is unbounded and never evicts.
func NewCache(options Options) (*Cache, error) {
	if options.MaxEntries < 0 {
		return nil, ErrNegativeCapacity
	}
	cache := &Cache{
		maxEntries: options.MaxEntries,
		clock:      options.Clock,
	}
	if cache.clock == nil {
		cache.clock = time.Now
	}
	if resetError := cache.reset(); resetError != nil {
		return nil, resetError
	}
	return cache, nil
}

func (cache *Cache) reset() error {
	cache.entries = nil
	cache.index = nil
	cache.bounded = nil
	if cache.maxEntries > 0 {
		boundedIndex, creationError := lru.New[string, Entry](cache.maxEntries)
		if creationError != nil {
			return creationError
		}
		cache.bounded = boundedIndex
		return nil
	}
	cache.index = make(map[string]Entry)
	return nil
}

// Lookup returns the stored entry for the invocation. Values missing a mandatory input are never found.
func (cache *Cache) Lookup(task *taskgraph.Task, values map[string]any) (Entry, bool) {
	key, complete := Key(task, values)
	if !complete {
		return Entry{}, false
	}
	return cache.lookupKey(key)
}

func (cache *Cache) lookupKey(key string) (Entry, bool) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	if cache.bounded != nil {
		return cache.bounded.Get(key)
	}
	entry, found := cache.index[key]
	return entry, found
}

// Store records a completed invocation.
func (cache *Cache) Store(task *taskgraph.Task, values map[string]any, result any) (Entry, error) {
	key, complete := Key(task, values)
	if !complete {
		_, missing := task.Bind(values)
		return Entry{}, taskgraph.MissingInputError{TaskName: task.Name(), InputName: missing[0]}
	}
	return cache.storeKey(task, key, values, result), nil
}

func (cache *Cache) storeKey(task *taskgraph.Task, key string, values map[string]any, result any) Entry {
	arguments, _ := task.Bind(values)
	entry := Entry{
		TaskName:   task.Name(),
		Key:        key,
		Values:     arguments,
		Result:     result,
		FinishedAt: cache.clock(),
	}

	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.entries = append(cache.entries, entry)
	if cache.bounded != nil {
		cache.bounded.Add(key, entry)
		if overflow := len(cache.entries) - cache.maxEntries; overflow > 0 {
			cache.entries = append([]Entry(nil), cache.entries[overflow:]...)
		}
		return entry
	}
	cache.index[key] = entry
	return entry
}

// Do returns the stored entry for the invocation or computes and stores it. Concurrent callers
// with the same key share one computation, so compute runs at most once per key.
// The boolean reports whether the entry came from the cache rather than from this call's compute.
func (cache *Cache) Do(task *taskgraph.Task, values map[string]any, compute func() (any, error)) (Entry, bool, error) {
	key, complete := Key(task, values)
	if !complete {
		_, missing := task.Bind(values)
		return Entry{}, false, taskgraph.MissingInputError{TaskName: task.Name(), InputName: missing[0]}
	}
	if entry, found := cache.lookupKey(key); found {
		return entry, true, nil
	}

	computed := false
	sharedValue, flightError, _ := cache.flights.Do(key, func() (any, error) {
		if entry, found := cache.lookupKey(key); found {
			return entry, nil
		}
		computed = true
		result, computeError := compute()
		if computeError != nil {
			return nil, computeError
		}
		return cache.storeKey(task, key, values, result), nil
	})
	if flightError != nil {
		return Entry{}, false, flightError
	}
	return sharedValue.(Entry), !computed, nil
}

// Latest returns the most recently completed entry for the task.
func (cache *Cache) Latest(taskName string) (Entry, bool) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	for index := len(cache.entries) - 1; index >= 0; index-- {
		if cache.entries[index].TaskName == taskName {
			return cache.entries[index], true
		}
	}
	return Entry{}, false
}

// LatestResults returns the latest result of every task in completion order. Nil results and results
// whose text exceeds maxLength are left out; a non-positive maxLength applies the default of 80 characters.
func (cache *Cache) LatestResults(maxLength int) []NamedResult {
	if maxLength <= 0 {
		maxLength = defaultExportLengthConstant
	}
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()

	seen := make(map[string]struct{})
	reversed := make([]NamedResult, 0)
	for index := len(cache.entries) - 1; index >= 0; index-- {
		entry := cache.entries[index]
		if _, alreadySeen := seen[entry.TaskName]; alreadySeen {
			continue
		}
		seen[entry.TaskName] = struct{}{}
		if entry.Result == nil {
			continue
		}
		text := taskgraph.FormatValue(entry.Result)
		if len(text) > maxLength {
			continue
		}
		reversed = append(reversed, NamedResult{TaskName: entry.TaskName, Value: text})
	}

	ordered := make([]NamedResult, 0, len(reversed))
	for index := len(reversed) - 1; index >= 0; index-- {
		ordered = append(ordered, reversed[index])
	}
	return ordered
}

// Entries returns every retained entry in completion order.
func (cache *Cache) Entries() []Entry {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	return append([]Entry(nil), cache.entries...)
}

// Len returns the number of retained entries.
func (cache *Cache) Len() int {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	return len(cache.entries)
}

// Reset drops every entry.
func (cache *Cache) Reset() {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	_ = cache.reset()
}
