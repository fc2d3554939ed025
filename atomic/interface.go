/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package atomic

import (
	"sync"
)

// Map is a concurrent-safe key -> any store, used for the handler and
// validation-error tables this repository builds on sync.Map rather than
// a plain map guarded by a mutex. Only the operations this repository's
// Registry and error pool actually call are exposed: Swap/CompareAndSwap/
// CompareAndDelete/LoadOrStore have no caller here and were dropped.
type Map[K comparable] interface {
	// Load returns the value stored for key, or ok=false if absent.
	//
	// Example:
	//  m := NewMapAny[string]()
	//  m.Store("key", "value")
	//  val, ok := m.Load("key")
	//  fmt.Println(val, ok) // prints "value true"
	Load(key K) (value any, ok bool)
	// Store atomically stores value for key, overwriting any prior value.
	Store(key K, value any)

	// Delete atomically removes the value stored for key, if any.
	Delete(key K)

	// Range calls f for each key in the underlying store, in an
	// unspecified order, stopping early if f returns false. An entry whose
	// key does not pass Cast[K] (which includes K's zero value) is deleted
	// instead of being passed to f.
	Range(f func(key K, value any) bool)
}

// MapTyped wraps Map with a typed API: Load/Store/Range work in V
// directly instead of any, and Range auto-evicts any entry whose stored
// value does not pass Cast[V]. Cast reports false for the zero value, so
// an entry holding V's zero value (or keyed by K's zero value) is evicted
// by Range as well.
type MapTyped[K comparable, V any] interface {
	// Load returns the value stored for key, or ok=false if absent or if
	// the stored value is V's zero value.
	Load(key K) (value V, ok bool)
	// Store atomically stores value for key, overwriting any prior value.
	Store(key K, value V)

	// Delete atomically removes the value stored for key, if any.
	Delete(key K)

	// Range calls f for each key in the underlying store, in an
	// unspecified order, stopping early if f returns false.
	Range(f func(key K, value V) bool)
}

// NewMapAny returns a new Map with the given key type. It uses a sync.Map as the underlying store.
//
// Example:
//
//	m := NewMapAny[int]()
//	// m is a Map with key type int and underlying store sync.Map{}.
func NewMapAny[K comparable]() Map[K] {
	return &ma[K]{
		m: sync.Map{},
	}
}

// NewMapTyped returns a new Map with the given key type and value type.
// It uses a sync.Map as the underlying store.
//
// Example:
//
//	m := NewMapTyped[int, string]()
//	// m is a Map with key type int and value type string, and underlying store sync.Map{}.
func NewMapTyped[K comparable, V any]() MapTyped[K, V] {
	return &mt[K, V]{
		m: NewMapAny[K](),
	}
}
