// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package orset

import (
	"encoding/json"

	"github.com/luxfi/crdt/tag"
	"github.com/luxfi/crdt/utils/set"
)

// multimap maps a value to the set of tags recorded for it. Entries never hold
// an empty tag set.
type multimap[E comparable] map[E]set.Set[tag.Tag]

// put moves [tags] under [v]. The multimap takes ownership of [tags].
func (m multimap[E]) put(v E, tags set.Set[tag.Tag]) {
	if tags.Len() == 0 {
		return
	}
	if existing, ok := m[v]; ok {
		existing.Union(tags)
		return
	}
	m[v] = tags
}

// union adds copies of every entry of [other].
func (m multimap[E]) union(other multimap[E]) {
	for v, tags := range other {
		m.put(v, tags.Clone())
	}
}

// subtract removes every tag of [dead] from the matching entries and drops the
// entries left empty.
func (m multimap[E]) subtract(dead multimap[E]) {
	for v, live := range m {
		tombstoned, ok := dead[v]
		if !ok {
			continue
		}
		live.Difference(tombstoned)
		if live.Len() == 0 {
			delete(m, v)
		}
	}
}

func (m multimap[E]) clone() multimap[E] {
	c := make(multimap[E], len(m))
	c.union(m)
	return c
}

// tags returns a copy of the tags recorded for [v].
func (m multimap[E]) tags(v E) set.Set[tag.Tag] {
	return m[v].Clone()
}

func (m multimap[E]) tagCount() int {
	count := 0
	for _, tags := range m {
		count += tags.Len()
	}
	return count
}

// MarshalJSON encodes the multimap as an object of value to sorted tag list.
func (m multimap[E]) MarshalJSON() ([]byte, error) {
	encoded := make(map[E][]tag.Tag, len(m))
	for v, tags := range m {
		list := tags.List()
		tag.Sort(list)
		encoded[v] = list
	}
	return json.Marshal(encoded)
}

func (m *multimap[E]) UnmarshalJSON(b []byte) error {
	var decoded map[E][]tag.Tag
	if err := json.Unmarshal(b, &decoded); err != nil {
		return err
	}
	*m = make(multimap[E], len(decoded))
	for v, tags := range decoded {
		m.put(v, set.Of(tags...))
	}
	return nil
}
