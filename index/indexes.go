package index

import "github.com/embertrace/engine/model"

// EventIndexes holds every timestamp-sorted partition maintained for events.
type EventIndexes struct {
	All         Timestamps
	Levels      [5]Timestamps
	Instances   map[model.InstanceKey]Timestamps
	Descendents map[model.SpanKey]Timestamps
	Attributes  map[string]map[string]Timestamps
}

// NewEventIndexes returns an empty set of event indexes.
func NewEventIndexes() *EventIndexes {
	return &EventIndexes{
		Instances:   make(map[model.InstanceKey]Timestamps),
		Descendents: make(map[model.SpanKey]Timestamps),
		Attributes:  make(map[string]map[string]Timestamps),
	}
}

// Insert records a newly ingested event's key against every applicable
// partition. ancestors lists every enclosing span key (innermost first);
// attrs is the event's fully resolved (ancestor-inherited) attribute view.
func (idx *EventIndexes) Insert(key model.Timestamp, instanceKey model.InstanceKey, level model.Level, ancestors []model.SpanKey, attrs map[string]string) {
	idx.All.Insert(key)
	idx.Levels[level].Insert(key)

	instSlice := idx.Instances[instanceKey]
	instSlice.Insert(key)
	idx.Instances[instanceKey] = instSlice

	for _, anc := range ancestors {
		s := idx.Descendents[anc]
		s.Insert(key)
		idx.Descendents[anc] = s
	}

	for name, value := range attrs {
		byValue, ok := idx.Attributes[name]
		if !ok {
			byValue = make(map[string]Timestamps)
			idx.Attributes[name] = byValue
		}
		s := byValue[value]
		s.Insert(key)
		byValue[value] = s
	}
}

// SpanIndexes holds every timestamp-sorted partition maintained for spans,
// plus the stratified duration index.
type SpanIndexes struct {
	All         Timestamps
	Levels      [5]Timestamps
	Instances   map[model.InstanceKey]Timestamps
	Names       map[string]Timestamps
	Descendents map[model.SpanKey]Timestamps
	Roots       Timestamps
	Attributes  map[string]map[string]Timestamps
	Durations   *DurationIndex
}

// NewSpanIndexes returns an empty set of span indexes.
func NewSpanIndexes() *SpanIndexes {
	return &SpanIndexes{
		Instances:   make(map[model.InstanceKey]Timestamps),
		Names:       make(map[string]Timestamps),
		Descendents: make(map[model.SpanKey]Timestamps),
		Attributes:  make(map[string]map[string]Timestamps),
		Durations:   NewDurationIndex(),
	}
}

// Insert records a newly created span's key against every applicable
// partition, including the duration index's open band.
func (idx *SpanIndexes) Insert(key model.Timestamp, instanceKey model.InstanceKey, level model.Level, name string, isRoot bool, ancestors []model.SpanKey, attrs map[string]string) {
	idx.All.Insert(key)
	idx.Levels[level].Insert(key)

	instSlice := idx.Instances[instanceKey]
	instSlice.Insert(key)
	idx.Instances[instanceKey] = instSlice

	nameSlice := idx.Names[name]
	nameSlice.Insert(key)
	idx.Names[name] = nameSlice

	if isRoot {
		idx.Roots.Insert(key)
	}

	for _, anc := range ancestors {
		s := idx.Descendents[anc]
		s.Insert(key)
		idx.Descendents[anc] = s
	}

	for attrName, value := range attrs {
		byValue, ok := idx.Attributes[attrName]
		if !ok {
			byValue = make(map[string]Timestamps)
			idx.Attributes[attrName] = byValue
		}
		s := byValue[value]
		s.Insert(key)
		byValue[value] = s
	}

	idx.Durations.InsertOpen(key)
}

// IndexAttribute records one additional attribute value for an
// already-indexed span (used when a Update span event extends fields after
// creation, or to index attributes newly visible through an ancestor once a
// descendant is discovered).
func (idx *SpanIndexes) IndexAttribute(key model.Timestamp, name, value string) {
	byValue, ok := idx.Attributes[name]
	if !ok {
		byValue = make(map[string]Timestamps)
		idx.Attributes[name] = byValue
	}
	s := byValue[value]
	s.Insert(key)
	byValue[value] = s
}

// Close migrates a span from the open duration band to its final band.
func (idx *SpanIndexes) Close(key model.Timestamp, duration uint64) {
	idx.Durations.Close(key, duration)
}

// InstanceIndexes holds the timestamp-sorted partitions maintained for
// instances: the full ascending key list and per-attribute value indexes.
type InstanceIndexes struct {
	All        Timestamps
	Attributes map[string]map[string]Timestamps
}

// NewInstanceIndexes returns an empty set of instance indexes.
func NewInstanceIndexes() *InstanceIndexes {
	return &InstanceIndexes{Attributes: make(map[string]map[string]Timestamps)}
}

// Insert records a newly connected instance's key and attributes.
func (idx *InstanceIndexes) Insert(key model.Timestamp, attrs map[string]string) {
	idx.All.Insert(key)

	for name, value := range attrs {
		byValue, ok := idx.Attributes[name]
		if !ok {
			byValue = make(map[string]Timestamps)
			idx.Attributes[name] = byValue
		}
		s := byValue[value]
		s.Insert(key)
		byValue[value] = s
	}
}
