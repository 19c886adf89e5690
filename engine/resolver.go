package engine

import "github.com/embertrace/engine/model"

// InstanceKey resolves an external instance id to its internal key. An
// unknown id reports ok=false; Build then lowers the filter to a sentinel
// that matches nothing, so a query never fails on an unknown id.
func (e *Engine) InstanceKey(id model.InstanceID) (model.InstanceKey, bool) {
	key, ok := e.instanceKeys[id]
	return key, ok
}

// SpanKey resolves an external (instance id, span id) pair to its internal
// key.
func (e *Engine) SpanKey(id model.FullSpanID) (model.SpanKey, bool) {
	key, ok := e.spanKeysByFullID[id]
	return key, ok
}
