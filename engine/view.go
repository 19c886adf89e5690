package engine

import (
	"strconv"

	"github.com/embertrace/engine/model"
)

func (e *Engine) instanceView(inst *model.Instance) model.InstanceView {
	attrs := make([]model.AttributeView, 0, len(inst.Fields))
	for name, value := range inst.Fields {
		attrs = append(attrs, model.AttributeView{
			Name:  name,
			Value: value,
			Kind:  model.AttributeKindView{Kind: "instance", InstanceID: inst.ID},
		})
	}
	return model.InstanceView{
		ID:             strconv.FormatUint(uint64(inst.ID), 10),
		ConnectedAt:    inst.ConnectedAt,
		DisconnectedAt: inst.DisconnectedAt,
		Attributes:     attrs,
	}
}

func (e *Engine) spanFullID(span *model.Span) model.FullSpanID {
	return model.FullSpanID{InstanceID: e.instanceOf(span.InstanceKey), SpanID: span.ID}
}

func (e *Engine) ancestorViews(chain []model.SpanKey) []model.AncestorView {
	out := make([]model.AncestorView, 0, len(chain))
	for _, key := range chain {
		anc := e.spansByKey[key]
		if anc == nil {
			continue
		}
		out = append(out, model.AncestorView{ID: e.spanFullID(anc).String(), Name: anc.Name})
	}
	return out
}

func (e *Engine) spanView(span *model.Span) model.SpanView {
	chain := e.ancestors.SpanChain(span.Key())
	resolved := make(map[string]string, len(span.Fields))
	for k, v := range span.Fields {
		resolved[k] = v
	}

	attrs := make([]model.AttributeView, 0, len(resolved))
	fullID := e.spanFullID(span)
	for name, value := range span.Fields {
		attrs = append(attrs, model.AttributeView{
			Name: name, Value: value,
			Kind: model.AttributeKindView{Kind: "span", SpanID: &fullID, InstanceID: e.instanceOf(span.InstanceKey)},
		})
	}
	for _, ancKey := range chain {
		anc := e.spansByKey[ancKey]
		if anc == nil {
			continue
		}
		ancFullID := e.spanFullID(anc)
		for name, value := range anc.Fields {
			if _, ownShadowed := span.Fields[name]; ownShadowed {
				continue
			}
			attrs = append(attrs, model.AttributeView{
				Name: name, Value: value,
				Kind: model.AttributeKindView{Kind: "span", SpanID: &ancFullID, InstanceID: e.instanceOf(anc.InstanceKey)},
			})
		}
	}

	return model.SpanView{
		ID:         fullID.String(),
		Ancestors:  e.ancestorViews(chain),
		CreatedAt:  span.CreatedAt,
		ClosedAt:   span.ClosedAt,
		Target:     span.Target,
		Name:       span.Name,
		Level:      int32(span.Level),
		File:       model.FormatFile(span.FileName, span.FileLine),
		Attributes: attrs,
	}
}

func (e *Engine) eventView(ev *model.Event) model.EventView {
	chain := e.ancestors.EventChain(ev.Key())

	attrs := make([]model.AttributeView, 0, len(ev.Fields))
	for name, value := range ev.Fields {
		attrs = append(attrs, model.AttributeView{
			Name: name, Value: value,
			Kind: model.AttributeKindView{Kind: "inherent", InstanceID: e.instanceOf(ev.InstanceKey)},
		})
	}
	for _, ancKey := range chain {
		anc := e.spansByKey[ancKey]
		if anc == nil {
			continue
		}
		ancFullID := e.spanFullID(anc)
		for name, value := range anc.Fields {
			if _, ownShadowed := ev.Fields[name]; ownShadowed {
				continue
			}
			attrs = append(attrs, model.AttributeView{
				Name: name, Value: value,
				Kind: model.AttributeKindView{Kind: "span", SpanID: &ancFullID, InstanceID: e.instanceOf(anc.InstanceKey)},
			})
		}
	}

	return model.EventView{
		InstanceID: strconv.FormatUint(uint64(e.instanceOf(ev.InstanceKey)), 10),
		Ancestors:  e.ancestorViews(chain),
		Timestamp:  ev.Timestamp,
		Target:     ev.Target,
		Name:       ev.Name,
		Level:      int32(ev.Level),
		File:       model.FormatFile(ev.FileName, ev.FileLine),
		Attributes: attrs,
	}
}
