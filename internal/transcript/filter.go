// Package transcript reduces heterogeneous transcript payloads to the flat,
// chronologically ordered segment list fed to the LLM.
package transcript

import (
	"encoding/json"
	"math"

	"video-chapters-go/internal/types"
)

// Kind tags the shape of a decoded transcript payload.
type Kind int

const (
	Scalar Kind = iota
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "scalar"
	}
}

// Payload is a decoded transcript value with its shape made explicit.
type Payload struct {
	Kind     Kind
	Sequence []any
	Mapping  map[string]any
	Scalar   any
}

// Decode classifies a value produced by encoding/json (or a raw string body).
func Decode(v any) Payload {
	switch t := v.(type) {
	case []any:
		return Payload{Kind: Sequence, Sequence: t}
	case map[string]any:
		return Payload{Kind: Mapping, Mapping: t}
	default:
		return Payload{Kind: Scalar, Scalar: v}
	}
}

// Value returns the payload as a plain JSON-compatible value.
func (p Payload) Value() any {
	switch p.Kind {
	case Sequence:
		return p.Sequence
	case Mapping:
		return p.Mapping
	default:
		return p.Scalar
	}
}

// candidatePaths are probed in order for a nested segment sequence.
var candidatePaths = [][]string{
	{"transcript", "snippets"},
	{"transcript"},
	{"segments"},
	{"snippets"},
	{"data"},
}

// Filter returns the best-effort ordered segment sequence inside raw. A bare
// sequence is returned unchanged; a mapping is probed for a nested sequence
// and returned whole when none matches; anything else passes through.
func Filter(raw any) any {
	p := Decode(raw)
	if p.Kind != Mapping {
		return p.Value()
	}
	for _, path := range candidatePaths {
		if seq, ok := lookupSequence(p.Mapping, path); ok {
			return seq
		}
	}
	return p.Mapping
}

func lookupSequence(m map[string]any, path []string) ([]any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	seq, ok := cur.([]any)
	return seq, ok
}

// Title extracts the video title carried by a mapping payload, if any.
func Title(raw any) string {
	p := Decode(raw)
	if p.Kind != Mapping {
		return ""
	}
	title, _ := p.Mapping["title"].(string)
	return title
}

// Segments converts the filtered value into typed segments, skipping
// entries that are not segment-shaped. Order is preserved.
func Segments(filtered any) []types.TranscriptSegment {
	p := Decode(filtered)
	if p.Kind != Sequence {
		return nil
	}
	out := make([]types.TranscriptSegment, 0, len(p.Sequence))
	for _, item := range p.Sequence {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, ok := number(obj["start"])
		if !ok || start < 0 {
			continue
		}
		seg := types.TranscriptSegment{Start: start}
		if d, ok := number(obj["duration"]); ok && d >= 0 {
			seg.Duration = &d
		}
		seg.Text, _ = obj["text"].(string)
		out = append(out, seg)
	}
	return out
}

// EstimateDuration returns last.start + last.duration over the filtered
// transcript, or 0 when it cannot be determined.
func EstimateDuration(filtered any) float64 {
	segs := Segments(filtered)
	if len(segs) == 0 {
		return 0
	}
	last := segs[len(segs)-1]
	total := last.Start
	if last.Duration != nil {
		total += *last.Duration
	}
	return total
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
