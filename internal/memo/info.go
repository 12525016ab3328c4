package memo

import (
	"maps"

	"github.com/jward/memocap/internal/arkast"
)

// MemoableInfo is the classification of one node. It is a value computed on
// demand; only the cache persists decisions.
type MemoableInfo struct {
	HasMemo            bool
	HasMemoSkip        bool
	HasMemoIntrinsic   bool
	HasMemoEntry       bool
	HasBuilder         bool
	HasBuilderParam    bool
	HasProperType      bool
	IsWithinTypeParams bool
}

func (i MemoableInfo) merge(o MemoableInfo) MemoableInfo {
	return MemoableInfo{
		HasMemo:            i.HasMemo || o.HasMemo,
		HasMemoSkip:        i.HasMemoSkip || o.HasMemoSkip,
		HasMemoIntrinsic:   i.HasMemoIntrinsic || o.HasMemoIntrinsic,
		HasMemoEntry:       i.HasMemoEntry || o.HasMemoEntry,
		HasBuilder:         i.HasBuilder || o.HasBuilder,
		HasBuilderParam:    i.HasBuilderParam || o.HasBuilderParam,
		HasProperType:      i.HasProperType || o.HasProperType,
		IsWithinTypeParams: i.IsWithinTypeParams || o.IsWithinTypeParams,
	}
}

// Marked reports an explicit memo variant (not skip).
func (i MemoableInfo) Marked() bool {
	return i.HasMemo || i.HasMemoIntrinsic || i.HasMemoEntry
}

// Capable reports memo capability. With ignoreType the marker is trusted
// without a confirmed function type.
func (i MemoableInfo) Capable(ignoreType bool) bool {
	return (i.Marked() || i.HasBuilder) && (ignoreType || i.HasProperType)
}

// Qualifies reports whether a node should be newly marked: it carries a
// builder marker, no memo marker, and a confirmed function type outside any
// generic argument.
func (i MemoableInfo) Qualifies() bool {
	return (i.HasBuilder || i.HasBuilderParam) && !i.HasMemo && i.HasProperType && !i.IsWithinTypeParams
}

// Metadata returns the variant flags worth recording with a decision.
func (i MemoableInfo) Metadata() Metadata {
	md := Metadata{}
	if i.HasMemoSkip {
		md[MetaHasMemoSkip] = true
	}
	if i.HasMemoIntrinsic {
		md[MetaHasMemoIntrinsic] = true
	}
	if i.HasMemoEntry {
		md[MetaHasMemoEntry] = true
	}
	return md
}

func infoFromAnnotations(anns []*arkast.Annotation) MemoableInfo {
	var info MemoableInfo
	for _, a := range anns {
		switch Marker(a.Name) {
		case MarkerMemo:
			info.HasMemo = true
		case MarkerMemoSkip:
			info.HasMemoSkip = true
		case MarkerMemoIntrinsic:
			info.HasMemoIntrinsic = true
		case MarkerMemoEntry:
			info.HasMemoEntry = true
		case MarkerBuilder:
			info.HasBuilder = true
		case MarkerBuilderParam:
			info.HasBuilderParam = true
		}
	}
	return info
}

// infoFromMetadata is the short-circuit view of a cached node.
func infoFromMetadata(md Metadata) MemoableInfo {
	return MemoableInfo{
		HasMemo:            true,
		HasProperType:      true,
		HasMemoSkip:        md.Bool(MetaHasMemoSkip),
		HasMemoIntrinsic:   md.Bool(MetaHasMemoIntrinsic),
		HasMemoEntry:       md.Bool(MetaHasMemoEntry),
		IsWithinTypeParams: md.Bool(MetaIsWithinTypeParams),
	}
}

// Metadata keys recorded with cache entries.
const (
	MetaHasMemoSkip        = "hasMemoSkip"
	MetaHasMemoIntrinsic   = "hasMemoIntrinsic"
	MetaHasMemoEntry       = "hasMemoEntry"
	MetaHasReceiver        = "hasReceiver"
	MetaIsGetter           = "isGetter"
	MetaIsSetter           = "isSetter"
	MetaForbidTypeRewrite  = "forbidTypeRewrite"
	MetaIsWithinTypeParams = "isWithinTypeParams"
	MetaCallName           = "callName"
)

// Metadata is the free-form record attached to a cache entry.
type Metadata map[string]any

// Bool returns the boolean stored under key, false if absent.
func (m Metadata) Bool(key string) bool {
	v, _ := m[key].(bool)
	return v
}

// String returns the string stored under key, "" if absent.
func (m Metadata) String(key string) string {
	v, _ := m[key].(string)
	return v
}

func (m Metadata) clone() Metadata {
	out := make(Metadata, len(m))
	maps.Copy(out, m)
	return out
}

func functionFlags(fn *arkast.Function, md Metadata) Metadata {
	if fn == nil {
		return md
	}
	if fn.HasReceiver {
		md[MetaHasReceiver] = true
	}
	if fn.Getter {
		md[MetaIsGetter] = true
	}
	if fn.Setter {
		md[MetaIsSetter] = true
	}
	return md
}
