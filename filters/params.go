package filters

import (
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// Resolver resolves indirect references found in filter entries.
type Resolver func(raw.Object) raw.Object

func identity(o raw.Object) raw.Object { return o }

// ExtractFilters reads /Filter and /DecodeParms from a stream dictionary.
// Inline images use the abbreviated keys /F and /DP.
func ExtractFilters(dict *raw.DictObj, resolve Resolver) []Stage {
	if resolve == nil {
		resolve = identity
	}
	filterObj, ok := dict.Get(names.Filter)
	if !ok {
		filterObj, ok = dict.GetKey("F")
	}
	if !ok {
		return nil
	}
	parmsObj, ok := dict.Get(names.DecodeParms)
	if !ok {
		parmsObj, _ = dict.GetKey("DP")
	}
	filterObj = resolve(filterObj)
	parmsObj = resolve(parmsObj)

	var stages []Stage
	switch f := filterObj.(type) {
	case raw.NameObj:
		st := Stage{Name: f.Value()}
		st.Params = paramDict(parmsObj, resolve)
		if st.Params == nil {
			if arr, ok := parmsObj.(*raw.ArrayObj); ok && arr.Len() > 0 {
				st.Params = paramDict(arr.Items[0], resolve)
			}
		}
		stages = append(stages, st)
	case *raw.ArrayObj:
		parms, _ := parmsObj.(*raw.ArrayObj)
		for i, item := range f.Items {
			n, ok := resolve(item).(raw.NameObj)
			if !ok {
				continue
			}
			st := Stage{Name: n.Value()}
			if parms != nil && i < parms.Len() {
				st.Params = paramDict(parms.Items[i], resolve)
			} else if i == 0 {
				st.Params = paramDict(parmsObj, resolve)
			}
			stages = append(stages, st)
		}
	}
	return stages
}

func paramDict(o raw.Object, resolve Resolver) *raw.DictObj {
	if d, ok := resolve(o).(*raw.DictObj); ok {
		return d
	}
	return nil
}

// IsImageFilter reports whether the stage ends in an image codec whose
// output is decoded samples rather than bytes for further filtering.
func IsImageFilter(name string) bool {
	switch name {
	case "DCTDecode", "DCT", "JPXDecode", "JBIG2Decode":
		return true
	}
	return false
}

func intParam(params *raw.DictObj, key names.ID, def int) int {
	if v, ok := params.Get(key); ok {
		if n, ok := raw.AsInt(v); ok {
			return int(n)
		}
	}
	return def
}

func boolParam(params *raw.DictObj, key names.ID, def bool) bool {
	if v, ok := params.Get(key); ok {
		if b, ok := raw.AsBool(v); ok {
			return b
		}
	}
	return def
}
