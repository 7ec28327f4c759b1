package event

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"wjjfit/internal/errors"
)

var indexedColumn = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\]$`)

// FromColumns builds a Record from flat tabular columns. A column named
// "JetPFCor_Pt[2]" lands in slot 2 of the array field "JetPFCor_Pt"; arrays
// are sized to the highest index seen (at least MaxJets for jet fields).
// String cells are parsed as numbers; empty cells are skipped.
func FromColumns(cols map[string]any) (Record, error) {
	rec := make(Record, len(cols))
	arrays := make(map[string]map[int]float64)

	for name, raw := range cols {
		v, skip, err := cellValue(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", name)
		}
		if skip {
			continue
		}

		if m := indexedColumn.FindStringSubmatch(strings.TrimSpace(name)); m != nil {
			idx, _ := strconv.Atoi(m[2])
			f, ok := toFloat(v)
			if !ok {
				return nil, errors.InvalidInput(fmt.Sprintf("column %s holds %T", name, v))
			}
			if arrays[m[1]] == nil {
				arrays[m[1]] = make(map[int]float64)
			}
			arrays[m[1]][idx] = f
			continue
		}
		rec[strings.TrimSpace(name)] = v
	}

	for base, slots := range arrays {
		size := 0
		for idx := range slots {
			if idx+1 > size {
				size = idx + 1
			}
		}
		if strings.HasPrefix(base, "JetPFCor_") && size < MaxJets {
			size = MaxJets
		}
		arr := make([]float64, size)
		for idx, f := range slots {
			arr[idx] = f
		}
		rec[base] = arr
	}
	return rec, nil
}

func cellValue(raw any) (any, bool, error) {
	switch v := raw.(type) {
	case nil:
		return nil, true, nil
	case []byte:
		return cellValue(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, true, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, errors.InvalidInput(fmt.Sprintf("%q is not numeric", s))
		}
		return f, false, nil
	default:
		return v, false, nil
	}
}
