package host

import (
	"fmt"
	"strings"

	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

// dictionary is Scripting.Dictionary: an insertion-ordered map from
// scalar keys to values. Keys of different subtypes are distinct, so 1 and
// "1" are two entries.
type dictionary struct {
	keys   []variant.Variant
	values []variant.Variant
	index  map[string]int
	mode   int
}

func newDictionary() *dictionary {
	return &dictionary{index: make(map[string]int), mode: binaryCompare}
}

func (d *dictionary) TypeName() string { return "Dictionary" }

func (d *dictionary) Enumerate() ([]variant.Variant, error) {
	return append([]variant.Variant(nil), d.keys...), nil
}

// canonical returns the lookup string for a key.
func (d *dictionary) canonical(key variant.Variant) (string, error) {
	switch key.Kind() {
	case variant.KindArray:
		return "", errors.New(errors.TypeMismatch, "")
	case variant.KindObject:
		return fmt.Sprintf("o:%p", key.Object()), nil
	case variant.KindString:
		s := key.Str()
		if d.mode == textCompare {
			s = strings.ToLower(s)
		}
		return "s:" + s, nil
	case variant.KindInteger, variant.KindLong, variant.KindDouble:
		// numeric subtypes compare by value
		return "n:" + variant.FormatDouble(key.Float()), nil
	}
	return key.Kind().String() + ":" + key.String(), nil
}

func (d *dictionary) find(key variant.Variant) (int, string, error) {
	k, err := d.canonical(key)
	if err != nil {
		return -1, "", err
	}
	i, ok := d.index[k]
	if !ok {
		return -1, k, nil
	}
	return i, k, nil
}

func (d *dictionary) add(k string, key, value variant.Variant) {
	d.index[k] = len(d.keys)
	d.keys = append(d.keys, key)
	d.values = append(d.values, value.Copy())
}

func (d *dictionary) remove(i int) {
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.values = append(d.values[:i], d.values[i+1:]...)
	d.reindex()
}

func (d *dictionary) reindex() {
	d.index = make(map[string]int, len(d.keys))
	for i, key := range d.keys {
		k, _ := d.canonical(key)
		d.index[k] = i
	}
}

func (d *dictionary) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	switch strings.ToLower(member) {
	case "add":
		if err := arity("Dictionary.Add", args, 2, 2); err != nil {
			return variant.Empty(), err
		}
		i, k, err := d.find(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		if i >= 0 {
			return variant.Empty(), errors.Newf(errors.KeyExists, "This key is already associated with an element of this collection: '%s'", variant.ToString(args[0]))
		}
		d.add(k, args[0], args[1])
		return variant.Empty(), nil
	case "", "item":
		return d.item(args, mode)
	case "key":
		if mode != variant.InvokeSet {
			return variant.Empty(), unsupported("Dictionary", member)
		}
		if err := arity("Dictionary.Key", args, 2, 2); err != nil {
			return variant.Empty(), err
		}
		i, _, err := d.find(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		if i < 0 {
			return variant.Empty(), errors.New(errors.ElementNotFound, "")
		}
		if j, _, _ := d.find(args[1]); j >= 0 && j != i {
			return variant.Empty(), errors.New(errors.KeyExists, "")
		}
		d.keys[i] = args[1]
		d.reindex()
		return variant.Empty(), nil
	case "exists":
		if err := arity("Dictionary.Exists", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		i, _, err := d.find(args[0])
		return variant.Bool(i >= 0), err
	case "items":
		return variant.ArrayOf(variant.ArrayFrom(d.values)), nil
	case "keys":
		return variant.ArrayOf(variant.ArrayFrom(d.keys)), nil
	case "remove":
		if err := arity("Dictionary.Remove", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		i, _, err := d.find(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		if i < 0 {
			return variant.Empty(), errors.New(errors.ElementNotFound, "")
		}
		d.remove(i)
		return variant.Empty(), nil
	case "removeall":
		d.keys, d.values = nil, nil
		d.index = make(map[string]int)
		return variant.Empty(), nil
	case "count":
		if err := readOnly("Dictionary", member, mode); err != nil {
			return variant.Empty(), err
		}
		return variant.Int(int64(len(d.keys))), nil
	case "comparemode":
		if mode != variant.InvokeSet {
			return variant.Int(int64(d.mode)), nil
		}
		m, err := toInt(value(args))
		if err != nil {
			return variant.Empty(), err
		}
		if len(d.keys) > 0 || m < binaryCompare || m > textCompare {
			return variant.Empty(), invalidCall("CompareMode")
		}
		d.mode = m
		return variant.Empty(), nil
	}
	return variant.Empty(), unsupported("Dictionary", member)
}

// item reads or writes an entry. Reading a missing key adds it with an
// Empty value, as the legacy component does.
func (d *dictionary) item(args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	want := 1
	if mode == variant.InvokeSet {
		want = 2
	}
	if err := arity("Dictionary.Item", args, want, want); err != nil {
		return variant.Empty(), err
	}
	i, k, err := d.find(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	if mode == variant.InvokeSet {
		if i < 0 {
			d.add(k, args[0], args[1])
		} else {
			d.values[i] = args[1].Copy()
		}
		return variant.Empty(), nil
	}
	if i < 0 {
		d.add(k, args[0], variant.Empty())
		return variant.Empty(), nil
	}
	return d.values[i], nil
}
