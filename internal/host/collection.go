package host

import (
	"strings"

	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

// collection is a read-only, zero-based list exposed with Count and Item,
// optionally addressable by name. It backs WScript.Arguments, Folder.Files
// and Recordset.Fields.
type collection struct {
	class string
	items []variant.Variant
	names []string
}

func (c *collection) TypeName() string { return c.class }

func (c *collection) Enumerate() ([]variant.Variant, error) {
	return append([]variant.Variant(nil), c.items...), nil
}

func (c *collection) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly(c.class, member, mode); err != nil {
		return variant.Empty(), err
	}
	switch strings.ToLower(member) {
	case "count", "length":
		return variant.Int(int64(len(c.items))), nil
	case "", "item":
		if err := arity(c.class+".Item", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		return c.item(args[0])
	}
	return variant.Empty(), unsupported(c.class, member)
}

func (c *collection) item(key variant.Variant) (variant.Variant, error) {
	if key.Kind() == variant.KindString && c.names != nil {
		for i, name := range c.names {
			if strings.EqualFold(name, key.Str()) {
				return c.items[i], nil
			}
		}
		return variant.Empty(), errors.Newf(errors.SubscriptOutOfRange, "Item not found in this collection: '%s'", key.Str())
	}
	i, err := toInt(key)
	if err != nil {
		return variant.Empty(), err
	}
	if i < 0 || i >= len(c.items) {
		return variant.Empty(), errors.Newf(errors.SubscriptOutOfRange, "Subscript out of range: '%d'", i)
	}
	return c.items[i], nil
}

// index returns c itself, or the item args select when a property that
// yields a collection is read with arguments, as in WScript.Arguments(0).
func (c *collection) index(args []variant.Variant) (variant.Variant, error) {
	if len(args) == 0 {
		return variant.ObjectOf(c), nil
	}
	if err := arity(c.class+".Item", args, 1, 1); err != nil {
		return variant.Empty(), err
	}
	return c.item(args[0])
}

func stringCollection(class string, values []string) *collection {
	c := &collection{class: class, items: make([]variant.Variant, len(values))}
	for i, v := range values {
		c.items[i] = variant.String(v)
	}
	return c
}
