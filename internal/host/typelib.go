package host

import (
	"strings"

	"github.com/google/uuid"

	"vbscript/internal/variant"
)

// typeLib is Scriptlet.TypeLib, used by scripts only for its Guid.
type typeLib struct {
	guid string
}

func newTypeLib() *typeLib {
	return &typeLib{guid: "{" + strings.ToUpper(uuid.NewString()) + "}"}
}

func (t *typeLib) TypeName() string { return "ITypeLib" }

func (t *typeLib) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("TypeLib", member, mode); err != nil {
		return variant.Empty(), err
	}
	switch strings.ToLower(member) {
	case "guid", "":
		return variant.String(t.guid), nil
	}
	return variant.Empty(), unsupported("TypeLib", member)
}
