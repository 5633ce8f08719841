package ir

import (
	"fmt"
	"strings"
)

// DataType is the broad element type implied by a Kind.
type DataType int

const (
	TypeInvalid DataType = iota
	TypeInteger
	TypeReal
	TypeComplex
	TypeLogical
	TypeCharacter
)

func (t DataType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeComplex:
		return "complex"
	case TypeLogical:
		return "logical"
	case TypeCharacter:
		return "character"
	default:
		return "invalid"
	}
}

// Kind identifies an element's numeric kind. Values follow the type-kind
// numbering used by the coupling framework's other language bindings.
type Kind int

const (
	KindInvalid   Kind = 0
	KindI1        Kind = 1
	KindI2        Kind = 2
	KindI4        Kind = 3
	KindI8        Kind = 4
	KindR4        Kind = 5
	KindR8        Kind = 6
	KindC8        Kind = 7
	KindC16       Kind = 8
	KindLogical   Kind = 9
	KindCharacter Kind = 10
)

var kindNames = map[Kind]string{
	KindI1:        "I1",
	KindI2:        "I2",
	KindI4:        "I4",
	KindI8:        "I8",
	KindR4:        "R4",
	KindR8:        "R8",
	KindC8:        "C8",
	KindC16:       "C16",
	KindLogical:   "LOGICAL",
	KindCharacter: "CHARACTER",
}

// ParseKind parses a kind name such as "R8" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == up {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown kind %q", s)
}

// Valid reports whether k names a supported kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Size returns the element size in bytes, or 0 for an invalid kind.
func (k Kind) Size() int {
	switch k {
	case KindI1, KindCharacter:
		return 1
	case KindI2:
		return 2
	case KindI4, KindR4, KindLogical:
		return 4
	case KindI8, KindR8, KindC8:
		return 8
	case KindC16:
		return 16
	default:
		return 0
	}
}

// Type returns the element type implied by the kind.
func (k Kind) Type() DataType {
	switch k {
	case KindI1, KindI2, KindI4, KindI8:
		return TypeInteger
	case KindR4, KindR8:
		return TypeReal
	case KindC8, KindC16:
		return TypeComplex
	case KindLogical:
		return TypeLogical
	case KindCharacter:
		return TypeCharacter
	default:
		return TypeInvalid
	}
}
