package ast

type Builtin int

const (
	BuiltinUnreachable Builtin = iota
	BuiltinTrap
	BuiltinTypesCompatible
	BuiltinConstantP
	BuiltinFrameAddress
	BuiltinExpect
	BuiltinStrlen
)

var builtinNames = [...]string{
	BuiltinUnreachable:     "__builtin_unreachable",
	BuiltinTrap:            "__builtin_trap",
	BuiltinTypesCompatible: "__builtin_types_compatible_p",
	BuiltinConstantP:       "__builtin_constant_p",
	BuiltinFrameAddress:    "__builtin_frame_address",
	BuiltinExpect:          "__builtin_expect",
	BuiltinStrlen:          "strlen",
}

func (b Builtin) String() string {
	return builtinNames[b]
}

// TakesTypes reports whether the builtin's arguments are type names.
func (b Builtin) TakesTypes() bool {
	return b == BuiltinTypesCompatible
}

// LookupBuiltin matches an identifier spelling exactly. strlen is only a
// builtin in hosted mode.
func LookupBuiltin(name string, freestanding bool) (Builtin, bool) {
	for b, n := range builtinNames {
		if n != name {
			continue
		}
		if Builtin(b) == BuiltinStrlen && freestanding {
			return 0, false
		}
		return Builtin(b), true
	}
	if name == "__builtin_strlen" {
		return BuiltinStrlen, true
	}
	return 0, false
}
