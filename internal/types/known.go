package types

// KnownClass names a class the type system treats specially.
type KnownClass uint8

const (
	NotKnown KnownClass = iota
	KnownObject
	KnownType
	KnownInt
	KnownFloat
	KnownComplex
	KnownBool
	KnownStr
	KnownBytes
	KnownBytearray
	KnownTuple
	KnownList
	KnownDict
	KnownSet
	KnownFrozenSet
	KnownSlice
	KnownRange
	KnownProperty
	KnownStaticMethod
	KnownClassMethod
	KnownSuper
	KnownBaseException
	KnownException
	KnownBaseExceptionGroup
	KnownNoneType
	KnownFunctionType
	KnownMethodType
	KnownModuleType
	KnownEllipsisType
	KnownNotImplementedType
	KnownUnionType
	KnownSpecialForm
	KnownTypeVar
	KnownParamSpec
	KnownTypeVarTuple
	KnownTypeAliasType
)

type knownClassInfo struct {
	module string
	name   string
}

var knownClasses = [...]knownClassInfo{
	KnownObject:             {"builtins", "object"},
	KnownType:               {"builtins", "type"},
	KnownInt:                {"builtins", "int"},
	KnownFloat:              {"builtins", "float"},
	KnownComplex:            {"builtins", "complex"},
	KnownBool:               {"builtins", "bool"},
	KnownStr:                {"builtins", "str"},
	KnownBytes:              {"builtins", "bytes"},
	KnownBytearray:          {"builtins", "bytearray"},
	KnownTuple:              {"builtins", "tuple"},
	KnownList:               {"builtins", "list"},
	KnownDict:               {"builtins", "dict"},
	KnownSet:                {"builtins", "set"},
	KnownFrozenSet:          {"builtins", "frozenset"},
	KnownSlice:              {"builtins", "slice"},
	KnownRange:              {"builtins", "range"},
	KnownProperty:           {"builtins", "property"},
	KnownStaticMethod:       {"builtins", "staticmethod"},
	KnownClassMethod:        {"builtins", "classmethod"},
	KnownSuper:              {"builtins", "super"},
	KnownBaseException:      {"builtins", "BaseException"},
	KnownException:          {"builtins", "Exception"},
	KnownBaseExceptionGroup: {"builtins", "BaseExceptionGroup"},
	KnownNoneType:           {"types", "NoneType"},
	KnownFunctionType:       {"types", "FunctionType"},
	KnownMethodType:         {"types", "MethodType"},
	KnownModuleType:         {"types", "ModuleType"},
	KnownEllipsisType:       {"types", "EllipsisType"},
	KnownNotImplementedType: {"types", "NotImplementedType"},
	KnownUnionType:          {"types", "UnionType"},
	KnownSpecialForm:        {"typing", "_SpecialForm"},
	KnownTypeVar:            {"typing", "TypeVar"},
	KnownParamSpec:          {"typing", "ParamSpec"},
	KnownTypeVarTuple:       {"typing", "TypeVarTuple"},
	KnownTypeAliasType:      {"typing", "TypeAliasType"},
}

// Module is the module that defines the class.
func (k KnownClass) Module() string { return knownClasses[k].module }

func (k KnownClass) Name() string { return knownClasses[k].name }

// LookupKnownClass identifies a class by its defining module and name.
func LookupKnownClass(module, name string) KnownClass {
	for k, info := range knownClasses {
		if info.module == module && info.name == name {
			return KnownClass(k)
		}
	}
	return NotKnown
}

// ClassLiteral returns the class object, or Unknown when the defining stub
// is unavailable.
func (k KnownClass) ClassLiteral(db Db) Type {
	if c := db.KnownClass(k); c != nil {
		return ClassLiteral(c)
	}
	return Unknown
}

// Instance returns an instance of the class, or Unknown.
func (k KnownClass) Instance(db Db) Type {
	if c := db.KnownClass(k); c != nil {
		return Instance(c)
	}
	return Unknown
}

// KnownFunction names a function with special call semantics.
type KnownFunction uint8

const (
	NotKnownFunction KnownFunction = iota
	KnownRevealType
	KnownLen
	KnownIsInstance
	KnownIsSubclass
	KnownFinal
	KnownCast
	KnownTypeCheckOnly
)

var knownFunctions = map[string]KnownFunction{
	"builtins.len":                      KnownLen,
	"builtins.isinstance":               KnownIsInstance,
	"builtins.issubclass":               KnownIsSubclass,
	"typing.reveal_type":                KnownRevealType,
	"typing_extensions.reveal_type":     KnownRevealType,
	"typing.final":                      KnownFinal,
	"typing_extensions.final":           KnownFinal,
	"typing.cast":                       KnownCast,
	"typing_extensions.cast":            KnownCast,
	"typing.type_check_only":            KnownTypeCheckOnly,
	"typing_extensions.type_check_only": KnownTypeCheckOnly,
}

// LookupKnownFunction identifies a function by module and name.
func LookupKnownFunction(module, name string) KnownFunction {
	return knownFunctions[module+"."+name]
}

// KnownInstanceKind tags a KnownInstance.
type KnownInstanceKind uint8

const (
	SpecialFormAny KnownInstanceKind = iota
	SpecialFormUnion
	SpecialFormOptional
	SpecialFormLiteral
	SpecialFormLiteralString
	SpecialFormNoReturn
	SpecialFormNever
	SpecialFormTuple
	SpecialFormType
	SpecialFormCallable
	SpecialFormClassVar
	SpecialFormFinal
	SpecialFormAnnotated
	SpecialFormTypeAlias
	SpecialFormProtocol
	SpecialFormGeneric
	SpecialFormTypeGuard
	SpecialFormTypeIs
	SpecialFormSelf
	SpecialFormUnpack
	SpecialFormConcatenate
	SpecialFormRequired
	SpecialFormNotRequired
	SpecialFormReadOnly
	SpecialFormList
	SpecialFormDict
	SpecialFormSet
	SpecialFormFrozenSet
	SpecialFormDefaultDict
	SpecialFormDeque
	SpecialFormOrderedDict
	SpecialFormCounter
	SpecialFormChainMap
	SpecialFormTypedDict
	KnownTypeVarInstance
	KnownParamSpecInstance
	KnownTypeVarTupleInstance
	KnownTypeAliasInstance
)

var specialForms = map[string]KnownInstanceKind{
	"Any":           SpecialFormAny,
	"Union":         SpecialFormUnion,
	"Optional":      SpecialFormOptional,
	"Literal":       SpecialFormLiteral,
	"LiteralString": SpecialFormLiteralString,
	"NoReturn":      SpecialFormNoReturn,
	"Never":         SpecialFormNever,
	"Tuple":         SpecialFormTuple,
	"Type":          SpecialFormType,
	"Callable":      SpecialFormCallable,
	"ClassVar":      SpecialFormClassVar,
	"Final":         SpecialFormFinal,
	"Annotated":     SpecialFormAnnotated,
	"TypeAlias":     SpecialFormTypeAlias,
	"Protocol":      SpecialFormProtocol,
	"Generic":       SpecialFormGeneric,
	"TypeGuard":     SpecialFormTypeGuard,
	"TypeIs":        SpecialFormTypeIs,
	"Self":          SpecialFormSelf,
	"Unpack":        SpecialFormUnpack,
	"Concatenate":   SpecialFormConcatenate,
	"Required":      SpecialFormRequired,
	"NotRequired":   SpecialFormNotRequired,
	"ReadOnly":      SpecialFormReadOnly,
	"List":          SpecialFormList,
	"Dict":          SpecialFormDict,
	"Set":           SpecialFormSet,
	"FrozenSet":     SpecialFormFrozenSet,
	"DefaultDict":   SpecialFormDefaultDict,
	"Deque":         SpecialFormDeque,
	"OrderedDict":   SpecialFormOrderedDict,
	"Counter":       SpecialFormCounter,
	"ChainMap":      SpecialFormChainMap,
	"TypedDict":     SpecialFormTypedDict,
}

// LookupSpecialForm maps a name declared in typing or typing_extensions to
// its special form.
func LookupSpecialForm(module, name string) (KnownInstanceKind, bool) {
	if module != "typing" && module != "typing_extensions" {
		return 0, false
	}
	k, ok := specialForms[name]
	return k, ok
}

// SpecialFormName returns the typing name of a special form.
func (k KnownInstanceKind) SpecialFormName() string {
	for name, kind := range specialForms {
		if kind == k {
			return name
		}
	}
	return ""
}

// IsSpecialForm reports kinds that are typing special forms rather than
// type variables or aliases.
func (k KnownInstanceKind) IsSpecialForm() bool { return k < KnownTypeVarInstance }

// Class returns the class instances of this kind belong to.
func (k KnownInstanceKind) Class() KnownClass {
	switch k {
	case KnownTypeVarInstance:
		return KnownTypeVar
	case KnownParamSpecInstance:
		return KnownParamSpec
	case KnownTypeVarTupleInstance:
		return KnownTypeVarTuple
	case KnownTypeAliasInstance:
		return KnownTypeAliasType
	}
	return KnownSpecialForm
}

// AliasClass returns the builtin class a typing alias such as List stands
// for.
func (k KnownInstanceKind) AliasClass() (KnownClass, bool) {
	switch k {
	case SpecialFormList:
		return KnownList, true
	case SpecialFormDict:
		return KnownDict, true
	case SpecialFormSet:
		return KnownSet, true
	case SpecialFormFrozenSet:
		return KnownFrozenSet, true
	case SpecialFormTuple:
		return KnownTuple, true
	case SpecialFormType:
		return KnownType, true
	}
	return NotKnown, false
}
