package ctxext

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// blockTypes is a language-specific set of tree-sitter node kinds treated
// as candidate context units (function/method/class/struct/interface/...).
// The root-of-file node type for each language is always excluded from the
// set even when listed below, so it can be named explicitly as the
// "skip the root" sentinel in languageSpec.rootType.
type blockTypes map[string]struct{}

func newBlockTypes(types ...string) blockTypes {
	set := make(blockTypes, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func (b blockTypes) has(t string) bool {
	_, ok := b[t]
	return ok
}

// languageSpec binds a grammar to its block-type set and to the node
// types this extractor treats specially: the root-of-file type (always
// excluded as a context unit) and the "function" / "class" declaration
// types that trigger declaration-only handling.
type languageSpec struct {
	grammar      *sitter.Language
	blockTypes   blockTypes
	rootType     string
	functionType string
	classType    string
	assignTypes  []string
}

var languageSpecs = map[string]languageSpec{
	"python": {
		grammar: python.GetLanguage(),
		blockTypes: newBlockTypes(
			"function_definition", "async_function_definition",
			"class_definition", "module", "decorated_definition",
		),
		rootType:     "module",
		functionType: "function_definition",
		classType:    "class_definition",
		assignTypes:  []string{"assignment", "expression_statement"},
	},
	"javascript": {
		grammar: javascript.GetLanguage(),
		blockTypes: newBlockTypes(
			"class", "class_declaration", "function_expression",
			"function_declaration", "generator_function",
			"generator_function_declaration", "method_definition",
			"arrow_function", "program",
		),
		rootType:     "program",
		functionType: "function_declaration",
		classType:    "class_declaration",
		assignTypes:  []string{"lexical_declaration", "expression_statement"},
	},
	"typescript": {
		grammar: typescript.GetLanguage(),
		blockTypes: newBlockTypes(
			"class_declaration", "function_declaration", "function_expression",
			"method_definition", "interface_declaration", "type_alias_declaration",
			"namespace_declaration", "enum_declaration", "arrow_function", "program",
		),
		rootType:     "program",
		functionType: "function_declaration",
		classType:    "class_declaration",
		assignTypes:  []string{"lexical_declaration", "expression_statement"},
	},
	"go": {
		grammar: golang.GetLanguage(),
		blockTypes: newBlockTypes(
			"function_declaration", "method_declaration",
			"type_declaration", "source_file", "package_clause",
		),
		rootType:     "source_file",
		functionType: "function_declaration",
		classType:    "type_declaration",
		assignTypes:  []string{"const_declaration", "var_declaration"},
	},
	"java": {
		grammar: java.GetLanguage(),
		blockTypes: newBlockTypes(
			"class_declaration", "method_declaration",
			"interface_declaration", "enum_declaration", "program",
		),
		rootType:     "program",
		functionType: "method_declaration",
		classType:    "class_declaration",
	},
	"c": {
		grammar: c.GetLanguage(),
		blockTypes: newBlockTypes(
			"function_definition", "struct_specifier",
			"enum_specifier", "translation_unit",
		),
		rootType:     "translation_unit",
		functionType: "function_definition",
		classType:    "struct_specifier",
	},
	"cpp": {
		grammar: cpp.GetLanguage(),
		blockTypes: newBlockTypes(
			"function_definition", "class_specifier", "struct_specifier",
			"namespace_definition", "enum_specifier", "translation_unit",
		),
		rootType:     "translation_unit",
		functionType: "function_definition",
		classType:    "class_specifier",
	},
	"csharp": {
		grammar: csharp.GetLanguage(),
		blockTypes: newBlockTypes(
			"class_declaration", "method_declaration", "interface_declaration",
			"struct_declaration", "enum_declaration", "namespace_declaration",
			"compilation_unit",
		),
		rootType:     "compilation_unit",
		functionType: "method_declaration",
		classType:    "class_declaration",
	},
	"kotlin": {
		grammar:      kotlin.GetLanguage(),
		blockTypes:   newBlockTypes("class_declaration", "function_declaration", "object_declaration"),
		rootType:     "source_file",
		functionType: "function_declaration",
		classType:    "class_declaration",
	},
	"swift": {
		grammar: swift.GetLanguage(),
		blockTypes: newBlockTypes(
			"class_declaration", "protocol_declaration", "function_declaration",
			"property_declaration", "init_declaration", "deinit_declaration",
			"subscript_declaration",
		),
		rootType:     "source_file",
		functionType: "function_declaration",
		classType:    "class_declaration",
	},
}

// SupportedLanguages lists the language tags with a registered grammar.
func SupportedLanguages() []string {
	names := make([]string, 0, len(languageSpecs))
	for name := range languageSpecs {
		names = append(names, name)
	}
	return names
}
