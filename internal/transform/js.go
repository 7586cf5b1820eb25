package transform

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/AceTheCreator/parcel/internal/model"
)

//go:embed queries/*.scm
var queryFiles embed.FS

var tsLanguage = ts.NewLanguage(tsTypescript.LanguageTypescript())

// Parser pool for reuse across concurrent transforms.
var tsParserPool = sync.Pool{
	New: func() any {
		parser := ts.NewParser()
		if err := parser.SetLanguage(tsLanguage); err != nil {
			panic("failed to set TypeScript language: " + err.Error())
		}
		return parser
	},
}

func getTSParser() *ts.Parser {
	return tsParserPool.Get().(*ts.Parser)
}

func putTSParser(p *ts.Parser) {
	p.Reset()
	tsParserPool.Put(p)
}

var (
	importsQuery     *ts.Query
	importsQueryOnce sync.Once
	importsQueryErr  error
)

func getImportsQuery() (*ts.Query, error) {
	importsQueryOnce.Do(func() {
		data, err := queryFiles.ReadFile("queries/imports.scm")
		if err != nil {
			importsQueryErr = fmt.Errorf("failed to read imports query: %w", err)
			return
		}
		query, qerr := ts.NewQuery(tsLanguage, string(data))
		if qerr != nil {
			importsQueryErr = fmt.Errorf("failed to parse imports query: %w", qerr)
			return
		}
		importsQuery = query
	})
	return importsQuery, importsQueryErr
}

// moduleImport is one import statement found in a module.
type moduleImport struct {
	specifier string
	isDynamic bool
}

// extractImports parses JavaScript/TypeScript content and extracts all
// import specifiers, static and dynamic, including re-exports.
func extractImports(content []byte) ([]moduleImport, error) {
	query, err := getImportsQuery()
	if err != nil {
		return nil, err
	}

	parser := getTSParser()
	defer putTSParser(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var imports []moduleImport
	matches := cursor.Matches(query, tree.RootNode(), content)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			name := captureNames[capture.Index]
			text := capture.Node.Utf8Text(content)

			switch name {
			case "import.spec", "reexport.spec":
				imports = append(imports, moduleImport{specifier: text})
			case "dynamicImport.spec":
				imports = append(imports, moduleImport{specifier: text, isDynamic: true})
			}
		}
	}

	return imports, nil
}

// JSTransformer extracts dependencies from JavaScript and TypeScript
// modules. Configured defines are substituted into the source before
// parsing, so a define that changes also changes the content hash.
type JSTransformer struct {
	defines map[string]string
}

// NewJSTransformer creates a transformer for script modules. The defines
// map replaces occurrences of each key with its value.
func NewJSTransformer(defines map[string]string) *JSTransformer {
	return &JSTransformer{defines: defines}
}

func (t *JSTransformer) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}
}

func (t *JSTransformer) Transform(_ context.Context, group model.AssetGroup, code []byte) ([]model.Dependency, error) {
	code = t.applyDefines(code)

	imports, err := extractImports(code)
	if err != nil {
		return nil, err
	}

	deps := make([]model.Dependency, 0, len(imports))
	for _, imp := range imports {
		deps = append(deps, model.Dependency{
			Specifier:  imp.specifier,
			SourcePath: group.FilePath,
			IsDynamic:  imp.isDynamic,
		})
	}
	return deps, nil
}

// applyDefines substitutes defines in sorted key order for determinism.
func (t *JSTransformer) applyDefines(code []byte) []byte {
	if len(t.defines) == 0 {
		return code
	}
	keys := make([]string, 0, len(t.defines))
	for k := range t.defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	src := string(code)
	for _, k := range keys {
		src = strings.ReplaceAll(src, k, t.defines[k])
	}
	return []byte(src)
}
