package transform

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/AceTheCreator/parcel/internal/model"
)

// HTMLTransformer extracts module script dependencies from HTML documents.
// External module scripts become dependencies on their src attribute;
// inline scripts contribute the imports found in their content.
type HTMLTransformer struct{}

// NewHTMLTransformer creates a transformer for HTML documents.
func NewHTMLTransformer() *HTMLTransformer {
	return &HTMLTransformer{}
}

func (t *HTMLTransformer) Extensions() []string {
	return []string{".html", ".htm"}
}

func (t *HTMLTransformer) Transform(_ context.Context, group model.AssetGroup, code []byte) ([]model.Dependency, error) {
	doc, err := html.Parse(bytes.NewReader(code))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var deps []model.Dependency
	var walk func(n *html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			scriptDeps, err := t.scriptDependencies(n, group)
			if err != nil {
				return err
			}
			deps = append(deps, scriptDeps...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc); err != nil {
		return nil, err
	}
	return deps, nil
}

// scriptDependencies extracts the dependencies of one script element.
// Module scripts contribute their src and all inline imports; classic
// scripts contribute only dynamic imports from inline content.
func (t *HTMLTransformer) scriptDependencies(n *html.Node, group model.AssetGroup) ([]model.Dependency, error) {
	var scriptType, src string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "type":
			scriptType = attr.Val
		case "src":
			src = attr.Val
		}
	}
	isModule := scriptType == "module"

	if src != "" {
		if !isModule {
			return nil, nil
		}
		return []model.Dependency{{Specifier: src, SourcePath: group.FilePath}}, nil
	}

	content := strings.TrimSpace(textContent(n))
	if content == "" {
		return nil, nil
	}
	if scriptType != "" && !isModule {
		// JSON payloads and other non-script types.
		return nil, nil
	}

	imports, err := extractImports([]byte(content))
	if err != nil {
		return nil, err
	}
	var deps []model.Dependency
	for _, imp := range imports {
		if !isModule && !imp.isDynamic {
			continue
		}
		deps = append(deps, model.Dependency{
			Specifier:  imp.specifier,
			SourcePath: group.FilePath,
			IsDynamic:  imp.isDynamic,
		})
	}
	return deps, nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
