package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// CheckReport carries the result of every check category for one artifact
// version. Syntax and imports gate validity; suggestions never do.
type CheckReport struct {
	SyntaxOK          bool
	SyntaxErrors      []string
	ImportsOK         bool
	UnresolvedImports []string
	Suggestions       []string
}

// Failures renders the blocking problems for a repair request.
func (r CheckReport) Failures() []string {
	var msgs []string
	for _, e := range r.SyntaxErrors {
		msgs = append(msgs, "syntax error: "+e)
	}
	if len(r.UnresolvedImports) > 0 {
		msgs = append(msgs, "unresolved imports: "+strings.Join(r.UnresolvedImports, ", "))
	}
	return msgs
}

// Checker statically validates Python artifacts with tree-sitter.
type Checker struct {
	known map[string]struct{}
}

// NewChecker builds a checker seeded with the Python standard library and
// the common scientific packages.
func NewChecker() *Checker {
	known := make(map[string]struct{}, len(pythonStdlib)+len(commonPackages))
	for _, name := range pythonStdlib {
		known[name] = struct{}{}
	}
	for _, name := range commonPackages {
		known[name] = struct{}{}
	}
	return &Checker{known: known}
}

// Check runs all categories in fixed order on one artifact version.
// declared are the artifact's dependency-library names; siblings are the
// module names of the other generated files, which count as resolvable.
func (c *Checker) Check(ctx context.Context, content string, declared, siblings []string) (CheckReport, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(content))
	if err != nil {
		return CheckReport{}, fmt.Errorf("parse artifact: %w", err)
	}
	defer tree.Close()

	src := []byte(content)
	root := tree.RootNode()

	report := CheckReport{
		SyntaxErrors: collectSyntaxErrors(root, src),
	}
	report.SyntaxOK = len(report.SyntaxErrors) == 0

	report.UnresolvedImports = c.unresolvedImports(root, src, declared, siblings)
	report.ImportsOK = len(report.UnresolvedImports) == 0

	report.Suggestions = structuralSuggestions(root, src)

	return report, nil
}

const maxReportedErrors = 10

// collectSyntaxErrors walks the tree for ERROR and MISSING nodes, keeping
// line/column positions so the repair prompt can quote them exactly.
func collectSyntaxErrors(root *sitter.Node, src []byte) []string {
	var errs []string
	var walk func(n *sitter.Node, depth int)
	walk = func(n *sitter.Node, depth int) {
		if depth > 1000 || len(errs) >= maxReportedErrors {
			return
		}
		if n.IsError() || n.IsMissing() {
			point := n.StartPoint()
			msg := "unexpected input"
			if n.IsMissing() {
				msg = fmt.Sprintf("missing %q", n.Type())
			} else if snippet := nodeSnippet(n, src); snippet != "" {
				msg = fmt.Sprintf("unexpected %q", snippet)
			}
			errs = append(errs, fmt.Sprintf("line %d, col %d: %s", point.Row+1, point.Column, msg))
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), depth+1)
		}
	}
	walk(root, 0)
	return errs
}

func nodeSnippet(n *sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(src)) {
		end = uint32(len(src))
	}
	if end <= start {
		return ""
	}
	snippet := string(src[start:end])
	if len(snippet) > 40 {
		snippet = snippet[:40] + "..."
	}
	return strings.TrimSpace(snippet)
}

// unresolvedImports lists the imported root modules that are neither known,
// declared as dependencies, nor generated sibling files.
func (c *Checker) unresolvedImports(root *sitter.Node, src []byte, declared, siblings []string) []string {
	local := make(map[string]struct{}, len(declared)+len(siblings))
	for _, dep := range declared {
		name := normalizePackage(dep)
		if name != "" {
			local[name] = struct{}{}
		}
	}
	for _, sib := range siblings {
		name := strings.TrimSuffix(strings.ToLower(sib), ".py")
		if name != "" {
			local[name] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var unresolved []string
	for _, mod := range collectImports(root, src) {
		if _, dup := seen[mod]; dup {
			continue
		}
		seen[mod] = struct{}{}

		if _, ok := c.known[mod]; ok {
			continue
		}
		if _, ok := local[strings.ToLower(mod)]; ok {
			continue
		}
		unresolved = append(unresolved, mod)
	}

	sort.Strings(unresolved)
	return unresolved
}

// collectImports extracts root module names from import statements.
// Relative imports resolve within the generated project and are skipped.
func collectImports(root *sitter.Node, src []byte) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "aliased_import" {
					child = child.NamedChild(0)
				}
				if child != nil && child.Type() == "dotted_name" {
					names = append(names, rootModule(child.Content(src)))
				}
			}
		case "import_from_statement":
			if mod := n.ChildByFieldName("module_name"); mod != nil && mod.Type() == "dotted_name" {
				names = append(names, rootModule(mod.Content(src)))
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return names
}

func rootModule(dotted string) string {
	if idx := strings.Index(dotted, "."); idx > 0 {
		return dotted[:idx]
	}
	return dotted
}

// structuralSuggestions checks for an entry point, error handling, and a
// module docstring. These are advisory only and never force a repair.
func structuralSuggestions(root *sitter.Node, src []byte) []string {
	var (
		hasEntry bool
		hasTry   bool
	)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "function_definition":
			if name := n.ChildByFieldName("name"); name != nil && name.Content(src) == "main" {
				hasEntry = true
			}
		case "if_statement":
			if cond := n.ChildByFieldName("condition"); cond != nil && strings.Contains(cond.Content(src), "__name__") {
				hasEntry = true
			}
		case "try_statement":
			hasTry = true
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)

	hasDocstring := false
	if first := root.NamedChild(0); first != nil && first.Type() == "expression_statement" {
		if inner := first.NamedChild(0); inner != nil && inner.Type() == "string" {
			hasDocstring = true
		}
	}

	var suggestions []string
	if !hasEntry {
		suggestions = append(suggestions, "add a main() function or an if __name__ == '__main__' guard")
	}
	if !hasTry {
		suggestions = append(suggestions, "add try/except error handling")
	}
	if !hasDocstring {
		suggestions = append(suggestions, "add a module docstring")
	}
	return suggestions
}

// normalizePackage maps a pip distribution name onto its import name.
func normalizePackage(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	// Strip version pins like pandas>=2.0.
	for _, sep := range []string{"==", ">=", "<=", ">", "<", "~="} {
		if idx := strings.Index(name, sep); idx > 0 {
			name = name[:idx]
			break
		}
	}
	if alias, ok := pipAliases[name]; ok {
		return alias
	}
	return strings.ReplaceAll(name, "-", "_")
}

var pipAliases = map[string]string{
	"scikit-learn":   "sklearn",
	"beautifulsoup4": "bs4",
	"pillow":         "PIL",
	"opencv-python":  "cv2",
	"pyyaml":         "yaml",
	"python-dateutil": "dateutil",
}

var pythonStdlib = []string{
	"abc", "argparse", "asyncio", "collections", "copy", "csv", "dataclasses",
	"datetime", "enum", "functools", "glob", "io", "itertools", "json",
	"logging", "math", "os", "pathlib", "pickle", "random", "re", "shutil",
	"statistics", "string", "subprocess", "sys", "tempfile", "time", "typing",
	"unittest", "warnings",
}

var commonPackages = []string{
	"bs4", "cv2", "gensim", "joblib", "keras", "lightgbm", "lxml",
	"matplotlib", "nltk", "numpy", "openpyxl", "pandas", "PIL", "plotly",
	"requests", "scipy", "seaborn", "sklearn", "statsmodels", "tensorflow",
	"torch", "tqdm", "xgboost", "xlrd", "yaml",
}
