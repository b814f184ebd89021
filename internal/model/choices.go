package model

import "sort"

// Languages is the fixed set of accepted snippet languages.
// The names are the primary lexer aliases of the Pygments highlighter, which
// is what clients use to render snippets.
var Languages = sortedCopy([]string{
	"abap", "ada", "antlr", "apacheconf", "applescript", "asm", "awk",
	"bash", "bat", "c", "clojure", "cmake", "cobol", "coffee-script", "common-lisp",
	"console", "cpp", "csharp", "css", "cython", "d", "dart", "diff", "django",
	"docker", "elixir", "elm", "erlang", "fortran", "fsharp", "gas", "go",
	"groovy", "haskell", "html", "http", "ini", "java", "javascript", "json",
	"jsx", "julia", "kotlin", "less", "lua", "make", "markdown", "matlab",
	"nginx", "nim", "nix", "objective-c", "ocaml", "perl", "php", "postgresql",
	"powershell", "prolog", "protobuf", "pycon", "python", "python3", "r",
	"racket", "rb", "rst", "ruby", "rust", "scala", "scheme", "scss", "sql",
	"swift", "tcl", "tex", "text", "toml", "ts", "typescript", "vb.net", "verilog",
	"vim", "xml", "yaml", "zig",
})

// Styles is the fixed set of accepted highlighting styles.
var Styles = sortedCopy([]string{
	"abap", "algol", "algol_nu", "arduino", "autumn", "borland", "bw",
	"colorful", "default", "emacs", "friendly", "fruity", "igor", "lovelace",
	"manni", "monokai", "murphy", "native", "paraiso-dark", "paraiso-light",
	"pastie", "perldoc", "rainbow_dash", "rrt", "solarized-dark",
	"solarized-light", "stata", "tango", "trac", "vim", "vs", "xcode",
})

var (
	languageSet = toSet(Languages)
	styleSet    = toSet(Styles)
)

// IsLanguage reports whether name is one of Languages (exact match).
func IsLanguage(name string) bool {
	_, ok := languageSet[name]
	return ok
}

// IsStyle reports whether name is one of Styles (exact match).
func IsStyle(name string) bool {
	_, ok := styleSet[name]
	return ok
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
