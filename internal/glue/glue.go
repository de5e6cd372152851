// Package glue implements forge's glue generator (spec §4.10, C10):
// rendering per-target-language FFI bindings from a ModuleInterface.
//
// Grounded on distr1-distri's text/template usage in internal/build/build.go
// (the teacher renders shell build steps and wrapper scripts through
// Go's text/template against its Ctx); this package applies the same
// template-per-target approach to FFI glue instead of shell scripts, and
// renders each template into a github.com/orcaman/writerseeker in-memory
// buffer that is read back once execution finishes. Values such as the C
// include-guard token are computed before the template runs; nothing is
// backpatched afterwards.
package glue

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/forgebuild/forge/internal/iface"
	"github.com/orcaman/writerseeker"
)

// Render renders FFI glue for mi's exports in targetLanguage, consumed by
// consumerModule, returning the file contents and the filename it should be
// written under: "<producer>_to_<consumer>.<ext>" (spec §4.10's worked
// example names the consumer *module*, e.g. "rustlib_to_cexe.h" — not the
// consumer's language — so two different consumer modules written in the
// same language never collide on one glue file).
func Render(mi *iface.ModuleInterface, targetLanguage, consumerModule string) (contents []byte, filename string, err error) {
	switch targetLanguage {
	case "c":
		b, err := renderC(mi, false)
		return b, glueFilename(mi, consumerModule, "h"), err
	case "cpp":
		b, err := renderC(mi, true)
		return b, glueFilename(mi, consumerModule, "hpp"), err
	case "rust":
		b, err := renderRust(mi)
		return b, glueFilename(mi, consumerModule, "rs"), err
	case "csharp":
		b, err := renderCSharp(mi)
		return b, glueFilename(mi, consumerModule, "cs"), err
	default:
		return nil, "", fmt.Errorf("glue: unsupported target language %q", targetLanguage)
	}
}

func glueFilename(mi *iface.ModuleInterface, consumerModule, ext string) string {
	return fmt.Sprintf("%s_to_%s.%s", sanitizeIdent(mi.Module.Name), sanitizeIdent(consumerModule), ext)
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// cReservedWords is mangled when it collides with a target identifier
// (spec §4.10: "Mangle identifiers only where mandated by the target
// language").
var cReservedWords = map[string]bool{
	"register": true, "auto": true, "union": true, "restrict": true,
}

var rustReservedWords = map[string]bool{
	"type": true, "fn": true, "match": true, "impl": true, "move": true,
	"mod": true, "trait": true, "yield": true,
}

var csharpReservedWords = map[string]bool{
	"object": true, "string": true, "params": true, "event": true, "class": true,
}

func mangle(name string, reserved map[string]bool) string {
	if reserved[name] {
		return name + "_"
	}
	return name
}

// renderWithTemplate executes tmplText against data into a writerseeker
// buffer and returns the rendered bytes.
func renderWithTemplate(tmplText string, funcs template.FuncMap, data interface{}) ([]byte, error) {
	t, err := template.New("glue").Funcs(funcs).Parse(tmplText)
	if err != nil {
		return nil, err
	}
	ws := &writerseeker.WriterSeeker{}
	if err := t.Execute(ws, data); err != nil {
		return nil, err
	}
	return readAll(ws), nil
}

func readAll(ws *writerseeker.WriterSeeker) []byte {
	r := ws.Reader()
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf
}

// sortedExports returns mi.Exports sorted by name for deterministic output.
func sortedExports(mi *iface.ModuleInterface) []iface.Export {
	out := append([]iface.Export{}, mi.Exports...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
