package glue

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/forgebuild/forge/internal/iface"
)

// cPrimitives is the canonical C type mapping (spec §4.9): fixed-width
// stdint.h types plus the handful of C builtins the spec calls out by
// name.
var cPrimitives = map[iface.PrimitiveKind]string{
	iface.Void: "void", iface.Bool: "_Bool",
	iface.I8: "int8_t", iface.I16: "int16_t", iface.I32: "int32_t", iface.I64: "int64_t",
	iface.U8: "uint8_t", iface.U16: "uint16_t", iface.U32: "uint32_t", iface.U64: "uint64_t",
	iface.F32: "float", iface.F64: "double",
	iface.ISize: "intptr_t", iface.USize: "size_t",
}

// cType renders t per the C type mapping (spec §4.9): pointers carry
// const for immutability, arrays of known length render as T[N], unknown
// length as T*.
func cType(t iface.Type) string {
	switch t.Kind {
	case iface.KindPointer:
		inner := cType(*t.Pointee)
		if !t.Mutable {
			return "const " + inner + " *"
		}
		return inner + " *"
	case iface.KindArray:
		if t.Length != nil {
			return fmt.Sprintf("%s[%d]", cType(*t.Element), *t.Length)
		}
		return cType(*t.Element) + " *"
	case iface.KindStruct:
		return "struct " + t.StructName
	case iface.KindFunctionPtr:
		return cFunctionPointer(*t.Signature)
	default:
		if name, ok := cPrimitives[t.Prim]; ok {
			return name
		}
		return "void *"
	}
}

func cFunctionPointer(sig iface.Signature) string {
	var params bytes.Buffer
	for i, p := range sig.Parameters {
		if i > 0 {
			params.WriteString(", ")
		}
		params.WriteString(cType(p.Type))
	}
	if params.Len() == 0 {
		params.WriteString("void")
	}
	return fmt.Sprintf("%s (*)(%s)", cType(sig.ReturnType), params.String())
}

const cHeaderTemplate = `/* Auto-generated by forge. Do not edit.
 * Source module: {{.ModuleName}}
 */
#ifndef {{.Guard}}
#define {{.Guard}}

{{if .CPlusPlus}}#ifdef __cplusplus
extern "C" {
#endif

{{end}}{{range .Exports}}{{.ReturnType}} {{.Name}}({{.Params}});
{{end}}
{{if .CPlusPlus}}#ifdef __cplusplus
}
#endif

{{end}}#endif /* {{.Guard}} */
`

type cExportView struct {
	Name       string
	ReturnType string
	Params     string
}

type cHeaderData struct {
	ModuleName string
	Guard      string
	CPlusPlus  bool
	Exports    []cExportView
}

func renderC(mi *iface.ModuleInterface, cplusplus bool) ([]byte, error) {
	data := cHeaderData{
		ModuleName: mi.Module.Name,
		Guard:      fmt.Sprintf("FORGE_%s_H_", sanitizeUpper(mi.Module.Name)),
		CPlusPlus:  cplusplus,
	}
	for _, exp := range sortedExports(mi) {
		var params bytes.Buffer
		for i, p := range exp.Signature.Parameters {
			if i > 0 {
				params.WriteString(", ")
			}
			name := mangle(p.Name, cReservedWords)
			fmt.Fprintf(&params, "%s %s", cType(p.Type), name)
		}
		data.Exports = append(data.Exports, cExportView{
			Name:       exp.Name,
			ReturnType: cType(exp.Signature.ReturnType),
			Params:     params.String(),
		})
	}
	return renderWithTemplate(cHeaderTemplate, template.FuncMap{}, data)
}

func sanitizeUpper(s string) string {
	b := []byte(sanitizeIdent(s))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
