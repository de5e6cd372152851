package glue

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/forgebuild/forge/internal/iface"
)

// rustPrimitives is the canonical Rust-style native type mapping (spec
// §4.9).
var rustPrimitives = map[iface.PrimitiveKind]string{
	iface.Void: "()", iface.Bool: "bool",
	iface.I8: "i8", iface.I16: "i16", iface.I32: "i32", iface.I64: "i64",
	iface.U8: "u8", iface.U16: "u16", iface.U32: "u32", iface.U64: "u64",
	iface.F32: "f32", iface.F64: "f64",
	iface.ISize: "isize", iface.USize: "usize",
}

// rustType renders t per the Rust-style mapping: pointers render as
// *mut T / *const T respecting mutability.
func rustType(t iface.Type) string {
	switch t.Kind {
	case iface.KindPointer:
		if t.Mutable {
			return "*mut " + rustType(*t.Pointee)
		}
		return "*const " + rustType(*t.Pointee)
	case iface.KindArray:
		if t.Length != nil {
			return fmt.Sprintf("[%s; %d]", rustType(*t.Element), *t.Length)
		}
		return "*const " + rustType(*t.Element)
	case iface.KindStruct:
		return t.StructName
	case iface.KindFunctionPtr:
		return rustFunctionPointer(*t.Signature)
	default:
		if name, ok := rustPrimitives[t.Prim]; ok {
			return name
		}
		return "*const std::ffi::c_void"
	}
}

func rustFunctionPointer(sig iface.Signature) string {
	var params bytes.Buffer
	for i, p := range sig.Parameters {
		if i > 0 {
			params.WriteString(", ")
		}
		params.WriteString(rustType(p.Type))
	}
	return fmt.Sprintf("extern \"C\" fn(%s) -> %s", params.String(), rustType(sig.ReturnType))
}

const rustExternTemplate = `// Auto-generated by forge. Do not edit.
// Source module: {{.ModuleName}}

#[link(name = "{{.ModuleName}}")]
extern "C" {
{{range .Exports}}    pub fn {{.Name}}({{.Params}}){{.Return}};
{{end}}}
`

type rustExportView struct {
	Name   string
	Params string
	Return string
}

func renderRust(mi *iface.ModuleInterface) ([]byte, error) {
	data := struct {
		ModuleName string
		Exports    []rustExportView
	}{ModuleName: mi.Module.Name}

	for _, exp := range sortedExports(mi) {
		var params bytes.Buffer
		for i, p := range exp.Signature.Parameters {
			if i > 0 {
				params.WriteString(", ")
			}
			fmt.Fprintf(&params, "%s: %s", mangle(p.Name, rustReservedWords), rustType(p.Type))
		}
		ret := ""
		isVoid := exp.Signature.ReturnType.IsPrimitive() && exp.Signature.ReturnType.Prim == iface.Void
		if !isVoid {
			ret = " -> " + rustType(exp.Signature.ReturnType)
		}
		data.Exports = append(data.Exports, rustExportView{
			Name:   mangle(exp.Name, rustReservedWords),
			Params: params.String(),
			Return: ret,
		})
	}
	return renderWithTemplate(rustExternTemplate, template.FuncMap{}, data)
}
