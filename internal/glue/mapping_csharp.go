package glue

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/forgebuild/forge/internal/iface"
)

// csharpPrimitives maps internal primitives to C# P/Invoke-friendly types.
var csharpPrimitives = map[iface.PrimitiveKind]string{
	iface.Void: "void", iface.Bool: "bool",
	iface.I8: "sbyte", iface.I16: "short", iface.I32: "int", iface.I64: "long",
	iface.U8: "byte", iface.U16: "ushort", iface.U32: "uint", iface.U64: "ulong",
	iface.F32: "float", iface.F64: "double",
	iface.ISize: "IntPtr", iface.USize: "UIntPtr",
}

func csharpType(t iface.Type) string {
	switch t.Kind {
	case iface.KindPointer:
		return "IntPtr"
	case iface.KindArray:
		return csharpType(*t.Element) + "[]"
	case iface.KindStruct:
		return t.StructName
	case iface.KindFunctionPtr:
		return "IntPtr" // delegate marshaling is left to the caller
	default:
		if name, ok := csharpPrimitives[t.Prim]; ok {
			return name
		}
		return "IntPtr"
	}
}

const csharpTemplate = `// Auto-generated by forge. Do not edit.
// Source module: {{.ModuleName}}
using System;
using System.Runtime.InteropServices;

namespace Forge.Generated
{
    internal static class {{.ClassName}}
    {
{{range .Exports}}        [DllImport("{{$.ModuleName}}", CallingConvention = CallingConvention.Cdecl)]
        internal static extern {{.ReturnType}} {{.Name}}({{.Params}});

{{end}}    }
}
`

type csharpExportView struct {
	Name       string
	ReturnType string
	Params     string
}

func renderCSharp(mi *iface.ModuleInterface) ([]byte, error) {
	data := struct {
		ModuleName string
		ClassName  string
		Exports    []csharpExportView
	}{
		ModuleName: mi.Module.Name,
		ClassName:  sanitizeIdent(mi.Module.Name) + "Native",
	}
	for _, exp := range sortedExports(mi) {
		var params bytes.Buffer
		for i, p := range exp.Signature.Parameters {
			if i > 0 {
				params.WriteString(", ")
			}
			fmt.Fprintf(&params, "%s %s", csharpType(p.Type), mangle(p.Name, csharpReservedWords))
		}
		data.Exports = append(data.Exports, csharpExportView{
			Name:       exp.Name,
			ReturnType: csharpType(exp.Signature.ReturnType),
			Params:     params.String(),
		})
	}
	return renderWithTemplate(csharpTemplate, template.FuncMap{}, data)
}
