package iface

import (
	"bytes"
	"encoding/json"
)

// Parse decodes a ModuleInterface from its JSON wire form (spec §6).
func Parse(data []byte) (*ModuleInterface, error) {
	var mi ModuleInterface
	if err := json.Unmarshal(data, &mi); err != nil {
		return nil, err
	}
	return &mi, nil
}

// Marshal renders mi back to its canonical JSON wire form, indented for
// human readability. Re-parsing the result and marshaling again yields a
// byte-identical document (spec §8's round-trip law), since encoding/json
// always emits struct fields in declaration order.
func (mi *ModuleInterface) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(mi); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
