package element

import (
	"encoding/json"
	"fmt"
	"io"
)

// Marshal encodes elements as an indented JSON array.
func Marshal(els []Element) ([]byte, error) {
	if els == nil {
		els = []Element{}
	}
	return json.MarshalIndent(els, "", "  ")
}

// Unmarshal decodes a JSON array produced by Marshal.
func Unmarshal(data []byte) ([]Element, error) {
	var els []Element
	if err := json.Unmarshal(data, &els); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	for i, e := range els {
		if !e.Kind.Valid() {
			return nil, fmt.Errorf("decode elements: element %d has unknown type %q", i, e.Kind)
		}
	}
	return els, nil
}

// Write encodes elements to w.
func Write(w io.Writer, els []Element) error {
	data, err := Marshal(els)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
