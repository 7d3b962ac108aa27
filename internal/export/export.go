// Package export renders traces into interchange formats: the native
// JSON form, YAML, MessagePack archives, and CycloneDX/SPDX SBOMs with
// the full trace embedded as an extension.
package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/csnp/qbom/internal/trace"
)

// Format identifies an export format.
type Format string

const (
	FormatJSON      Format = "json"
	FormatYAML      Format = "yaml"
	FormatMsgpack   Format = "msgpack"
	FormatCycloneDX Format = "cyclonedx"
	FormatSPDX      Format = "spdx"
)

// Formats lists all supported export formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatMsgpack, FormatCycloneDX, FormatSPDX}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format: %s", name)
}

// Export renders a trace in the requested format.
func Export(t trace.Trace, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return t.ToJSON()
	case FormatYAML:
		return toYAML(t)
	case FormatMsgpack:
		return toMsgpack(t)
	case FormatCycloneDX:
		return toCycloneDX(t)
	case FormatSPDX:
		return toSPDX(t)
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
}

// WriteFile exports a trace to a file.
func WriteFile(t trace.Trace, path string, format Format) error {
	data, err := Export(t, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// traceDocument returns the serialized trace as a generic document, with
// the computed summary and content hash included. Going through the JSON
// form keeps field names identical across all formats.
func traceDocument(t trace.Trace) (map[string]any, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("serialize trace: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode trace document: %w", err)
	}
	return doc, nil
}

func toYAML(t trace.Trace) ([]byte, error) {
	doc, err := traceDocument(t)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

func toMsgpack(t trace.Trace) ([]byte, error) {
	doc, err := traceDocument(t)
	if err != nil {
		return nil, err
	}
	out, err := msgpack.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode msgpack: %w", err)
	}
	return out, nil
}

// DecodeMsgpack reloads a msgpack archive back into a Trace.
func DecodeMsgpack(data []byte) (trace.Trace, error) {
	var doc map[string]any
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return trace.Trace{}, fmt.Errorf("decode msgpack: %w", err)
	}
	serialized, err := json.Marshal(doc)
	if err != nil {
		return trace.Trace{}, fmt.Errorf("reserialize msgpack document: %w", err)
	}
	return trace.FromJSON(serialized)
}
