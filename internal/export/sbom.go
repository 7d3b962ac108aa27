package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/csnp/qbom/internal/trace"
)

// toCycloneDX renders a CycloneDX 1.5 SBOM. Environment packages become
// components and the full trace rides along as an extension.
func toCycloneDX(t trace.Trace) ([]byte, error) {
	doc, err := traceDocument(t)
	if err != nil {
		return nil, err
	}

	component := map[string]any{
		"type":    "application",
		"name":    "quantum-experiment",
		"version": t.ID,
	}
	if t.Metadata.Name != nil {
		component["name"] = *t.Metadata.Name
	}
	if t.Metadata.Description != nil {
		component["description"] = *t.Metadata.Description
	}

	var components []map[string]any
	if t.Environment != nil {
		for _, pkg := range t.Environment.Packages {
			components = append(components, map[string]any{
				"type":    "library",
				"name":    pkg.Name,
				"version": pkg.Version,
				"purl":    pkg.PackageURL(),
			})
		}
	}

	externalRefs := []map[string]any{}
	if t.Metadata.Paper != nil {
		externalRefs = append(externalRefs, map[string]any{
			"type": "documentation",
			"url":  *t.Metadata.Paper,
		})
	}

	sbom := map[string]any{
		"$schema":      "http://cyclonedx.org/schema/bom-1.5.schema.json",
		"bomFormat":    "CycloneDX",
		"specVersion":  "1.5",
		"version":      1,
		"serialNumber": "urn:uuid:" + t.ID,
		"metadata": map[string]any{
			"timestamp": t.CreatedAt.Format(time.RFC3339),
			"component": component,
			"properties": []map[string]any{
				{"name": "qbom:version", "value": t.Version},
				{"name": "qbom:content-hash", "value": t.ContentHash()},
			},
		},
		"components":         components,
		"externalReferences": externalRefs,
		"extensions":         map[string]any{"qbom": doc},
	}

	return json.MarshalIndent(sbom, "", "  ")
}

// toSPDX renders an SPDX 2.3 SBOM. The experiment is the described
// package, environment packages are dependencies, and the full trace is
// embedded in an annotation.
func toSPDX(t trace.Trace) ([]byte, error) {
	doc, err := traceDocument(t)
	if err != nil {
		return nil, err
	}

	name := "qbom-trace-" + t.ID
	if t.Metadata.Name != nil {
		name = *t.Metadata.Name
	}

	creators := []string{"Tool: qbom-" + t.Version}
	for _, author := range t.Metadata.Authors {
		creators = append(creators, "Person: "+author)
	}

	spdx := map[string]any{
		"spdxVersion":       "SPDX-2.3",
		"dataLicense":       "CC0-1.0",
		"SPDXID":            "SPDXRef-DOCUMENT",
		"name":              name,
		"documentNamespace": "https://qbom.csnp.org/spdx/" + t.ID,
		"creationInfo": map[string]any{
			"created":            t.CreatedAt.Format(time.RFC3339),
			"creators":           creators,
			"licenseListVersion": "3.19",
		},
		"packages":      spdxPackages(t),
		"relationships": spdxRelationships(t),
		"annotations":   spdxAnnotations(t, doc),
	}

	if t.Metadata.Paper != nil {
		spdx["externalDocumentRefs"] = []map[string]any{
			{
				"externalDocumentId": "DocumentRef-paper",
				"spdxDocument":       *t.Metadata.Paper,
				"checksum": map[string]any{
					"algorithm":     "SHA256",
					"checksumValue": "0000000000000000000000000000000000000000000000000000000000000000", // Placeholder
				},
			},
		}
	}

	return json.MarshalIndent(spdx, "", "  ")
}

func spdxPackages(t trace.Trace) []map[string]any {
	name := "quantum-experiment"
	if t.Metadata.Name != nil {
		name = *t.Metadata.Name
	}
	comment := "Quantum computing experiment"
	if t.Metadata.Description != nil {
		comment = *t.Metadata.Description
	}
	if t.Hardware != nil {
		comment += " | Backend: " + t.Hardware.Backend
		if t.Hardware.Calibration != nil {
			comment += " | Calibration: " + t.Hardware.Calibration.Timestamp.Format(time.RFC3339)
		}
	}

	packages := []map[string]any{
		{
			"SPDXID":           "SPDXRef-QuantumExperiment",
			"name":             name,
			"versionInfo":      t.ID,
			"downloadLocation": "NOASSERTION",
			"filesAnalyzed":    false,
			"supplier":         "NOASSERTION",
			"originator":       "NOASSERTION",
			"licenseConcluded": "NOASSERTION",
			"licenseDeclared":  "NOASSERTION",
			"copyrightText":    "NOASSERTION",
			"comment":          comment,
			"externalRefs": []map[string]any{
				{
					"referenceCategory": "OTHER",
					"referenceType":     "qbom",
					"referenceLocator":  "qbom:" + t.ID,
					"comment":           "QBOM content hash: " + t.ContentHash(),
				},
			},
		},
	}

	if t.Environment != nil {
		for idx, pkg := range t.Environment.Packages {
			packages = append(packages, map[string]any{
				"SPDXID":           fmt.Sprintf("SPDXRef-Package-%d", idx),
				"name":             pkg.Name,
				"versionInfo":      pkg.Version,
				"downloadLocation": "NOASSERTION",
				"filesAnalyzed":    false,
				"supplier":         "NOASSERTION",
				"originator":       "NOASSERTION",
				"licenseConcluded": "NOASSERTION",
				"licenseDeclared":  "NOASSERTION",
				"copyrightText":    "NOASSERTION",
				"externalRefs": []map[string]any{
					{
						"referenceCategory": "PACKAGE-MANAGER",
						"referenceType":     "purl",
						"referenceLocator":  pkg.PackageURL(),
					},
				},
			})
		}
	}

	return packages
}

func spdxRelationships(t trace.Trace) []map[string]any {
	relationships := []map[string]any{
		{
			"spdxElementId":      "SPDXRef-DOCUMENT",
			"relatedSpdxElement": "SPDXRef-QuantumExperiment",
			"relationshipType":   "DESCRIBES",
		},
	}
	if t.Environment != nil {
		for idx := range t.Environment.Packages {
			relationships = append(relationships, map[string]any{
				"spdxElementId":      "SPDXRef-QuantumExperiment",
				"relatedSpdxElement": fmt.Sprintf("SPDXRef-Package-%d", idx),
				"relationshipType":   "DEPENDS_ON",
			})
		}
	}
	return relationships
}

func spdxAnnotations(t trace.Trace, doc map[string]any) []map[string]any {
	summary := map[string]any{
		"qbom_version": t.Version,
		"trace_id":     t.ID,
		"content_hash": t.ContentHash(),
		"summary":      t.Summary(),
		"circuits":     len(t.Circuits),
		"full_qbom":    doc,
	}
	if t.Hardware != nil {
		summary["hardware"] = map[string]any{
			"backend":      t.Hardware.Backend,
			"qubits_used":  t.Hardware.QubitsUsed,
			"is_simulator": t.Hardware.IsSimulator,
		}
	}
	if t.Execution != nil {
		summary["execution"] = map[string]any{"shots": t.Execution.Shots}
	}

	comment, err := json.Marshal(summary)
	if err != nil {
		comment = []byte("{}")
	}

	return []map[string]any{
		{
			"annotationDate": t.CreatedAt.Format(time.RFC3339),
			"annotationType": "OTHER",
			"annotator":      "Tool: qbom",
			"comment":        string(comment),
		},
	}
}
