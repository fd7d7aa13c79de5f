// Package render writes generated newsletter artifacts to disk.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputDir is used when no output directory is given.
const DefaultOutputDir = "newsletters"

// Artifacts records where a run's files were written.
type Artifacts struct {
	HTMLPath string
	PDFPath  string
}

// WriteFile writes data to outputDir/filename, creating the directory.
func WriteFile(data []byte, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	return filePath, nil
}

// WriteArtifacts writes html as <base>.html and, when pdf is non-empty,
// pdf as <base>.pdf. pdfName must end in .pdf.
func WriteArtifacts(outputDir, pdfName, html string, pdf []byte) (Artifacts, error) {
	base := strings.TrimSuffix(pdfName, filepath.Ext(pdfName))

	var out Artifacts
	htmlPath, err := WriteFile([]byte(html), outputDir, base+".html")
	if err != nil {
		return out, err
	}
	out.HTMLPath = htmlPath

	if len(pdf) > 0 {
		pdfPath, err := WriteFile(pdf, outputDir, base+".pdf")
		if err != nil {
			return out, err
		}
		out.PDFPath = pdfPath
	}
	return out, nil
}
