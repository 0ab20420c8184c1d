// Package codeimage renders scannable code artifacts (QR and Code128) to disk.
//
// Rendering is best-effort by contract: callers creating bundles or challans
// must treat a failed render as a missing artifact, not as an error.
package codeimage

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	qrcode "github.com/skip2/go-qrcode"
)

// Renderer produces image files for scannable payloads.
type Renderer interface {
	RenderQR(payload, name string) (string, error)
	RenderBarcode(payload, name string) (string, error)
}

// FileRenderer writes PNG artifacts under a base directory.
type FileRenderer struct {
	qrDir      string
	barcodeDir string
}

// NewFileRenderer creates the output directories if needed.
func NewFileRenderer(qrDir, barcodeDir string) (*FileRenderer, error) {
	for _, dir := range []string{qrDir, barcodeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("codeimage: create dir %s: %w", dir, err)
		}
	}
	return &FileRenderer{qrDir: qrDir, barcodeDir: barcodeDir}, nil
}

// RenderQR writes a QR code PNG for the payload and returns its path.
func (r *FileRenderer) RenderQR(payload, name string) (string, error) {
	path := filepath.Join(r.qrDir, name+".png")
	if err := qrcode.WriteFile(payload, qrcode.Medium, 256, path); err != nil {
		return "", fmt.Errorf("codeimage: qr %s: %w", name, err)
	}
	return path, nil
}

// RenderBarcode writes a Code128 PNG for the payload and returns its path.
func (r *FileRenderer) RenderBarcode(payload, name string) (string, error) {
	code, err := code128.Encode(payload)
	if err != nil {
		return "", fmt.Errorf("codeimage: encode %s: %w", name, err)
	}
	scaled, err := barcode.Scale(code, 400, 120)
	if err != nil {
		return "", fmt.Errorf("codeimage: scale %s: %w", name, err)
	}

	path := filepath.Join(r.barcodeDir, name+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("codeimage: create %s: %w", name, err)
	}
	defer f.Close()

	if err := png.Encode(f, scaled); err != nil {
		return "", fmt.Errorf("codeimage: encode png %s: %w", name, err)
	}
	return path, nil
}
