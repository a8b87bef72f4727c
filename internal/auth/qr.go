package auth

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of rendered QR images
const QRSize = 256

const dataURLPrefix = "data:image/png;base64,"

// RenderQRPNG renders a pairing challenge as a PNG image
func RenderQRPNG(code string) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("empty QR code")
	}
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	png, err := qr.PNG(QRSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}
	return png, nil
}

// RenderQRDataURL renders a pairing challenge as a PNG data URL
func RenderQRDataURL(code string) (string, error) {
	png, err := RenderQRPNG(code)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
