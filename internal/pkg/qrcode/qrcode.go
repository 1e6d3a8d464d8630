package qrcode

import (
	"encoding/base64"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// DataURL renders content as a PNG QR code wrapped in a data URL.
func DataURL(content string) (string, error) {
	png, err := goqrcode.Encode(content, goqrcode.Medium, defaultSize)
	if err != nil {
		return "", fmt.Errorf("encode qr code failed: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
