package utils

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// GenerateQRCode encodes link as a 256px PNG QR code.
func GenerateQRCode(link string) ([]byte, error) {
	if link == "" {
		return nil, fmt.Errorf("empty link")
	}
	// qrcode.Medium recovers from ~15% damage.
	qrBytes, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return qrBytes, nil
}
