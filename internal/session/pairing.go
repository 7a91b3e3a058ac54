package session

import (
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	"github.com/skip2/go-qrcode"
	"github.com/vincent-petithory/dataurl"
)

// qrImageSize is the edge length in pixels of the rendered pairing image.
const qrImageSize = 256

// QRRenderer turns a pairing code into an image data URL.
type QRRenderer func(code string) (string, error)

// RenderPNG encodes code as a 256px PNG QR image wrapped in a data URL.
func RenderPNG(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return dataurl.New(png, "image/png").String(), nil
}

// PrintTerminal writes code as a half-block QR suitable for a terminal.
func PrintTerminal(w io.Writer, code string) {
	qrterminal.GenerateHalfBlock(code, qrterminal.L, w)
}
