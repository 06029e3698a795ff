package utils

import (
    "strings"

    qrcode "github.com/skip2/go-qrcode"
)

// TicketURIPrefix is the scheme wrapped around signed tokens inside QR codes.
const TicketURIPrefix = "jo://ticket/"

// qrSize is the PNG edge length in pixels.
const qrSize = 320

// TicketURI wraps a signed token into the URI scanners read from the QR code.
func TicketURI(token string) string {
    return TicketURIPrefix + token
}

// StripTicketURI returns the bare token from either a wrapped URI or a raw
// token.  Surrounding whitespace is ignored.
func StripTicketURI(raw string) string {
    raw = strings.TrimSpace(raw)
    return strings.TrimPrefix(raw, TicketURIPrefix)
}

// RenderTicketQR encodes the wrapped token as a PNG QR code.
func RenderTicketQR(token string) ([]byte, error) {
    return qrcode.Encode(TicketURI(token), qrcode.Medium, qrSize)
}
