package constants

import "strings"

// MaxReceiptFileSize is the default per-file upload limit (10 MiB).
const MaxReceiptFileSize int64 = 10 << 20

// AllowedReceiptMimeTypes holds the accepted receipt content types.
var AllowedReceiptMimeTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"image/gif":       {},
	"application/pdf": {},
}

// ExtensionForMime maps an accepted content type to the stored file extension.
var ExtensionForMime = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// ReceiptKeyPrefix is the object key prefix for stored receipts.
const ReceiptKeyPrefix = "payment_receipts"

// NormalizeMime lowercases a content type and drops any parameters.
func NormalizeMime(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
