package modal

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/HerbHall/welfaredesk/pkg/models"
)

// Upload limits.
const (
	MaxImageBytes = 5 << 20
	MaxPDFBytes   = 10 << 20
)

// ImageTypes are the accepted image MIME types.
var ImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// CheckFile validates an upload for an entity's file kind. An empty
// contentType is sniffed from data.
func CheckFile(kind models.FileKind, field, contentType string, data []byte) (string, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))

	switch kind {
	case models.FileKindImage:
		if !slices.Contains(ImageTypes, contentType) {
			return "", &ValidationError{Field: field, Message: "Please select a valid image file (JPEG, PNG, GIF or WebP)."}
		}
		if len(data) > MaxImageBytes {
			return "", &ValidationError{Field: field, Message: fmt.Sprintf("Image must be %d MB or smaller.", MaxImageBytes>>20)}
		}
	case models.FileKindPDF:
		if contentType != "application/pdf" {
			return "", &ValidationError{Field: field, Message: "Please select a PDF file."}
		}
		if len(data) > MaxPDFBytes {
			return "", &ValidationError{Field: field, Message: fmt.Sprintf("PDF must be %d MB or smaller.", MaxPDFBytes>>20)}
		}
	default:
		return "", &ValidationError{Field: field, Message: "This form does not accept files."}
	}
	if len(data) == 0 {
		return "", &ValidationError{Field: field, Message: "The selected file is empty."}
	}
	return contentType, nil
}
