package constants

import "strings"

const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// embeddable holds the declared media types the document encoder can embed directly.
var embeddable = map[string]struct{}{
	ContentTypeJPEG: {},
	"image/jpg":     {},
	"image/pjpeg":   {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
}

// Embeddable reports whether a receipt with this media type can be placed as-is.
func Embeddable(contentType string) bool {
	_, ok := embeddable[strings.ToLower(contentType)]
	return ok
}

// ContentTypeForFormat maps an image.DecodeConfig format name to its media type.
func ContentTypeForFormat(format string) string {
	switch format {
	case "jpeg":
		return ContentTypeJPEG
	case "png":
		return ContentTypePNG
	case "gif":
		return ContentTypeGIF
	case "webp":
		return ContentTypeWebP
	}
	return ""
}

// EncoderImageType returns the image type name the PDF encoder expects.
func EncoderImageType(contentType string) string {
	switch contentType {
	case ContentTypeJPEG:
		return "JPG"
	case ContentTypePNG:
		return "PNG"
	case ContentTypeGIF:
		return "GIF"
	}
	return ""
}
