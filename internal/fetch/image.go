package fetch

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"mime"
	"net/http"

	"golang.org/x/image/webp"

	"github.com/joseph-ayodele/receipts-compiler/constants"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

// normalize checks that data is a decodable receipt image and records its
// pixel size. WebP payloads are re-encoded as PNG so the document encoder can
// embed them.
func normalize(data []byte, declared string) (*entity.FetchedImage, error) {
	ct := sniff(data, declared)

	if ct == constants.ContentTypeWebP {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: webp: %v", ErrUnsupportedImage, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: png re-encode: %v", ErrUnsupportedImage, err)
		}
		b := img.Bounds()
		return &entity.FetchedImage{
			Data:        buf.Bytes(),
			ContentType: constants.ContentTypePNG,
			Width:       b.Dx(),
			Height:      b.Dy(),
		}, nil
	}

	if !constants.Embeddable(ct) {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedImage, ct)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrUnsupportedImage, format)
	}
	return &entity.FetchedImage{
		Data:        data,
		ContentType: constants.ContentTypeForFormat(format),
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// sniff prefers the declared media type unless it is missing or generic.
func sniff(data []byte, declared string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		if mt != "application/octet-stream" && mt != "binary/octet-stream" {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
