package imaging

import (
	"bytes"
	"errors"
	"mime"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	// Register the decoders not covered by the imaging package itself.
	_ "golang.org/x/image/webp"
)

const mediaTypeSVG = "image/svg+xml"

var rasterMediaTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

var extensionMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".svg":  mediaTypeSVG,
}

// Aliases some browsers and tools send instead of the registered name.
var mediaTypeAliases = map[string]string{
	"image/jpg":      "image/jpeg",
	"image/pjpeg":    "image/jpeg",
	"image/x-png":    "image/png",
	"image/x-ms-bmp": "image/bmp",
	"image/svg":      mediaTypeSVG,
}

// AcceptedMediaTypes lists the media types a tool accepts. The scale tool only
// takes vector documents; the other tools take bitmaps and vectors.
func AcceptedMediaTypes(tool Tool) []string {
	if tool == ToolScale {
		return []string{mediaTypeSVG}
	}
	return append(slices.Clone(rasterMediaTypes), mediaTypeSVG)
}

// Load validates an uploaded file against the tool's accepted media types and
// decodes it. declaredType is the type reported by the client; when it is
// missing or generic, the file extension and then the content decide.
func Load(tool Tool, name, declaredType string, data []byte) (*DecodedAsset, error) {
	if len(data) == 0 {
		return nil, validationErrorf("file", "empty upload")
	}

	mediaType, err := resolveMediaType(name, declaredType, data)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(AcceptedMediaTypes(tool), mediaType) {
		return nil, mediaTypeErrorf("media type %s is not accepted by the %s tool", mediaType, tool)
	}

	if mediaType == mediaTypeSVG {
		return loadVector(name, data)
	}
	return loadRaster(name, mediaType, data)
}

func resolveMediaType(name, declaredType string, data []byte) (string, error) {
	mediaType := normalizeMediaType(declaredType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = extensionMediaTypes[strings.ToLower(filepath.Ext(name))]
	}

	detected := mimetype.Detect(data)
	if mediaType == "" {
		mediaType = normalizeMediaType(detected.String())
	}

	// A file that plainly is the other family than declared is rejected here
	// rather than surfacing as a decode failure.
	switch {
	case mediaType == mediaTypeSVG && isRasterMIME(detected):
		return "", mediaTypeErrorf("declared %s but content is %s", mediaType, detected.String())
	case mediaType != mediaTypeSVG && detected.Is(mediaTypeSVG):
		return "", mediaTypeErrorf("declared %s but content is %s", mediaType, mediaTypeSVG)
	}

	if mediaType == "" {
		return "", mediaTypeErrorf("could not determine media type of %q", name)
	}
	return mediaType, nil
}

func normalizeMediaType(value string) string {
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		mediaType = value
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if alias, ok := mediaTypeAliases[mediaType]; ok {
		return alias
	}
	return mediaType
}

func isRasterMIME(m *mimetype.MIME) bool {
	for _, t := range rasterMediaTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

func loadRaster(name, mediaType string, data []byte) (*DecodedAsset, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Name: name, Err: errors.New("image has no pixels")}
	}

	return &DecodedAsset{
		Kind:      AssetRaster,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Name:      name,
		MediaType: mediaType,
		bitmap:    img,
	}, nil
}
