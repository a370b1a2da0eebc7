package imaging

import (
	"image"

	"github.com/beevik/etree"
)

// AssetKind distinguishes bitmap uploads from vector documents.
type AssetKind string

const (
	AssetRaster AssetKind = "raster"
	AssetVector AssetKind = "vector"
)

// DecodedAsset is an uploaded file decoded into memory. It is immutable once
// loaded; a new upload replaces it wholesale.
type DecodedAsset struct {
	Kind      AssetKind
	Width     int
	Height    int
	Name      string
	MediaType string

	bitmap   image.Image
	document *etree.Document
}

// Bitmap returns the decoded pixels of a raster asset, or nil for vector assets.
func (a *DecodedAsset) Bitmap() image.Image {
	return a.bitmap
}

// Document returns a copy of the parsed vector document, or nil for raster
// assets. Callers may modify the copy freely.
func (a *DecodedAsset) Document() *etree.Document {
	if a.document == nil {
		return nil
	}
	return a.document.Copy()
}
