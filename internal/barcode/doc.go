// Package barcode wraps a multi-symbology decoder behind a small Backend
// interface and adds the retry policy used by the scanner: decode the image
// as-is, and if nothing is found decode it once more rotated by 90 degrees so
// that linear codes whose bars run along the long edge are still picked up.
//
// The default backend is built on gozxing. Decoding never reports an error to
// callers of Engine; a failure of any kind is treated as "nothing found".
package barcode
