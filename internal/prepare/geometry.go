package prepare

import "image"

// VisibleSize returns the size of the frame as the user sees it.
func VisibleSize(frame image.Point, rot Rotation) image.Point {
	if rot.Transposed() {
		return image.Pt(frame.Y, frame.X)
	}
	return frame
}

// CropRect selects the region of a frame of the given size that shows the
// viewfinder vf, which is expressed in visible coordinates. An empty vf
// selects the whole visible frame. The result starts at the frame origin
// (0, 0) and may be empty when vf lies outside the visible frame.
func CropRect(frame image.Point, vf image.Rectangle, rot Rotation) image.Rectangle {
	visible := image.Rectangle{Max: VisibleSize(frame, rot)}
	if vf.Empty() {
		vf = visible
	}
	vf = vf.Intersect(visible)
	if vf.Empty() {
		return image.Rectangle{}
	}

	w, h := frame.X, frame.Y
	switch rot {
	case Rotate90:
		return image.Rect(w-vf.Max.Y, vf.Min.X, w-vf.Min.Y, vf.Max.X)
	case Rotate180:
		return image.Rect(w-vf.Max.X, h-vf.Max.Y, w-vf.Min.X, h-vf.Min.Y)
	case Rotate270:
		return image.Rect(vf.Min.Y, h-vf.Max.X, vf.Max.Y, h-vf.Min.X)
	default:
		return vf
	}
}

// toFrame maps a continuous point of the right-side-up crop back into the
// coordinates of the capture the crop was taken from.
func toFrame(crop image.Rectangle, rot Rotation, x, y float64) (float64, float64) {
	cx, cy := float64(crop.Min.X), float64(crop.Min.Y)
	cw, ch := float64(crop.Dx()), float64(crop.Dy())

	switch rot {
	case Rotate90:
		return cx + cw - y, cy + x
	case Rotate180:
		return cx + cw - x, cy + ch - y
	case Rotate270:
		return cx + y, cy + ch - x
	default:
		return cx + x, cy + y
	}
}
