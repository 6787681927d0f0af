package sandbox

// Canonical validation images, one per supported project kind.
const (
	ImageNodeJS = "node:20-bookworm"
	ImagePython = "python:3.12-bookworm"
)

func imageFor(kind ProjectKind) string {
	switch kind {
	case KindNodeJS:
		return ImageNodeJS
	case KindPython:
		return ImagePython
	default:
		return ""
	}
}
