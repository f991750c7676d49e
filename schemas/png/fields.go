// Package png is a worked schema instance over the generic structured-field
// mechanism of internal/schema and internal/datastore (spec.md §4.4): it is
// not part of the core engine (spec.md §1 lists "the PNG-specific schema
// tables" among the out-of-scope collaborators), but it is the concrete
// example spec.md §8 scenarios 1 and 2 exercise, grounded on the original
// implementation's ds_png.py.
package png

import (
	"github.com/lledit/lledit/internal/datastore"
	"github.com/lledit/lledit/internal/session"
)

// Class names for every PNG-specific datastore this package registers.
// Scalar leaves reuse the core-registered UInt8/UInt16/UInt32/CString/Data
// classes directly as schema field types; only enumerations and nested
// structures need PNG-specific classes.
const (
	ClassColorType         = "PngColorType"
	ClassCompressionMethod = "PngCompressionMethod"
	ClassFilterMethod      = "PngFilterMethod"
	ClassInterlaceMethod   = "PngInterlaceMethod"
	ClassRenderingIntent   = "PngRenderingIntent"
	ClassPhysUnit          = "PngPhysUnit"

	ClassHeader         = "PngHeader"
	ClassChromaticities = "PngChromaticities"
	ClassIccProfile     = "PngIccProfile"
	ClassText           = "PngText"
	ClassTextZ          = "PngTextZ"
	ClassTextI          = "PngTextI"
	ClassPhys           = "PngPhys"
	ClassTime           = "PngTime"
	ClassChunk          = "PngChunk"
	ClassPng            = "Png"
)

func colorTypeNames() map[int64]string {
	return map[int64]string{
		0: "Grayscale",
		2: "RGB",
		3: "Palette",
		4: "Grayscale+Alpha",
		6: "RGBA",
	}
}

func compressionMethodNames() map[int64]string {
	return map[int64]string{0: "Deflate"}
}

func filterMethodNames() map[int64]string {
	return map[int64]string{0: "Adaptive"}
}

func interlaceMethodNames() map[int64]string {
	return map[int64]string{0: "None", 1: "Adam7"}
}

func renderingIntentNames() map[int64]string {
	return map[int64]string{
		0: "Perceptual",
		1: "RelativeColorimetric",
		2: "Saturation",
		3: "AbsoluteColorimetric",
	}
}

func physUnitNames() map[int64]string {
	return map[int64]string{0: "Unknown", 1: "Meter"}
}

// registerEnums installs every enumeration leaf class this package's schemas
// reference.
func registerEnums(sess *session.Session) {
	session.RegisterType(sess, ClassColorType, datastore.NewEnumerationConstructor(1, colorTypeNames()))
	session.RegisterType(sess, ClassCompressionMethod, datastore.NewEnumerationConstructor(1, compressionMethodNames()))
	session.RegisterType(sess, ClassFilterMethod, datastore.NewEnumerationConstructor(1, filterMethodNames()))
	session.RegisterType(sess, ClassInterlaceMethod, datastore.NewEnumerationConstructor(1, interlaceMethodNames()))
	session.RegisterType(sess, ClassRenderingIntent, datastore.NewEnumerationConstructor(1, renderingIntentNames()))
	session.RegisterType(sess, ClassPhysUnit, datastore.NewEnumerationConstructor(1, physUnitNames()))
}
