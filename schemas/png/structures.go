package png

import (
	"github.com/lledit/lledit/internal/datastore"
	"github.com/lledit/lledit/internal/schema"
	"github.com/lledit/lledit/internal/session"
)

func headerSchema() schema.Schema {
	return schema.Schema{
		schema.NewField("Width", "UInt32", schema.Size(4)),
		schema.NewField("Height", "UInt32", schema.Size(4)),
		schema.NewField("BitDepth", "UInt8", schema.Size(1)),
		schema.NewField("ColorType", ClassColorType, schema.Size(1)),
		schema.NewField("CompressionMethod", ClassCompressionMethod, schema.Size(1)),
		schema.NewField("FilterMethod", ClassFilterMethod, schema.Size(1)),
		schema.NewField("InterlaceMethod", ClassInterlaceMethod, schema.Size(1)),
	}
}

func chromaticitiesSchema() schema.Schema {
	s := schema.Schema{}
	for _, name := range []string{"WhitePointX", "WhitePointY", "RedX", "RedY", "GreenX", "GreenY", "BlueX", "BlueY"} {
		s = append(s, schema.NewField(name, "UInt32", schema.Size(4)))
	}
	return s
}

func iccProfileSchema() schema.Schema {
	return schema.Schema{
		schema.NewField("ProfileName", "CString"),
		schema.NewField("CompressionMethod", ClassCompressionMethod, schema.Size(1)),
		schema.NewField("CompressedProfile", "Data"),
	}
}

func textSchema() schema.Schema {
	return schema.Schema{
		schema.NewField("Keyword", "CString"),
		schema.NewField("Text", "Data"),
	}
}

func textZSchema() schema.Schema {
	return schema.Schema{
		schema.NewField("Keyword", "CString"),
		schema.NewField("CompressionMethod", ClassCompressionMethod, schema.Size(1)),
		schema.NewField("CompressedText", "Data"),
	}
}

func textISchema() schema.Schema {
	return schema.Schema{
		schema.NewField("Keyword", "CString"),
		schema.NewField("CompressionFlag", "Boolean", schema.Size(1)),
		schema.NewField("CompressionMethod", ClassCompressionMethod, schema.Size(1)),
		schema.NewField("LanguageTag", "CString"),
		schema.NewField("TranslatedKeyword", "CString"),
		schema.NewField("RawText", "Data"),
	}
}

func physSchema() schema.Schema {
	return schema.Schema{
		schema.NewField("XPixelsPerUnit", "UInt32", schema.Size(4)),
		schema.NewField("YPixelsPerUnit", "UInt32", schema.Size(4)),
		schema.NewField("Unit", ClassPhysUnit, schema.Size(1)),
	}
}

func timeSchema() schema.Schema {
	return schema.Schema{
		schema.NewField("Year", "UInt16", schema.Size(2)),
		schema.NewField("Month", "UInt8", schema.Size(1)),
		schema.NewField("Day", "UInt8", schema.Size(1)),
		schema.NewField("Hour", "UInt8", schema.Size(1)),
		schema.NewField("Minute", "UInt8", schema.Size(1)),
		schema.NewField("Second", "UInt8", schema.Size(1)),
	}
}

// chunkSchema is PNG's general chunk envelope (length-prefixed, typed,
// CRC-suffixed), with a handful of well-known chunk types additionally
// decoded in place over the raw payload via starts_with/ends_with, exactly
// as ds_png.py's PngChunk.__fields__ does it. The "zTXt" type code corrects
// a typo in the original ('xTXt' is not a PNG chunk type).
func chunkSchema() schema.Schema {
	return schema.Schema{
		schema.NewField("Length", "UInt32", schema.Size(4)),
		schema.NewField("Type", "Data", schema.Size(4)),
		schema.NewField("RawData", "Data", schema.SizeIs("Length")),
		schema.NewField("CRC", "UInt32", schema.Size(4)),

		schema.NewField("Header", ClassHeader,
			schema.IfEqual("Type", []byte("IHDR")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
		schema.NewField("Gamma", "UInt32",
			schema.IfEqual("Type", []byte("gAMA")), schema.StartsWith("RawData"), schema.Size(4)),
		schema.NewField("Chromaticities", ClassChromaticities,
			schema.IfEqual("Type", []byte("cHRM")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
		schema.NewField("IccProfile", ClassIccProfile,
			schema.IfEqual("Type", []byte("iCCP")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
		schema.NewField("Text", ClassText,
			schema.IfEqual("Type", []byte("tEXt")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
		schema.NewField("TextZ", ClassTextZ,
			schema.IfEqual("Type", []byte("zTXt")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
		schema.NewField("TextI", ClassTextI,
			schema.IfEqual("Type", []byte("iTXt")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
		schema.NewField("PhysicalDimensions", ClassPhys,
			schema.IfEqual("Type", []byte("pHYs")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
		schema.NewField("MTime", ClassTime,
			schema.IfEqual("Type", []byte("tIME")), schema.StartsWith("RawData"), schema.EndsWith("RawData")),
	}
}

// Register installs every PNG-specific datastore class (enumerations,
// nested chunk-payload structures, the chunk envelope, and the top-level
// Png type) into sess, in addition to whatever datastore.RegisterCore has
// already installed. A caller that wants "?Png" typed views to resolve
// calls datastore.RegisterCore(sess) followed by png.Register(sess).
func Register(sess *session.Session) {
	registerEnums(sess)

	session.RegisterType(sess, ClassHeader, datastore.NewStructureConstructor(headerSchema()))
	session.RegisterType(sess, ClassChromaticities, datastore.NewStructureConstructor(chromaticitiesSchema()))
	session.RegisterType(sess, ClassIccProfile, datastore.NewStructureConstructor(iccProfileSchema()))
	session.RegisterType(sess, ClassText, datastore.NewStructureConstructor(textSchema()))
	session.RegisterType(sess, ClassTextZ, datastore.NewStructureConstructor(textZSchema()))
	session.RegisterType(sess, ClassTextI, datastore.NewStructureConstructor(textISchema()))
	session.RegisterType(sess, ClassPhys, datastore.NewStructureConstructor(physSchema()))
	session.RegisterType(sess, ClassTime, datastore.NewStructureConstructor(timeSchema()))
	session.RegisterType(sess, ClassChunk, datastore.NewStructureConstructor(chunkSchema()))

	session.RegisterType(sess, ClassPng, NewPng)
}
