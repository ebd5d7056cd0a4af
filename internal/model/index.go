package model

// Precision is the vector quantization mode of an index.
type Precision string

const (
	PrecisionBinary  Precision = "BINARY2"
	PrecisionInt8D   Precision = "INT8D"
	PrecisionInt16D  Precision = "INT16D"
	PrecisionFloat16 Precision = "FLOAT16"
	PrecisionFloat32 Precision = "FLOAT32"
)

// IndexDescriptor fixes the identity and geometry of a vector index. Every
// vector written to the index must match Dimension and SpaceType; the
// descriptor is mutated only by explicit delete/recreate, never by queries.
type IndexDescriptor struct {
	Name           string    `json:"name"`
	Dimension      int       `json:"dimension"`
	SpaceType      string    `json:"space_type"`
	Precision      Precision `json:"precision"`
	M              int       `json:"m"`
	EfConstruction int       `json:"ef_construction"`
}
