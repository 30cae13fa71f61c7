package shader

// wgslTypeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct or parameter list
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedVar is one module-scope @group/@binding declaration
type parsedVar struct {
	group        int
	binding      int
	addressSpace string
	name         string
	typeName     string
}

// parsedEntry is the signature of a stage entry point
type parsedEntry struct {
	name       string
	params     []parsedField
	returnType string

	// returnLocation is the @location of a bare return value, -1 for a struct
	// return and -2 for a @builtin return.
	returnLocation int
}

// vertexAttribute is one location of the mesh vertex layout
type vertexAttribute struct {
	location int
	types    []string
}
