package goodsparser

// Parser extracts structured attributes from goods descriptions.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	lib *Library
}

// NewParser creates a parser over the given library; nil selects DefaultLibrary
func NewParser(lib *Library) *Parser {
	if lib == nil {
		lib = DefaultLibrary()
	}
	return &Parser{lib: lib}
}

// Library returns the pattern library the parser was built with
func (p *Parser) Library() *Library {
	return p.lib
}

// Parse runs every extraction stage over one description.
//
// Stage order matters: capacity is extracted before the unit is resolved, the
// unit finalises the capacity, and the finalised capacity feeds the quantity.
// An empty description returns DefaultRecord with an empty model name.
func (p *Parser) Parse(description, category string) ParsedRecord {
	record := DefaultRecord()
	if category != "" {
		record.Category = strPtr(category)
	}
	if description == "" {
		return record
	}

	lib := p.lib
	record.Material = lib.ClassifyMaterial(description)
	record.ModelNumber = lib.ExtractModelNumber(description)
	record.Price = lib.ExtractPrice(description)

	capacity := lib.ExtractCapacity(description)
	record.UnitOfMeasure = lib.ResolveUnit(description, capacity)
	record.Capacity = FinalizeCapacity(capacity, record.UnitOfMeasure)
	record.Quantity = lib.ResolveQuantity(description, record.Capacity)

	record.ModelName = lib.CleanModelName(description)

	return record
}

var defaultParser = NewParser(nil)

// Parse parses one description with the default pattern library
func Parse(description, category string) ParsedRecord {
	return defaultParser.Parse(description, category)
}
