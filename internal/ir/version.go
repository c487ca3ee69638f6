package ir

// Version constants for the record schema and engine.
const (
	// RecordVersion is the persistence record schema version.
	RecordVersion = "1"

	// EngineVersion is the rule engine version.
	EngineVersion = "0.1.0"
)
