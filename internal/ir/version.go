package ir

// Version constants for the layout IR and the route engine.
const (
	// IRVersion is the layout IR schema version. It is mixed into every
	// structural route key so a schema change invalidates cached routes.
	IRVersion = "1"

	// EngineVersion is the gridroute engine version.
	EngineVersion = "0.1.0"
)
