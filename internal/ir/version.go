package ir

// EngineVersion is recorded with every stored run.
const EngineVersion = "0.3.0"
