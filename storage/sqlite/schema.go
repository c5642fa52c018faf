package sqlite

// SchemaVersion is the highest migration version shipped in migrations/
const SchemaVersion = 1

// GetSchemaVersion returns the current schema version
func GetSchemaVersion() int {
	return SchemaVersion
}
