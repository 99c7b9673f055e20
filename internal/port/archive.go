package port

// ArchiveCatalog looks up script files across a set of game archives.
// Names are matched by base name, case-insensitively.
type ArchiveCatalog interface {
	// Find returns the name of the archive holding the entry, if any.
	Find(name string) (string, bool)

	// Extract returns the entry's decompressed contents.
	Extract(name string) ([]byte, error)

	// Entries lists the base names of all entries with the extension.
	Entries(ext string) []string

	Close() error
}
