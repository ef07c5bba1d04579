package constants

import "os"

const (
	// CookieFilePermissions sets the permissions for persisted cookie files: (rw-------).
	// Cookie blobs carry live session state, so only the owner may read them.
	CookieFilePermissions os.FileMode = 0o600

	// CookieFolderPermissions sets the permissions for the cookie cache directory: (rwx------).
	CookieFolderPermissions os.FileMode = 0o700

	// DefaultFilePermissions sets the default permissions for regular files: (rw-r--r--).
	// Owner: read and write;
	// Group: read;
	// Others: read.
	DefaultFilePermissions os.FileMode = 0o644
)

// File extension constants.
const (
	// ExtensionJSON is the extension used for persisted cookie cache files.
	ExtensionJSON = ".json"
)
