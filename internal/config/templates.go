package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes an annotated default config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(clientTemplate), 0o600)
}

const clientTemplate = `host = "localhost"
port = 4877
user = "anonymous"
password = ""

connect_timeout = "5s"
read_timeout = "2s"
write_timeout = "2s"
max_elements = 16777216
history_file = "~/.cqi_history"

[probe]
listen = ":9477"
interval = "15s"
targets = ["localhost:4877"]
cors_origins = ["http://localhost:3000"]
`
