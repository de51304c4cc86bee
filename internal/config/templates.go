package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "node":
		return nodeTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const nodeTemplate = `id = "kvnode"
addr = ":9160"
admin_addr = "127.0.0.1:9161"
admin_token = ""
cors_origins = ["http://localhost:3000"]
idle_timeout_ms = 300000
max_body_bytes = 16777216

[tls]
enabled = false
cert_file = ""
key_file = ""
ca_file = ""
mutual = false
`

const clientTemplate = `host = "localhost"
port = 9160
connect_timeout_ms = 5000
read_timeout_ms = 15000
write_timeout_ms = 15000

[tls]
enabled = false
ca_file = ""
insecure_skip_verify = false
`
