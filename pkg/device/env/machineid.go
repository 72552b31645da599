package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

const machineIDApp = "dali.go"

// MachineID retrieves the ID identifying the machine. The raw machine ID is
// hashed with the application name and shortened, falling back to the
// hostname.
func MachineID() string {
	id, err := machineid.ProtectedID(machineIDApp)
	if err != nil {
		if host, err := os.Hostname(); err == nil {
			return host
		}
		return "local"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
