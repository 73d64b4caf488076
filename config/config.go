// Package config loads the external collaborator configuration spec.md
// §6 calls out as out-of-core: connection strings and the projector
// identity, read from the environment. Grounded on the teacher's
// example/bank/config.go panic-on-missing-required-env pattern.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/AbdalrahmanBashir/EventSourcedBank/projector"
)

// Config is the process-level configuration spec §6 names: two connection
// strings and a projector name.
type Config struct {
	// EventStoreDSN is the Postgres connection string for the event store.
	EventStoreDSN string
	// ReadModelDSN is the Postgres connection string for the read model.
	// May equal EventStoreDSN; the two schemas' advisory lock keys differ
	// so colocating them is safe.
	ReadModelDSN string
	// ProjectorName is the projector's stable identity (spec §4.H).
	ProjectorName string
}

// FromEnv loads Config from EVENT_STORE_DSN, READ_MODEL_DSN (defaults to
// EVENT_STORE_DSN if unset) and PROJECTOR_NAME (defaults to
// projector.DefaultName).
func FromEnv() (Config, error) {
	eventStoreDSN := strings.TrimSpace(os.Getenv("EVENT_STORE_DSN"))
	if eventStoreDSN == "" {
		return Config{}, fmt.Errorf("config: EVENT_STORE_DSN must be set and non-empty")
	}

	readModelDSN := strings.TrimSpace(os.Getenv("READ_MODEL_DSN"))
	if readModelDSN == "" {
		readModelDSN = eventStoreDSN
	}

	name := strings.TrimSpace(os.Getenv("PROJECTOR_NAME"))
	if name == "" {
		name = projector.DefaultName
	}

	return Config{
		EventStoreDSN: eventStoreDSN,
		ReadModelDSN:  readModelDSN,
		ProjectorName: name,
	}, nil
}
