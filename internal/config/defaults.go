package config

import "time"

// Default values for configuration.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultDBPath = "pulsewatch.db"

	// DefaultSessionTimeout is the inactivity window after which a chat
	// session is considered closed.
	DefaultSessionTimeout = 5 * time.Minute

	DefaultWebAddr      = "127.0.0.1:8000"
	DefaultSessionTTL   = 12 * time.Hour
	DefaultPushInterval = 10 * time.Second

	// DefaultMaintenanceSchedule runs SQL maintenance daily at 04:00.
	DefaultMaintenanceSchedule = "0 4 * * *"
)

// DefaultFarewells are the closing phrases the support operators actually
// send. An exact match (after trimming surrounding whitespace) on an
// outgoing message closes the chat immediately.
var DefaultFarewells = []string{
	"Гарного дня😊", "Гарного дня!",
	"Гарного вечора!", "Гарного вечора😊",
	"Доброї ночі!", "Доброї ночі😊",
	"Будь ласка, Гарного дня😊", "Будь ласка, Гарного дня!",
	"Будь ласка, Гарного вечора!", "Будь ласка, Гарного вечора😊",
	"Будь ласка, Доброї ночі!", "Будь ласка, Доброї ночі😊",
}
