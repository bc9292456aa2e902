/*
Package log provides structured logging for relaybroker using zerolog.

It wraps zerolog to provide JSON-structured logging with component-specific
loggers, configurable log levels, and helper functions for common logging
patterns. All logs include timestamps and support filtering by severity
level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all relaybroker packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: Add component name to all logs (e.g. "transit", "registry")
  - WithNodeID: Add node ID context
  - WithServiceID: Add service name context
  - WithAction: Add action name context

# Usage

Initializing the logger:

	import "github.com/cuemby/relaybroker/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("broker started")
	log.Debug("checking node liveness")
	log.Warn("heartbeat missed")
	log.Error("call failed")

Component loggers:

	transitLog := log.WithComponent("transit")
	transitLog.Info().Str("node_id", "node-1").Msg("connected")

	callLog := log.WithAction("math.add")
	callLog.Debug().Str("node_id", "node-2").Msg("dispatching request")

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance, initialized once at startup
  - Accessible from all packages without passing a reference around

Context Logger Pattern:
  - Child loggers carry fixed fields (component, node, service, action)
  - Avoids repeating field specification at every call site

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Log errors with .Err() for stack traces
  - Include context (node ID, action, request ID) via the With* helpers

Don't:
  - Log secrets or call parameters that might carry sensitive data
  - Use Debug level in production
  - Concatenate strings into the message (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
