// Package config provides configuration loading for the log processing
// service.
//
// Configuration is read from a JSON file, merged over built-in defaults,
// and can be overridden through environment variables:
//
//	# Override NATS URLs (comma-separated)
//	export VECTOR_NATS_URLS="nats://server1:4222,nats://server2:4222"
//
// A configuration file names the NATS connection, the metrics endpoint,
// and the component instances to create:
//
//	{
//	  "nats": {"urls": ["nats://localhost:4222"]},
//	  "metrics": {"enabled": true, "port": 9090},
//	  "components": {
//	    "detect-exceptions-main": {
//	      "name": "detect_exceptions",
//	      "type": "processor",
//	      "config": {"languages": ["Java", "Python"]}
//	    }
//	  }
//	}
//
// File loading includes security validation: size limits, JSON depth
// limits, and path traversal checks.
package config
