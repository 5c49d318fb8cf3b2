// Package config handles configuration loading for cauldron-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file (or TOML when the file ends in
// .toml) with environment variable expansion. Unset fields receive defaults
// and the result is validated before use.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CAULDRON_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/cauldron/gateway.yaml
//  3. ~/.config/cauldron/gateway.yaml
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${CAULDRON_JWT_SECRET}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//	  api_prefix: "/api/v1"          # routes are mounted at / and under the prefix
//
//	upstream:
//	  base_url: "http://192.168.150.200"
//	  runtime_port: 30080            # agent runtime (run, run_sse, sessions)
//	  deploy_port: 3001              # deployment service
//	  timeout: "30s"
//	  breaker:
//	    max_failures: 5
//	    timeout: "30s"
//	    interval: "60s"
//
//	database:
//	  driver: "sqlite"               # sqlite, postgres
//	  path: "/var/lib/cauldron/sessions.db"
//	  dsn: "host=... user=... dbname=..."
//
//	rate_limit:
//	  requests_per_min: 120
//	  burst: 20
//
//	deploy:
//	  dedupe_window: "0s"
//
//	execute:
//	  render_markdown: false
//
//	metrics:
//	  prometheus_url: "http://prometheus:9090"
//	  window: "15d"
//
//	tracing:
//	  enabled: false
//	  exporter: "stdout"
//
//	logging:
//	  level: "info"                  # debug, info, warn, error
//	  format: "text"                 # text, json
package config
