// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	if err := cliparse.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseType: file, sqlite or postgres (default: sqlite)
  - DatabaseURL: file path or connection string (default: council.db for
    sqlite, data/state.json for file; required for postgres)
  - AdminName: the administrator's member name (default: alex)
  - LogLevel: debug, info, warn or error (default: info)
  - AllowedOrigins: browser origins for CORS and WebSocket (default: *)
  - Settings: voting settings used when no state exists yet

# CLI Flags

	-p, --port                Server port
	-d, --database-url        Database URL or file path
	-t, --database-type       Database type
	-c, --config              YAML config file
	--admin-name              Administrator name
	--log-level               Log level
	--allowed-origins         Comma-separated origins
	--required-members        Initial quorum
	--countdown-seconds       Initial round length
	--interlude-seconds       Initial pause between proposals
	--pre-session-seconds     Initial countdown before the first round

# Environment Variables

Flags fall back to environment variables, which may come from a .env file:

	PORT            → -p
	DATABASE_URL    → -d
	DATABASE_TYPE   → -t
	COUNCIL_CONFIG  → -c
	ADMIN_NAME      → --admin-name
	LOG_LEVEL       → --log-level
	ALLOWED_ORIGINS → --allowed-origins

# Config File

Anything not set by a flag or the environment is read from the YAML file:

	port: 3318
	database:
	  type: postgres
	  url: postgres://council@localhost/council?sslmode=disable
	admin_name: alex
	allowed_origins: [https://council.example]
	settings:
	  required_members: 3
	  countdown_seconds: 180
	  interlude_seconds: 5
	  pre_session_seconds: 5

Precedence: flag, environment, config file, built-in default.
*/
package cliparse
