package rosterseed

import "os"

// ShowHelp prints usage information for the roster seeding tool.
func ShowHelp() {
	os.Stdout.WriteString(`hackjudge roster seeder
=======================

Creates teams and judges from a YAML roster through the HTTP API.

Usage:
  seed-roster -file roster.yaml -code ADMINCODE [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -code string
        Sign-in code of an admin judge (or HACKJUDGE_ADMIN_CODE)
  -file string
        Roster file (required)
  -batch int
        Teams per seed request (default 50)
  -workers int
        Concurrent judge requests (default 4)
  -timeout duration
        HTTP request timeout (default 30s)
  -dry-run
        Print the team plan without writing
  -output string
        Write created sign-in codes to this YAML file
  -help
        Show this help message

Roster format:
  teams:
    - name: Rocket
      members: [Ana, Bo]
      track: ai
  judges:
    - name: Jo
      code: JO42
      capacity: 6
`)
}
