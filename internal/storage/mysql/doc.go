// Package mysql provides the persistence layer of the agent runtime: message
// memories and the database-backed cache table. A JSON-log implementation
// stands in for MySQL during local development.
package mysql
