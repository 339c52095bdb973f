// Package application provides application initialization and dependency wiring.
// It encapsulates the creation of storage, the planner, metrics, handlers,
// routers and the HTTP server, and persists the order state across restarts,
// making the main package cleaner and more focused on CLI parsing and
// orchestration.
package application
