// Package dispatch runs send and delete calls against Telegram.
//
// A Pool hands each bot token its own Gate. The Gate validates the argument
// bag, admits one call at a time, and reports every outcome through a
// Notifier. The Orchestrator inside it retracts earlier messages before
// sending and keeps the slot registry in step with what Telegram holds.
package dispatch
