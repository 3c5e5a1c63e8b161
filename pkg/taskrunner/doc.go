// Package taskrunner assembles a registry, result cache, engine, shell executor and module loader
// from one configuration value and runs targets against a shared value stack. The CLI builds on it,
// and embedders can use it to run named tasks without wiring each component by hand.
package taskrunner
