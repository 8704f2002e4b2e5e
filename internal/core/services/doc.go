// Package services implements the driving port interfaces.
// Services contain the core pipeline logic and orchestrate
// calls to driven ports (adapters).
//
// Services never talk to AWS or the inference provider directly;
// everything external goes through a driven port.
package services
