// Package viz renders a running demon simulation in the terminal.
//
// The live view is a Bubble Tea program fed by a [Feed]. The feed is a step
// callback on the simulation goroutine: every few steps it copies the spins
// of the first two axes and the recent histories into a [Frame], so the UI
// never touches the lattice itself.
//
// # Key Bindings
//
//	Space - Pause/Resume the simulation
//	V     - Switch the plot between demon energy and magnetization
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
