// Package viz draws a relaxing particle set in the terminal.
//
// [Model] is a Bubble Tea program that owns a [sim.Relaxer], advances it on
// every frame and renders the set on a Braille [Canvas] through an orbiting
// [Camera]. Spheres nearer the viewer are filled, farther ones outlined.
//
// # Key Bindings
//
//	Space  - Pause/Resume relaxation
//	+/-    - Zoom
//	Arrows - Orbit the camera
//	R      - Toggle auto-rotation
//	[ ]    - Halve/double steps per frame
//	E      - Export the current set
//	T      - Cycle color themes
//	Q      - Quit
package viz
