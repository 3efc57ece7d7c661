// Package solver implements an adaptive large neighborhood search for the
// capacitated vehicle routing problem with time windows and load dependent
// travel times. A simulated annealing outer loop selects destroy and repair
// operators through adaptive roulette wheels and mutates a single running
// solution whose route caches are patched incrementally after each edit.
//
// Travel times come from a load-indexed cube: for cargo bikes, the heavier
// the remaining load, the slower the climb. The classical VRPTW is the
// special case of a cube with one load bucket.
package solver
