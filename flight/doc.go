// Package flight coordinates concurrent computations that share a key.
//
// The first caller for a key becomes the Leader and runs the computation;
// callers arriving while it runs become Followers and wait on the call's done
// channel. The Leader settles the call exactly once, releasing every
// Follower with the identical outcome.
//
// A Group is not synchronized. Its owner guards Join and Settle with the same
// lock that guards its cache, so a lookup miss and the creation of a pending
// call are atomic. Waiting happens outside that lock.
package flight
